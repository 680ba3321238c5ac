package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue()
		if err != nil || got != want {
			t.Fatalf("Dequeue = %d, %v; want %d", got, err, want)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("err = %v, want ErrQueueEmpty", err)
	}
}

func TestRingQueuePushOverwritesOldest(t *testing.T) {
	q := NewRingQueue[int](2)
	q.Push(1)
	q.Push(2)
	q.Push(3)
	var got []int
	q.Each(func(v int) { got = append(got, v) })
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("contents = %v", got)
	}
}
