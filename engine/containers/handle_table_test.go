package containers

import (
	"errors"
	"testing"
)

func TestHandleTableGenerations(t *testing.T) {
	tbl := NewHandleTable[string]()
	h1 := tbl.Insert("a")
	if h1 == 0 {
		t.Fatal("handle 0 handed out")
	}
	if v, ok := tbl.Get(h1); !ok || v != "a" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if _, err := tbl.Remove(h1); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Remove(h1); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("double remove err = %v", err)
	}
	h2 := tbl.Insert("b")
	if h2 == h1 {
		t.Fatal("reused slot must carry a new generation")
	}
	if _, ok := tbl.Get(h1); ok {
		t.Fatal("stale handle resolved")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d", tbl.Len())
	}
	n := 0
	tbl.Each(func(uint64, string) { n++ })
	if n != 1 {
		t.Fatalf("Each visited %d", n)
	}
}
