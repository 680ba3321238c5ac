package core

import (
	"testing"
	"time"
)

func TestClockLap(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatal("stopped clock advanced")
	}
	c.Start()
	time.Sleep(5 * time.Millisecond)
	if lap := c.Lap(); lap < 0.005 {
		t.Fatalf("lap = %v", lap)
	}
	if c.Elapsed() != 0 {
		t.Fatalf("Lap did not restart the interval, elapsed = %v", c.Elapsed())
	}
	c.Stop()
	time.Sleep(time.Millisecond)
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatal("stopped clock advanced")
	}
}
