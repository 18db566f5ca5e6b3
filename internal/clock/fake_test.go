package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

func TestFakeAfter(t *testing.T) {
	c := NewFake(epoch)
	ch := c.After(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(epoch.Add(time.Second)) {
			t.Errorf("fired at %v", got)
		}
	default:
		t.Fatal("did not fire at deadline")
	}
	if c.Pending() != 0 {
		t.Errorf("one-shot waiter still pending")
	}
}

func TestFakeTicker(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(time.Second)

	for i := 1; i <= 3; i++ {
		c.Advance(time.Second)
		select {
		case got := <-ticker.C:
			if want := epoch.Add(time.Duration(i) * time.Second); !got.Equal(want) {
				t.Errorf("tick %d at %v, want %v", i, got, want)
			}
		default:
			t.Fatalf("tick %d missing", i)
		}
	}

	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker fired")
	default:
	}
	if c.Pending() != 0 {
		t.Errorf("stopped ticker still pending")
	}
}

func TestWaitForWaiters(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleeper was not woken")
	}
}
