package ingest

import (
	"context"
	"testing"
	"time"
)

func waitReturns(t *testing.T, tk *Ticket, within time.Duration) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	return tk.Wait(ctx) == nil
}

func TestSequencerOrdersWithinStream(t *testing.T) {
	s := NewSequencer()
	a := s.Reserve("cam-1")
	b := s.Reserve("cam-1")
	other := s.Reserve("cam-2")

	if !waitReturns(t, a, 10*time.Millisecond) {
		t.Fatal("first ticket should pass immediately")
	}
	if !waitReturns(t, other, 10*time.Millisecond) {
		t.Fatal("other stream should not wait")
	}
	if waitReturns(t, b, 20*time.Millisecond) {
		t.Fatal("second ticket passed before first released")
	}

	a.Release()
	if !waitReturns(t, b, time.Second) {
		t.Fatal("second ticket still blocked after release")
	}
	b.Release()
	other.Release()

	if n := s.Pending(); n != 0 {
		t.Errorf("Pending() = %d, want 0", n)
	}
}

func TestSequencerEarlyReleaseKeepsOrder(t *testing.T) {
	s := NewSequencer()
	a := s.Reserve("cam-1")
	b := s.Reserve("cam-1")
	c := s.Reserve("cam-1")

	// b 先失败结束，c 仍须等待 a
	b.Release()
	if waitReturns(t, c, 20*time.Millisecond) {
		t.Fatal("third ticket overtook the first")
	}

	a.Release()
	a.Release()
	if !waitReturns(t, c, time.Second) {
		t.Fatal("third ticket still blocked")
	}
	c.Release()

	deadline := time.Now().Add(time.Second)
	for s.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := s.Pending(); n != 0 {
		t.Errorf("Pending() = %d, want 0", n)
	}
}
