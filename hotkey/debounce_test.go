package hotkey

import (
	"context"
	"testing"
	"time"
)

func expectPress(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for activation")
	}
}

func expectNone(t *testing.T, ch <-chan time.Time, wait time.Duration) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected activation")
	case <-time.After(wait):
	}
}

func TestDebounceDropsRapidPresses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	presses := Debounce(ctx, fk, 100*time.Millisecond)

	fk.Press()
	expectPress(t, presses)

	fk.Press()
	expectNone(t, presses, 30*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	fk.Press()
	expectPress(t, presses)
}

func TestDebounceIgnoresKeyup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	presses := Debounce(ctx, fk, 10*time.Millisecond)

	fk.SimKeyup()
	expectNone(t, presses, 30*time.Millisecond)
}

func TestDebounceClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	presses := Debounce(ctx, NewFake(), 0)
	cancel()
	select {
	case _, ok := <-presses:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
