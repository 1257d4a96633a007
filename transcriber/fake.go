package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ama/audio"
)

// FakeTranscriber returns scripted text. Each call consumes the next script
// entry; the last one repeats.
type FakeTranscriber struct {
	mu       sync.Mutex
	texts    []string
	err      error
	delay    time.Duration
	gate     <-chan struct{}
	calls    int
	segments []audio.Segment
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{texts: []string{text}, err: err}
}

// Script replaces the responses returned by successive calls.
func (f *FakeTranscriber) Script(texts ...string) *FakeTranscriber {
	f.mu.Lock()
	f.texts = texts
	f.mu.Unlock()
	return f
}

// WithDelay makes each call take d, returning early if ctx is cancelled.
func (f *FakeTranscriber) WithDelay(d time.Duration) *FakeTranscriber {
	f.delay = d
	return f
}

// WithGate makes each call block until gate is closed, ignoring ctx, like a
// provider client that cannot be aborted.
func (f *FakeTranscriber) WithGate(gate <-chan struct{}) *FakeTranscriber {
	f.gate = gate
	return f
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	f.mu.Lock()
	f.calls++
	f.segments = append(f.segments, seg)
	text := ""
	if len(f.texts) > 0 {
		text = f.texts[0]
		if len(f.texts) > 1 {
			f.texts = f.texts[1:]
		}
	}
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return text, nil
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTranscriber) Segments() []audio.Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Segment(nil), f.segments...)
}
