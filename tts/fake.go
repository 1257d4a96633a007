package tts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeSynth returns fixed audio for every chunk, or per-text audio from
// ByText when present.
type FakeSynth struct {
	Audio  []byte
	ByText map[string][]byte
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	texts []string
}

func NewFake(audio []byte, err error) *FakeSynth {
	return &FakeSynth{Audio: audio, Err: err}
}

func (f *FakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.Err != nil {
		return nil, fmt.Errorf("fake synthesizer error: %w", f.Err)
	}
	if b, ok := f.ByText[text]; ok {
		return b, nil
	}
	return f.Audio, nil
}

func (f *FakeSynth) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
