package llm

import (
	"context"
	"fmt"
	"sync"
)

// FakeModel returns a fixed reply, optionally streamed as Parts.
type FakeModel struct {
	Reply string
	Parts []string
	Err   error

	mu      sync.Mutex
	prompts []string
}

func NewFake(reply string, err error) *FakeModel {
	return &FakeModel{Reply: reply, Err: err}
}

func (f *FakeModel) record(prompt string) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
}

func (f *FakeModel) Respond(_ context.Context, prompt string) (string, error) {
	f.record(prompt)
	if f.Err != nil {
		return "", fmt.Errorf("fake model error: %w", f.Err)
	}
	return f.Reply, nil
}

func (f *FakeModel) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *FakeModel) Calls() int { return len(f.Prompts()) }

// FakeStreamer is a FakeModel that also streams its Parts.
type FakeStreamer struct {
	*FakeModel
}

func (f FakeStreamer) StreamRespond(ctx context.Context, prompt string) (Stream, error) {
	f.record(prompt)
	s, send, finish := Pipe(ctx)
	parts := f.Parts
	if len(parts) == 0 {
		parts = []string{f.Reply}
	}
	go func() {
		for _, p := range parts {
			if !send(p) {
				finish(ctx.Err())
				return
			}
		}
		if f.Err != nil {
			finish(fmt.Errorf("fake model error: %w", f.Err))
			return
		}
		finish(nil)
	}()
	return s, nil
}
