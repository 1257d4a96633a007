// Package llm defines the language-model capability the dialogue consumes.
package llm

import (
	"context"
	"sync"
)

type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Streamer is implemented by models that can deliver a reply incrementally.
type Streamer interface {
	StreamRespond(ctx context.Context, prompt string) (Stream, error)
}

// Stream is a finite, single-use sequence of text increments. Updates is
// closed when the reply is complete or failed; Err is valid after that.
// Producers must stop sending once the ctx passed to StreamRespond is done.
type Stream interface {
	Updates() <-chan string
	Err() error
}

type chanStream struct {
	updates chan string
	mu      sync.Mutex
	err     error
}

func (s *chanStream) Updates() <-chan string { return s.updates }

func (s *chanStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pipe returns a Stream plus the send and finish functions a producer uses
// to feed it. send reports false once ctx is done.
func Pipe(ctx context.Context) (Stream, func(string) bool, func(error)) {
	s := &chanStream{updates: make(chan string)}
	var once sync.Once
	send := func(delta string) bool {
		select {
		case s.updates <- delta:
			return true
		case <-ctx.Done():
			return false
		}
	}
	finish := func(err error) {
		once.Do(func() {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			close(s.updates)
		})
	}
	return s, send, finish
}
