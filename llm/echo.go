package llm

import (
	"context"
	"strings"
	"time"
)

// Echo answers by repeating the prompt. It stands in for a real model when
// no provider is configured, streaming one word per WordDelay.
type Echo struct {
	Prefix    string
	WordDelay time.Duration
}

func (e Echo) reply(prompt string) string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "You said:"
	}
	return prefix + " " + strings.TrimSpace(prompt)
}

func (e Echo) Respond(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.reply(prompt), nil
}

func (e Echo) StreamRespond(ctx context.Context, prompt string) (Stream, error) {
	s, send, finish := Pipe(ctx)
	words := strings.Fields(e.reply(prompt))
	go func() {
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			if e.WordDelay > 0 {
				select {
				case <-ctx.Done():
					finish(ctx.Err())
					return
				case <-time.After(e.WordDelay):
				}
			}
			if !send(w) {
				finish(ctx.Err())
				return
			}
		}
		finish(nil)
	}()
	return s, nil
}
