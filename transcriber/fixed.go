package transcriber

import (
	"context"

	"ama/audio"
)

// Fixed hears the same words in every non-empty segment. It keeps the agent
// loop usable offline.
type Fixed struct {
	Text string
}

func (f Fixed) Name() string { return "fixed" }

func (f Fixed) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if seg.Empty() {
		return "", nil
	}
	return f.Text, nil
}
