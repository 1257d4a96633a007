// Package transcriber defines the speech-to-text capability the dialogue
// consumes. Provider adapters live outside this module.
package transcriber

import (
	"context"
	"strings"

	"ama/audio"
)

type Transcriber interface {
	Name() string
	// Transcribe returns the text spoken in seg. An empty string means no
	// speech was recognised and is not an error.
	Transcribe(ctx context.Context, seg audio.Segment) (string, error)
}

var blankMarkers = []string{"[BLANK_AUDIO]", "(silence)", "[silence]", "[no speech]"}

// Clean trims text and drops the placeholder markers some speech models emit
// for silent input.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, m := range blankMarkers {
		if strings.EqualFold(text, m) {
			return ""
		}
	}
	return text
}
