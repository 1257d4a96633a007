// Package tts defines the speech-synthesis capability the playback scheduler
// consumes.
package tts

import "context"

// Synthesizer turns one chunk of text into encoded audio (WAV, FLAC or MP3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
