package playback

import "fmt"

// SynthesisError reports that the synthesizer failed for one chunk.
type SynthesisError struct {
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize chunk %d: %v", e.Index, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// DecodeError reports synthesized audio that could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode chunk %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
