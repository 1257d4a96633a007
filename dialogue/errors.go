package dialogue

import (
	"errors"

	"ama/capture"
)

// ErrNoSpeech means the turn held no recognisable speech. It triggers an
// automatic restart rather than the failure path.
var ErrNoSpeech = errors.New("no speech detected")

// ErrEmptyReply is returned when the language model answers with nothing.
var ErrEmptyReply = errors.New("empty reply")

type Stage string

const (
	StageCapture    Stage = "capture"
	StageTranscribe Stage = "transcribe"
	StageRespond    Stage = "respond"
	StageSynthesize Stage = "synthesize"
)

// StageError is a failure that ended a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Status is the message shown to the user for this failure.
func (e *StageError) Status() string {
	switch e.Stage {
	case StageCapture:
		switch {
		case errors.Is(e.Err, capture.ErrPermissionDenied):
			return "Microphone access denied"
		case errors.Is(e.Err, capture.ErrNoDevice):
			return "No microphone found"
		}
		return "Microphone error: " + e.Err.Error()
	case StageTranscribe:
		return "Transcription failed: " + e.Err.Error()
	case StageRespond:
		return "Language model failed: " + e.Err.Error()
	case StageSynthesize:
		return "Speech playback failed: " + e.Err.Error()
	}
	return e.Error()
}
