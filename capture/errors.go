package capture

import (
	"errors"
	"fmt"
	"os"

	"ama/audio"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = audio.ErrNoDevice
	ErrAlreadyStarted   = errors.New("capture session already started")
)

// Error is returned by Session.Start when the microphone cannot be opened.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "capture " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func wrapDeviceError(op string, err error) error {
	if errors.Is(err, os.ErrPermission) && !errors.Is(err, ErrPermissionDenied) {
		err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return &Error{Op: op, Err: err}
}
