package audio

import "errors"

// ErrNoDevice is returned when the requested (or default) device is missing.
var ErrNoDevice = errors.New("no audio device available")
