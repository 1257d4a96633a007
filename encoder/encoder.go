package encoder

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	Channels          = 1
	BitsPerSample     = 16
	BlockSize         = 4096
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MimeType() string
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// New returns an encoder for mono 16-bit PCM at sampleRate.
func New(format string, sampleRate int) (Encoder, error) {
	switch format {
	case FormatFLAC, "":
		return NewFlac(sampleRate)
	case FormatWAV:
		return NewWAV(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio format %q", format)
	}
}
