package audio

import "time"

// Segment is one finalized recording handed to a transcriber.
type Segment struct {
	Data       []byte
	MimeType   string
	SampleRate int
	Channels   int
	Duration   time.Duration
	// Peak is the highest input level observed while recording.
	Peak float64
}

func (s Segment) Empty() bool {
	return len(s.Data) == 0 || s.Duration <= 0
}
