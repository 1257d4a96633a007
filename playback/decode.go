package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

var ErrUnknownFormat = errors.New("unrecognised audio format")

const resampleQuality = 4

// beep's wav decoder divides 16-bit samples by 1<<16-1, which lands them in
// [-0.5, 0.5]. wav16Gain restores full scale.
const wav16Gain = float64(1<<16-1) / (1 << 15)

func sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return "flac"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}

// Decode converts synthesized audio into mono samples at sampleRate.
func Decode(data []byte, sampleRate int) ([]float32, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	kind := sniff(data)
	switch kind {
	case "wav":
		s, format, err = wav.Decode(bytes.NewReader(data))
	case "flac":
		s, format, err = flac.Decode(bytes.NewReader(data))
	case "mp3":
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, err)
	}
	defer s.Close()

	gain := 1.0
	if kind == "wav" && format.Precision == 2 {
		gain = wav16Gain
	}

	var stream beep.Streamer = s
	target := beep.SampleRate(sampleRate)
	if format.SampleRate != target {
		stream = beep.Resample(resampleQuality, format.SampleRate, target, s)
	}

	out := make([]float32, 0, target.N(format.SampleRate.D(s.Len())))
	buf := make([][2]float64, 512)
	for {
		n, ok := stream.Stream(buf)
		for _, frame := range buf[:n] {
			v := (frame[0] + frame[1]) / 2 * gain
			out = append(out, float32(max(min(v, 1), -1)))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, err)
	}
	return out, nil
}
