package audio

import (
	"encoding/binary"
	"math"
)

type SampleFormat int

const (
	FormatS16LE SampleFormat = iota
	FormatU8
)

// DefaultGain lifts speech RMS (typically 0.02-0.2) into a usable 0-1 range.
const DefaultGain = 4.0

func (f SampleFormat) BytesPerSample() int {
	if f == FormatU8 {
		return 1
	}
	return 2
}

// Level returns the RMS loudness of buf scaled by gain and clamped to [0,1].
func Level(buf []byte, format SampleFormat, gain float64) float64 {
	var sum float64
	var n int
	switch format {
	case FormatU8:
		for _, b := range buf {
			v := (float64(b) - 128) / 128
			sum += v * v
		}
		n = len(buf)
	default:
		n = len(buf) / 2
		for i := range n {
			v := float64(int16(binary.LittleEndian.Uint16(buf[i*2:]))) / 32768
			sum += v * v
		}
	}
	if n == 0 {
		return 0
	}
	return clampUnit(math.Sqrt(sum/float64(n)) * gain)
}

// LevelFloat is Level for samples already normalized to [-1,1].
func LevelFloat(samples []float32, gain float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return clampUnit(math.Sqrt(sum/float64(len(samples))) * gain)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
