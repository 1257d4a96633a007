package tts

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"ama/beep"
	"ama/encoder"
)

// ToneSynth renders each word as a short tone whose pitch is derived from
// the word. It lets the pipeline run end to end without a speech provider.
type ToneSynth struct {
	SampleRate int
	WordLength time.Duration
	Gap        time.Duration
	Volume     float64
}

func NewTone() *ToneSynth {
	return &ToneSynth{
		SampleRate: encoder.DefaultSampleRate,
		WordLength: 120 * time.Millisecond,
		Gap:        40 * time.Millisecond,
		Volume:     0.3,
	}
}

func wordFreq(w string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(w)))
	return 220 + float64(h.Sum32()%440)
}

func (s *ToneSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gap := make([]float32, int(s.Gap.Seconds()*float64(s.SampleRate)))
	var samples []float32
	for _, w := range strings.Fields(text) {
		samples = append(samples, beep.Tone(s.SampleRate, wordFreq(w), s.WordLength.Seconds(), s.Volume)...)
		samples = append(samples, gap...)
	}
	return encoder.WAV(beep.ToInt16(samples), s.SampleRate), nil
}
