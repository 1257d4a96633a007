// Package beep generates the short audio cues and tones used for feedback.
// Samples are mono float32 in [-1,1] so they can be mixed into playback.
package beep

import "math"

var disabled bool

func Disable()      { disabled = true }
func Enabled() bool { return !disabled }

const (
	// Listen cue: high pitch, short
	listenFreq   = 1200
	listenVolume = 0.5
	listenDecay  = 60

	// Done cue: medium pitch, slightly longer
	doneFreq   = 900
	doneVolume = 0.5
	doneDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Tick is a sine burst with an exponential decay envelope.
func Tick(sampleRate int, freq, duration, volume, decay float64) []float32 {
	n := int(float64(sampleRate) * duration)
	samples := make([]float32, n)
	for i := range n {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(math.Sin(2*math.Pi*freq*t) * volume * math.Exp(-t*decay))
	}
	return samples
}

func DoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []float32 {
	b := Tick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]float32, int(float64(sampleRate)*gapDur))
	out := make([]float32, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// Tone is a steady sine with 10 ms linear attack and release, so
// back-to-back tones join without clicks.
func Tone(sampleRate int, freq, duration, volume float64) []float32 {
	n := int(float64(sampleRate) * duration)
	ramp := min(sampleRate/100, n/2)
	samples := make([]float32, n)
	for i := range n {
		env := 1.0
		if ramp > 0 {
			if i < ramp {
				env = float64(i) / float64(ramp)
			} else if i >= n-ramp {
				env = float64(n-1-i) / float64(ramp)
			}
		}
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(math.Sin(2*math.Pi*freq*t) * volume * env)
	}
	return samples
}

func Listen(sampleRate int) []float32 {
	if disabled {
		return nil
	}
	return Tick(sampleRate, listenFreq, 0.05, listenVolume, listenDecay)
}

func Done(sampleRate int) []float32 {
	if disabled {
		return nil
	}
	return Tick(sampleRate, doneFreq, 0.08, doneVolume, doneDecay)
}

func Error(sampleRate int) []float32 {
	if disabled {
		return nil
	}
	return DoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// ToInt16 converts float samples to 16-bit PCM, clamping out-of-range values.
func ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(max(min(s, 1), -1) * 32767)
	}
	return out
}
