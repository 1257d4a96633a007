package playback

import (
	"encoding/binary"
	"sync"
	"time"

	"ama/audio"
)

// Chunk is one decoded piece of speech placed on the audio clock.
type Chunk struct {
	Index    int
	Text     string
	Samples  []float32
	Start    time.Duration
	Duration time.Duration
}

func (c *Chunk) End() time.Duration { return c.Start + c.Duration }

type placed struct {
	samples []float32
	start   int64
}

// Timeline is the audio clock and mixer behind a playback device. Its clock
// is the number of frames rendered so far, so it only advances while the
// device pulls audio.
type Timeline struct {
	rate  int
	meter *audio.Meter

	mu     sync.Mutex
	frames int64
	queue  []placed
	mix    []float32
}

func NewTimeline(sampleRate int) *Timeline {
	return &Timeline{
		rate: sampleRate,
		meter: audio.NewMeter(
			audio.WindowBytes(sampleRate, audio.DefaultWindow, audio.FormatS16LE),
			audio.FormatS16LE, audio.DefaultGain),
	}
}

func (t *Timeline) SampleRate() int { return t.rate }

func (t *Timeline) toFrames(d time.Duration) int64 {
	return (int64(d)*int64(t.rate) + int64(time.Second)/2) / int64(time.Second)
}

func (t *Timeline) toDuration(frames int64) time.Duration {
	return time.Duration(frames * int64(time.Second) / int64(t.rate))
}

func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toDuration(t.frames)
}

func (t *Timeline) Schedule(c *Chunk) {
	t.mu.Lock()
	t.queue = append(t.queue, placed{samples: c.Samples, start: t.toFrames(c.Start)})
	t.mu.Unlock()
}

// Cue mixes samples in starting at the next rendered frame.
func (t *Timeline) Cue(samples []float32) {
	if len(samples) == 0 {
		return
	}
	t.mu.Lock()
	t.queue = append(t.queue, placed{samples: samples, start: t.frames})
	t.mu.Unlock()
}

// Clear drops everything scheduled, including the chunk currently playing.
func (t *Timeline) Clear() {
	t.mu.Lock()
	clear(t.queue)
	t.queue = t.queue[:0]
	t.mu.Unlock()
	t.meter.Reset()
}

// Pending reports how many buffers are scheduled or playing.
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Level is the loudness of the most recently rendered audio.
func (t *Timeline) Level() float64 { return t.meter.Level() }

// Render fills out with frameCount S16LE mono frames. It is the playback
// device's callback.
func (t *Timeline) Render(out []byte, frameCount uint32) {
	n := int64(frameCount)

	t.mu.Lock()
	if int64(cap(t.mix)) < n {
		t.mix = make([]float32, n)
	}
	mix := t.mix[:n]
	clear(mix)

	base := t.frames
	kept := t.queue[:0]
	for _, p := range t.queue {
		end := p.start + int64(len(p.samples))
		if end <= base {
			continue
		}
		from, to := max(p.start, base), min(end, base+n)
		for f := from; f < to; f++ {
			mix[f-base] += p.samples[f-p.start]
		}
		if end > base+n {
			kept = append(kept, p)
		}
	}
	clear(t.queue[len(kept):])
	t.queue = kept
	t.frames += n

	for i, v := range mix {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(max(min(v, 1), -1)*32767)))
	}
	t.mu.Unlock()

	t.meter.Write(out[:n*2])
}
