package audio

import (
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

// DefaultWindow is how much recent audio a Meter measures.
const DefaultWindow = 100 * time.Millisecond

// Meter keeps a rolling window of the newest audio bytes and reports its
// loudness on demand. Writers and readers may be on different goroutines.
type Meter struct {
	mu     sync.Mutex
	ring   *ringbuffer.RingBuffer
	format SampleFormat
	gain   float64
	drop   []byte
	view   []byte
	closed bool
}

// WindowBytes sizes a mono window of duration d at sampleRate.
func WindowBytes(sampleRate int, d time.Duration, format SampleFormat) int {
	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return max(n, 1) * format.BytesPerSample()
}

func NewMeter(window int, format SampleFormat, gain float64) *Meter {
	window -= window % format.BytesPerSample()
	window = max(window, format.BytesPerSample())
	return &Meter{
		ring:   ringbuffer.New(window).SetBlocking(false),
		format: format,
		gain:   gain,
		drop:   make([]byte, window),
		view:   make([]byte, window),
	}
}

func (m *Meter) Write(p []byte) {
	p = p[:len(p)-len(p)%m.format.BytesPerSample()]
	if len(p) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	capacity := m.ring.Capacity()
	if len(p) >= capacity {
		m.ring.Reset()
		m.ring.Write(p[len(p)-capacity:])
		return
	}
	if over := len(p) - m.ring.Free(); over > 0 {
		m.ring.Read(m.drop[:over])
	}
	m.ring.Write(p)
}

// Level returns the loudness of the current window, or 0 once closed.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.ring.IsEmpty() {
		return 0
	}
	return Level(m.ring.Bytes(m.view[:0]), m.format, m.gain)
}

func (m *Meter) Reset() {
	m.mu.Lock()
	m.ring.Reset()
	m.mu.Unlock()
}

func (m *Meter) Close() {
	m.mu.Lock()
	m.closed = true
	m.ring.Reset()
	m.mu.Unlock()
}
