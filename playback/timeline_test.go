package playback

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func constSamples(v float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func sampleAt(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[i*2:]))
}

func TestTimelineClockAdvancesWithRender(t *testing.T) {
	tl := NewTimeline(16000)
	assert.Equal(t, time.Duration(0), tl.Now())
	buf := make([]byte, 320)
	tl.Render(buf, 160)
	assert.Equal(t, 10*time.Millisecond, tl.Now())
}

func TestTimelineBackToBackIsGapless(t *testing.T) {
	tl := NewTimeline(16000)
	a := &Chunk{Samples: constSamples(0.5, 100), Start: 0}
	b := &Chunk{Samples: constSamples(0.25, 100), Start: tl.toDuration(100)}
	tl.Schedule(a)
	tl.Schedule(b)

	buf := make([]byte, 600)
	tl.Render(buf, 300)

	assert.EqualValues(t, 16383, sampleAt(buf, 0))
	assert.EqualValues(t, 16383, sampleAt(buf, 99))
	assert.EqualValues(t, 8191, sampleAt(buf, 100), "second chunk begins on the very next frame")
	assert.EqualValues(t, 8191, sampleAt(buf, 199))
	assert.EqualValues(t, 0, sampleAt(buf, 200))
	assert.Zero(t, tl.Pending(), "finished chunks are released")
}

func TestTimelineSpansRenderCalls(t *testing.T) {
	tl := NewTimeline(16000)
	tl.Schedule(&Chunk{Samples: constSamples(0.5, 100), Start: tl.toDuration(50)})

	buf := make([]byte, 200)
	tl.Render(buf, 100)
	assert.EqualValues(t, 0, sampleAt(buf, 49))
	assert.EqualValues(t, 16383, sampleAt(buf, 50))
	assert.Equal(t, 1, tl.Pending())

	tl.Render(buf, 100)
	assert.EqualValues(t, 16383, sampleAt(buf, 49))
	assert.EqualValues(t, 0, sampleAt(buf, 50))
	assert.Zero(t, tl.Pending())
}

func TestTimelineClearSilences(t *testing.T) {
	tl := NewTimeline(16000)
	tl.Schedule(&Chunk{Samples: constSamples(0.5, 1000), Start: 0})
	buf := make([]byte, 200)
	tl.Render(buf, 100)
	assert.Greater(t, tl.Level(), 0.0)

	tl.Clear()
	assert.Zero(t, tl.Pending())
	assert.Zero(t, tl.Level())
	tl.Render(buf, 100)
	for i := range 100 {
		if sampleAt(buf, i) != 0 {
			t.Fatalf("frame %d not silent after Clear", i)
		}
	}
}

func TestTimelineCueMixesAtNow(t *testing.T) {
	tl := NewTimeline(16000)
	buf := make([]byte, 200)
	tl.Render(buf, 100)

	tl.Cue(constSamples(0.25, 10))
	tl.Cue(nil)
	assert.Equal(t, 1, tl.Pending())
	tl.Render(buf, 100)
	assert.EqualValues(t, 8191, sampleAt(buf, 0))
	assert.EqualValues(t, 0, sampleAt(buf, 10))
}

func TestTimelineMixClamps(t *testing.T) {
	tl := NewTimeline(16000)
	tl.Schedule(&Chunk{Samples: constSamples(0.8, 10)})
	tl.Schedule(&Chunk{Samples: constSamples(0.8, 10)})
	buf := make([]byte, 20)
	tl.Render(buf, 10)
	assert.EqualValues(t, 32767, sampleAt(buf, 0))
}
