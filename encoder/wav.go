package encoder

import (
	"encoding/binary"
	"sync"
	"time"
)

const wavHeaderSize = 44

// WAVEncoder buffers raw PCM and prepends a canonical 44-byte header on Bytes.
type WAVEncoder struct {
	mu         sync.Mutex
	sampleRate int
	pcm        []byte
	encodeTime time.Duration
}

func NewWAV(sampleRate int) *WAVEncoder {
	return &WAVEncoder{sampleRate: sampleRate}
}

func (e *WAVEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range block {
		e.pcm = binary.LittleEndian.AppendUint16(e.pcm, uint16(s))
	}
	return nil
}

func (e *WAVEncoder) Close() error     { return nil }
func (e *WAVEncoder) MimeType() string { return "audio/wav" }

func (e *WAVEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]byte, wavHeaderSize+len(e.pcm))
	PutWAVHeader(out, e.sampleRate, len(e.pcm))
	copy(out[wavHeaderSize:], e.pcm)
	return out
}

func (e *WAVEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.pcm) / 2)
}

func (e *WAVEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WAVEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}

// PutWAVHeader writes a mono 16-bit PCM header for dataSize bytes into buf[:44].
func PutWAVHeader(buf []byte, sampleRate, dataSize int) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
}

// WAV wraps samples in a complete WAV file.
func WAV(samples []int16, sampleRate int) []byte {
	e := NewWAV(sampleRate)
	e.EncodeBlock(samples)
	return e.Bytes()
}
