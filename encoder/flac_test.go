package encoder

import (
	"encoding/binary"
	"testing"
)

func sineBlock(n int) []int16 {
	block := make([]int16, n)
	for i := range block {
		block[i] = int16((i % 200) * 100)
	}
	return block
}

func TestFlacEncoder(t *testing.T) {
	samples := sineBlock(DefaultSampleRate)

	enc, err := NewFlac(DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		block := samples[i:end]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}
	data := enc.Bytes()
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	if enc.MimeType() != "audio/flac" {
		t.Errorf("MimeType = %q", enc.MimeType())
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.EncodeBlock(nil); err != nil {
		t.Fatalf("EncodeBlock(nil): %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestWAVEncoder(t *testing.T) {
	samples := sineBlock(1600)
	data := WAV(samples, 8000)

	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), wavHeaderSize+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 8000 {
		t.Errorf("sample rate = %d, want 8000", rate)
	}
	if got := int16(binary.LittleEndian.Uint16(data[wavHeaderSize+2:])); got != samples[1] {
		t.Errorf("sample[1] = %d, want %d", got, samples[1])
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("ogg", DefaultSampleRate); err == nil {
		t.Fatal("expected error for unknown format")
	}
	enc, err := New(FormatWAV, DefaultSampleRate)
	if err != nil {
		t.Fatalf("New(wav): %v", err)
	}
	if enc.MimeType() != "audio/wav" {
		t.Errorf("MimeType = %q", enc.MimeType())
	}
}
