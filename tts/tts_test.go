package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

func TestToneSynthDuration(t *testing.T) {
	s := NewTone()
	data, err := s.Synthesize(context.Background(), "hello brave new world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(data[:4]) != "RIFF" {
		t.Fatal("output is not WAV")
	}
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	frames := dataSize / 2
	// 4 words x (120ms tone + 40ms gap) at 16 kHz
	if want := 4 * (1920 + 640); frames != want {
		t.Fatalf("frames = %d, want %d", frames, want)
	}
}

func TestToneSynthPitchVariesByWord(t *testing.T) {
	if wordFreq("hello") == wordFreq("world") {
		t.Skip("hash collision between test words")
	}
	if wordFreq("Hello") != wordFreq("hello") {
		t.Fatal("pitch should ignore case")
	}
}

func TestToneSynthCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTone().Synthesize(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestFakeSynthByText(t *testing.T) {
	f := NewFake([]byte("default"), nil)
	f.ByText = map[string][]byte{"a": []byte("A")}
	got, _ := f.Synthesize(context.Background(), "a")
	other, _ := f.Synthesize(context.Background(), "b")
	if string(got) != "A" || string(other) != "default" {
		t.Fatalf("got %q %q", got, other)
	}
	if texts := f.Texts(); len(texts) != 2 || texts[1] != "b" {
		t.Fatalf("Texts = %v", texts)
	}
}
