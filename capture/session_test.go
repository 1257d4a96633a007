package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ama/audio"
	"ama/encoder"
)

// tonePCM returns d of a 440 Hz tone as S16LE at 16 kHz.
func tonePCM(d time.Duration) []byte {
	n := int(d.Seconds() * encoder.DefaultSampleRate)
	buf := make([]byte, n*2)
	for i := range n {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/encoder.DefaultSampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func testConfig(timeout time.Duration) Config {
	return Config{
		Format: encoder.FormatFLAC,
		Silence: SilenceConfig{
			Threshold:    DefaultThreshold,
			Timeout:      timeout,
			PollInterval: 5 * time.Millisecond,
		},
	}
}

func TestSessionStopsOnSilence(t *testing.T) {
	actx := audio.NewFakeContext(tonePCM(300*time.Millisecond), false)
	s := NewSession(actx, testConfig(50*time.Millisecond), zerolog.Nop())

	silence := make(chan struct{}, 1)
	if err := s.Start(func() { silence <- struct{}{} }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-silence:
	case <-time.After(3 * time.Second):
		t.Fatal("silence timeout never fired")
	}

	seg, ok, err := s.Stop(StopSilence)
	if err != nil || !ok {
		t.Fatalf("Stop = ok %v err %v", ok, err)
	}
	if seg.MimeType != "audio/flac" || string(seg.Data[:4]) != "fLaC" {
		t.Fatalf("unexpected segment encoding %q", seg.MimeType)
	}
	if seg.Duration < 300*time.Millisecond {
		t.Errorf("Duration = %v, want at least 300ms", seg.Duration)
	}
	if seg.Peak < 0.1 {
		t.Errorf("Peak = %f, want speech-level peak", seg.Peak)
	}
	if seg.SampleRate != encoder.DefaultSampleRate || seg.Channels != 1 {
		t.Errorf("format = %d Hz x%d", seg.SampleRate, seg.Channels)
	}
}

func TestSessionCancelledYieldsNoSegment(t *testing.T) {
	actx := audio.NewFakeContext(tonePCM(200*time.Millisecond), false)
	s := NewSession(actx, testConfig(time.Hour), zerolog.Nop())
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	seg, ok, err := s.Stop(StopCancelled)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ok || !seg.Empty() {
		t.Fatalf("cancelled stop produced a segment: %+v", seg)
	}
}

func TestSessionStopIdempotent(t *testing.T) {
	s := NewSession(audio.NewFakeContext(nil, false), testConfig(time.Hour), zerolog.Nop())
	if _, ok, err := s.Stop(StopManual); ok || err != nil {
		t.Fatalf("Stop before Start = ok %v err %v", ok, err)
	}
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := s.Stop(StopManual); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	for i := range 3 {
		if _, ok, err := s.Stop(StopManual); ok || err != nil {
			t.Fatalf("Stop #%d = ok %v err %v", i+2, ok, err)
		}
	}
	if err := s.Start(nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("restart err = %v, want ErrAlreadyStarted", err)
	}
}

func TestSessionManualStopDoesNotFireSilence(t *testing.T) {
	s := NewSession(audio.NewFakeContext(nil, false), testConfig(40*time.Millisecond), zerolog.Nop())
	fired := make(chan struct{}, 1)
	if err := s.Start(func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := s.Stop(StopManual); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-fired:
		t.Fatal("silence fired after manual stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionLevel(t *testing.T) {
	actx := audio.NewFakeContext(tonePCM(2*time.Second), true)
	s := NewSession(actx, testConfig(time.Hour), zerolog.Nop())
	if got := s.Level(); got != 0 {
		t.Fatalf("Level before Start = %f", got)
	}
	if err := s.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Level() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Level() == 0 {
		t.Fatal("Level stayed 0 while capturing a tone")
	}
	s.Stop(StopCancelled)
	if got := s.Level(); got != 0 {
		t.Fatalf("Level after Stop = %f, want 0", got)
	}
}

func TestSessionStartErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission", fmt.Errorf("open mic: %w", os.ErrPermission), ErrPermissionDenied},
		{"no device", audio.ErrNoDevice, ErrNoDevice},
	}
	for _, tt := range tests {
		actx := audio.NewFakeContext(nil, false)
		actx.CaptureErr = tt.err
		s := NewSession(actx, testConfig(time.Hour), zerolog.Nop())

		err := s.Start(nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		var capErr *Error
		if !errors.As(err, &capErr) || capErr.Op != "open" {
			t.Errorf("%s: err %v is not a *capture.Error from open", tt.name, err)
		}
		if _, ok, err := s.Stop(StopManual); ok || err != nil {
			t.Errorf("%s: Stop after failed Start = ok %v err %v", tt.name, ok, err)
		}
	}
}
