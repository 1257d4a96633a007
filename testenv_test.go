package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"ama/audio"
	"ama/beep"
	"ama/config"
	"ama/dialogue"
)

func tonePCM(seconds float64) []byte {
	n := int(16000 * seconds)
	buf := make([]byte, n*2)
	for i := range n {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/16000) * 16000)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// lockedBuffer is written by the orchestrator goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Silence.Timeout = 150 * time.Millisecond
	cfg.Silence.Poll = 10 * time.Millisecond
	cfg.Dialogue.RestartAfterTalk = 50 * time.Millisecond
	cfg.Dialogue.RestartAfterNoSpeech = 50 * time.Millisecond
	return cfg
}

func TestStateLogWaitFor(t *testing.T) {
	s := newStateLog()
	s.StateChanged(dialogue.Change{From: dialogue.Idle, To: dialogue.Listening})
	s.StateChanged(dialogue.Change{From: dialogue.Listening, To: dialogue.Thinking})

	next, ok := s.waitFor("LISTENING", 0, 10*time.Millisecond)
	if !ok || next != 1 {
		t.Fatalf("waitFor listening = %d, %v", next, ok)
	}
	if _, ok := s.waitFor("listening", next, 20*time.Millisecond); ok {
		t.Fatal("listening matched twice")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.StateChanged(dialogue.Change{From: dialogue.Thinking, To: dialogue.Talking})
	}()
	if _, ok := s.waitFor("talking", next, time.Second); !ok {
		t.Fatal("talking not observed")
	}
}

func TestDriveFullTurn(t *testing.T) {
	beep.Disable()
	cfg := testConfig()
	cfg.Transcriber.Text = "what time is it"

	a, err := newAgent(audio.NewFakeContext(tonePCM(0.4), true), cfg, nil, defaultCollaborators(cfg))
	if err != nil {
		t.Fatalf("newAgent: %v", err)
	}
	defer a.Close()

	var out lockedBuffer
	states := newStateLog()
	a.addSink(states)
	a.addSink(lineSink{w: &out})
	go a.orch.Run(t.Context())

	script := "START\nWAIT thinking\nWAIT talking\nWAIT listening\nHIDE\nWAIT idle\nQUIT\n"
	if code := drive(strings.NewReader(script), &out, a.orch, states); code != 0 {
		t.Fatalf("drive = %d\n%s", code, out.String())
	}

	got := out.String()
	for _, want := range []string{
		"STATE idle listening start",
		"STATE listening thinking end_of_turn",
		"STATE thinking talking reply",
		"HEARD what time is it",
		"REPLY ",
		"STATE talking listening finished",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := a.turns.Load(); n < 1 {
		t.Errorf("turns = %d, want at least 1", n)
	}
}

func TestDriveWaitNeedsState(t *testing.T) {
	var out bytes.Buffer
	s := newStateLog()
	done := make(chan int, 1)
	go func() { done <- drive(strings.NewReader("WAIT"), &out, nil, s) }()
	if code := <-done; code != 1 {
		t.Fatalf("drive = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "ERROR") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDriveUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if code := drive(strings.NewReader("DANCE\nQUIT\n"), &out, nil, newStateLog()); code != 0 {
		t.Fatalf("drive = %d", code)
	}
	if !strings.Contains(out.String(), `unknown command "DANCE"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestLineSink(t *testing.T) {
	var out bytes.Buffer
	l := lineSink{w: &out}
	l.StateChanged(dialogue.Change{From: dialogue.Listening, To: dialogue.Idle, Event: dialogue.EventNoSpeech, Status: "didn't catch that"})
	l.Notice("hotkey unavailable")
	want := "STATE listening idle no_speech\nSTATUS didn't catch that\nNOTICE hotkey unavailable\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}
