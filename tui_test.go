package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ama/dialogue"
)

type fakeControls struct {
	calls  []string
	input  float64
	output float64
}

func (f *fakeControls) Toggle()              { f.calls = append(f.calls, "toggle") }
func (f *fakeControls) RequestStop()         { f.calls = append(f.calls, "stop") }
func (f *fakeControls) RequestInterrupt()    { f.calls = append(f.calls, "interrupt") }
func (f *fakeControls) RequestHide()         { f.calls = append(f.calls, "hide") }
func (f *fakeControls) InputLevel() float64  { return f.input }
func (f *fakeControls) OutputLevel() float64 { return f.output }

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTUIKeys(t *testing.T) {
	fc := &fakeControls{}
	var m tea.Model = newTUIModel(fc, "mic: fake")
	for _, k := range []string{" ", "s", "i", "h", "x"} {
		m, _ = m.Update(key(k))
	}
	got := strings.Join(fc.calls, ",")
	if got != "toggle,stop,interrupt,hide" {
		t.Errorf("calls = %s", got)
	}
	if !m.(tuiModel).hidden {
		t.Error("h did not hide the eye")
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestTUIStateMsg(t *testing.T) {
	var m tea.Model = newTUIModel(&fakeControls{}, "")
	m, _ = m.Update(StateMsg{Change: dialogue.Change{
		From: dialogue.Thinking, To: dialogue.Talking, Event: dialogue.EventReply,
		Transcript: "hi there", Reply: "hello",
	}})
	tm := m.(tuiModel)
	if tm.state != dialogue.Talking || tm.turns != 1 || tm.reply != "hello" {
		t.Fatalf("model = %+v", tm)
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	for _, want := range []string{"TALKING", "you: hi there", "ama: hello"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTUIStatusShownWhenIdle(t *testing.T) {
	var m tea.Model = newTUIModel(&fakeControls{}, "mic: fake")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(StateMsg{Change: dialogue.Change{
		From: dialogue.Listening, To: dialogue.Idle, Event: dialogue.EventFail,
		Status: "microphone permission denied",
	}})
	view := m.View()
	if !strings.Contains(view, "microphone permission denied") {
		t.Error("status not rendered")
	}
	if !strings.Contains(view, "mic: fake") {
		t.Error("device line not rendered")
	}
}

func TestTUILevelFollowsState(t *testing.T) {
	fc := &fakeControls{input: 0.5, output: 0.2}
	m := newTUIModel(fc, "")
	if m.liveLevel() != 0 {
		t.Error("idle should not follow any level")
	}
	m.state = dialogue.Listening
	if m.liveLevel() != 0.5 {
		t.Errorf("listening level = %v", m.liveLevel())
	}
	m.state = dialogue.Talking
	if m.liveLevel() != 0.2 {
		t.Errorf("talking level = %v", m.liveLevel())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps" {
		t.Errorf("lines = %q", lines)
	}
}
