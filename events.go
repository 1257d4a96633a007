package main

import (
	"fmt"
	"io"

	"ama/dialogue"
	"ama/feed"
)

// EventSink abstracts the display layer so the TUI, the headless printer and
// the websocket feed all receive the same transitions.
type EventSink interface {
	StateChanged(ch dialogue.Change)
	Notice(text string)
}

type feedSink struct{ srv *feed.Server }

func (f feedSink) StateChanged(ch dialogue.Change) { f.srv.Publish(ch) }
func (f feedSink) Notice(string)                   {}

// lineSink prints one line per event, for headless and scripted runs.
type lineSink struct{ w io.Writer }

func (l lineSink) StateChanged(ch dialogue.Change) {
	fmt.Fprintf(l.w, "STATE %s %s %s\n", ch.From, ch.To, ch.Event)
	if ch.Event == dialogue.EventReply {
		fmt.Fprintf(l.w, "HEARD %s\n", ch.Transcript)
		fmt.Fprintf(l.w, "REPLY %s\n", ch.Reply)
	}
	if ch.Status != "" && ch.To == dialogue.Idle {
		fmt.Fprintf(l.w, "STATUS %s\n", ch.Status)
	}
}

func (l lineSink) Notice(text string) { fmt.Fprintf(l.w, "NOTICE %s\n", text) }
