package dialogue

import "time"

// State is the agent indicator shown to the user.
type State string

const (
	Idle      State = "idle"
	Listening State = "listening"
	Thinking  State = "thinking"
	Talking   State = "talking"
)

func (s State) String() string { return string(s) }

// FSM event names, reported in Change.Event.
const (
	EventStart     = "start"
	EventEndOfTurn = "end_of_turn"
	EventReply     = "reply"
	EventNoSpeech  = "no_speech"
	EventFinished  = "finished"
	EventBargeIn   = "barge_in"
	EventCancel    = "cancel"
	EventReset     = "reset"
	EventFail      = "fail"
	EventHide      = "hide"
)

// Change describes one state transition.
type Change struct {
	From   State
	To     State
	Event  string
	RunID  string
	Status string
	// Err is ErrNoSpeech on EventNoSpeech and a *StageError on EventFail.
	Err error
	// Transcript and Reply are set on EventReply.
	Transcript string
	Reply      string
	At         time.Time
}
