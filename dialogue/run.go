package dialogue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ama/interrupt"
)

// run is one listen, transcribe, respond, speak attempt. Everything it
// acquires is registered with ctl so a single Interrupt releases it.
type run struct {
	id       string
	trigger  string
	started  time.Time
	ctl      *interrupt.Controller
	recorder Recorder
	prompt   string
}

func newRun(parent context.Context, trigger string, logger zerolog.Logger) *run {
	id := uuid.NewString()
	return &run{
		id:      id,
		trigger: trigger,
		started: time.Now(),
		ctl:     interrupt.NewController(parent, logger.With().Str("run", id[:8]).Logger()),
	}
}

func (r *run) token() *interrupt.Token { return r.ctl.Token() }
