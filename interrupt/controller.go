package interrupt

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type step struct {
	name string
	fn   func()
}

// Controller pairs a run's Token with the teardown of everything the run
// acquired. Interrupt may be called from any goroutine, any number of times.
type Controller struct {
	token  *Token
	logger zerolog.Logger

	mu    sync.Mutex
	steps []step
	done  bool
}

func NewController(parent context.Context, logger zerolog.Logger) *Controller {
	return &Controller{token: NewToken(parent), logger: logger}
}

func (c *Controller) Token() *Token { return c.token }

// OnTeardown registers fn to run on Interrupt. Steps run newest first. A step
// registered after Interrupt has already run is executed immediately.
func (c *Controller) OnTeardown(name string, fn func()) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		c.logger.Debug().Str("step", name).Msg("late teardown")
		fn()
		return
	}
	c.steps = append(c.steps, step{name: name, fn: fn})
	c.mu.Unlock()
}

// Interrupt cancels the token and tears the run down. It reports whether
// this call performed the teardown.
func (c *Controller) Interrupt() bool {
	c.token.Cancel()

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	c.done = true
	steps := c.steps
	c.steps = nil
	c.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		c.logger.Debug().Str("step", steps[i].name).Msg("teardown")
		steps[i].fn()
	}
	return true
}

func (c *Controller) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
