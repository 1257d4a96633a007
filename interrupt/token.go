// Package interrupt carries barge-in cancellation across the stages of one
// pipeline run.
package interrupt

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrCancelled marks results dropped because the run was interrupted. It is
// never shown to the user.
var ErrCancelled = errors.New("cancelled")

// Token is a set-once cancellation flag bound to a context. Cancelling the
// token also cancels its context, so blocking calls that honour ctx return
// early; calls that don't are discarded by checking Cancelled on return.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
	set    atomic.Bool
}

func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel sets the flag. It reports whether this call was the one that set it.
func (t *Token) Cancel() bool {
	if !t.set.CompareAndSwap(false, true) {
		return false
	}
	t.cancel()
	return true
}

func (t *Token) Cancelled() bool { return t.set.Load() }

func (t *Token) Context() context.Context { return t.ctx }

// Err returns ErrCancelled once the token is set, nil otherwise.
func (t *Token) Err() error {
	if t.set.Load() {
		return ErrCancelled
	}
	return nil
}

// IsCancelled reports whether err stems from an interrupt, either a set token
// or a cancelled context.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
