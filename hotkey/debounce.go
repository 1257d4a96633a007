package hotkey

import (
	"context"
	"time"
)

const DefaultDebounce = 300 * time.Millisecond

// Debounce turns key presses into shortcut activations. A press arriving
// within window of the last accepted one is dropped, so key repeat and
// bouncing switches do not toggle the agent twice. The returned channel is
// closed when ctx is done.
func Debounce(ctx context.Context, hk Hotkey, window time.Duration) <-chan time.Time {
	if window <= 0 {
		window = DefaultDebounce
	}
	out := make(chan time.Time, 1)
	go func() {
		defer close(out)
		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keyup():
				// releases carry no meaning for a toggle shortcut
			case <-hk.Keydown():
				now := time.Now()
				if !last.IsZero() && now.Sub(last) < window {
					continue
				}
				last = now
				select {
				case out <- now:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
