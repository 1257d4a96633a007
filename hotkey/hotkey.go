// Package hotkey delivers the global Ctrl+Shift+Space shortcut.
package hotkey

import "errors"

// ErrNoKeyboard is returned by Register when no keyboard can be read.
var ErrNoKeyboard = errors.New("no readable keyboard device")

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// notify delivers a key edge without blocking; an unread edge absorbs the
// next one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
