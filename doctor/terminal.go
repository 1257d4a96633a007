package doctor

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// terminal remembers the tty mode at startup so it can be put back after
// a hotkey grab or an interrupt.
type terminal struct {
	fd    int
	state *term.State
}

func saveTerminal() *terminal {
	fd := int(os.Stdin.Fd())
	t := &terminal{fd: fd}
	if term.IsTerminal(fd) {
		t.state, _ = term.GetState(fd)
	}
	return t
}

func (t *terminal) restore() {
	if t.state != nil {
		term.Restore(t.fd, t.state)
	}
}

func (t *terminal) onInterrupt() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		t.restore()
		println("\nInterrupted")
		os.Exit(1)
	}()
}
