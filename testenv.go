package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ama/audio"
	"ama/beep"
	"ama/config"
	"ama/dialogue"
	"ama/log"
)

const waitTimeout = 10 * time.Second

// stateLog records every state entered so WAIT can match transitions that
// already happened between two commands.
type stateLog struct {
	mu      sync.Mutex
	entered []dialogue.State
	changed chan struct{}
}

func newStateLog() *stateLog {
	return &stateLog{changed: make(chan struct{}, 1)}
}

func (s *stateLog) StateChanged(ch dialogue.Change) {
	s.mu.Lock()
	s.entered = append(s.entered, ch.To)
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *stateLog) Notice(string) {}

// waitFor blocks until want is entered at or after index from. It returns the
// index just past the match.
func (s *stateLog) waitFor(want string, from int, timeout time.Duration) (int, bool) {
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		for i := from; i < len(s.entered); i++ {
			if strings.EqualFold(s.entered[i].String(), want) {
				s.mu.Unlock()
				return i + 1, true
			}
		}
		s.mu.Unlock()
		select {
		case <-s.changed:
		case <-deadline:
			return from, false
		}
	}
}

// runTestMode drives the agent from stdin against a WAV file standing in for
// the microphone. It returns the process exit code.
func runTestMode(wavPath string, cfg *config.Config) int {
	beep.Disable()

	actx, err := audio.LoadFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	c := defaultCollaborators(cfg)
	a, err := newAgent(actx, cfg, nil, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	log.SessionStart("fake", cfg.Audio.Format, c.transcriber.Name(), "echo")

	states := newStateLog()
	a.addSink(states)
	a.addSink(lineSink{w: os.Stdout})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.orch.Run(ctx)

	return drive(os.Stdin, os.Stdout, a.orch, states)
}

// drive executes one command per line until QUIT or end of input.
func drive(in io.Reader, out io.Writer, orch *dialogue.Orchestrator, states *stateLog) int {
	cursor := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "START":
			orch.RequestStart()
		case "STOP":
			orch.RequestStop()
		case "TOGGLE":
			orch.Toggle()
		case "INTERRUPT":
			orch.RequestInterrupt()
		case "HIDE":
			orch.RequestHide()
		case "WAIT":
			if len(fields) < 2 {
				fmt.Fprintln(out, "ERROR WAIT needs a state")
				return 1
			}
			next, ok := states.waitFor(fields[1], cursor, waitTimeout)
			if !ok {
				fmt.Fprintf(out, "TIMEOUT %s\n", strings.ToLower(fields[1]))
				return 1
			}
			cursor = next
		case "SLEEP":
			if len(fields) > 1 {
				if ms, err := strconv.Atoi(fields[1]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		case "QUIT":
			return 0
		default:
			fmt.Fprintf(out, "ERROR unknown command %q\n", fields[0])
		}
	}
	return 0
}
