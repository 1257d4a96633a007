// Package playback turns reply text into gapless speech on the audio clock.
package playback

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ama/interrupt"
	"ama/tts"
)

const (
	DefaultLeadIn       = 50 * time.Millisecond
	DefaultEpsilon      = 10 * time.Millisecond
	DefaultPollInterval = 20 * time.Millisecond
)

// Sink is where scheduled chunks are played. Timeline is the real one.
type Sink interface {
	Now() time.Duration
	SampleRate() int
	Schedule(c *Chunk)
	Clear()
	Level() float64
}

type Config struct {
	LeadIn       time.Duration
	Epsilon      time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.LeadIn <= 0 {
		c.LeadIn = DefaultLeadIn
	}
	if c.Epsilon <= 0 {
		c.Epsilon = DefaultEpsilon
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

type schedule struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler synthesizes and queues reply chunks back to back. At most one
// schedule is active; starting a new one stops the previous.
type Scheduler struct {
	sink   Sink
	synth  tts.Synthesizer
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	active *schedule
}

func NewScheduler(sink Sink, synth tts.Synthesizer, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{sink: sink, synth: synth, cfg: cfg.withDefaults(), logger: logger}
}

func (s *Scheduler) begin(ctx context.Context) *schedule {
	sctx, cancel := context.WithCancel(ctx)
	sched := &schedule{ctx: sctx, cancel: cancel}

	s.mu.Lock()
	prev := s.active
	s.active = sched
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		s.sink.Clear()
	}
	return sched
}

func (s *Scheduler) end(sched *schedule, err error) {
	s.mu.Lock()
	current := s.active == sched
	if current {
		s.active = nil
	}
	s.mu.Unlock()

	sched.cancel()
	if current && err != nil {
		s.sink.Clear()
	}
}

func checkpoint(sched *schedule, tok *interrupt.Token) error {
	if (tok != nil && tok.Cancelled()) || sched.ctx.Err() != nil {
		return interrupt.ErrCancelled
	}
	return nil
}

// Play speaks texts in order and returns once the last chunk has finished
// on the audio clock. It returns interrupt.ErrCancelled if stopped or if tok
// is cancelled, and stops scheduling further chunks at that point.
func (s *Scheduler) Play(ctx context.Context, tok *interrupt.Token, texts []string) (err error) {
	sched := s.begin(ctx)
	defer func() { s.end(sched, err) }()

	rate := s.sink.SampleRate()
	nextStart := s.sink.Now() + s.cfg.LeadIn
	var last time.Duration

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := checkpoint(sched, tok); err != nil {
			return err
		}

		data, serr := s.synth.Synthesize(sched.ctx, text)
		if err := checkpoint(sched, tok); err != nil {
			return err
		}
		if serr != nil {
			return &SynthesisError{Index: i, Err: serr}
		}

		samples, derr := Decode(data, rate)
		if err := checkpoint(sched, tok); err != nil {
			return err
		}
		if derr != nil {
			return &DecodeError{Index: i, Err: derr}
		}
		if len(samples) == 0 {
			continue
		}

		if now := s.sink.Now(); nextStart < now {
			s.logger.Debug().Int("chunk", i).Dur("late", now-nextStart).Msg("chunk late, clamping start")
			nextStart = now + s.cfg.Epsilon
		}
		c := &Chunk{
			Index:    i,
			Text:     text,
			Samples:  samples,
			Start:    nextStart,
			Duration: time.Duration(len(samples)) * time.Second / time.Duration(rate),
		}
		// Stop clears the sink after dropping the active schedule, so a chunk
		// is only queued while this schedule still owns it.
		s.mu.Lock()
		if s.active != sched || checkpoint(sched, tok) != nil {
			s.mu.Unlock()
			return interrupt.ErrCancelled
		}
		s.sink.Schedule(c)
		s.mu.Unlock()
		s.logger.Debug().Int("chunk", i).Dur("start", c.Start).Dur("duration", c.Duration).Msg("chunk scheduled")

		nextStart = c.End()
		last = nextStart
	}

	return s.wait(sched, tok, last)
}

func (s *Scheduler) wait(sched *schedule, tok *interrupt.Token, until time.Duration) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := checkpoint(sched, tok); err != nil {
			return err
		}
		if s.sink.Now() >= until {
			return nil
		}
		select {
		case <-sched.ctx.Done():
		case <-ticker.C:
		}
	}
}

// Stop halts all scheduled and playing chunks. It is a no-op when nothing
// is playing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	sched := s.active
	s.active = nil
	s.mu.Unlock()
	if sched == nil {
		return
	}
	sched.cancel()
	s.sink.Clear()
	s.logger.Debug().Msg("playback stopped")
}

func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Level is the loudness of the audio currently being rendered.
func (s *Scheduler) Level() float64 { return s.sink.Level() }
