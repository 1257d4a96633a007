// Package dialogue runs the conversational turn: listen, transcribe, respond,
// speak, with barge-in from any entry point at any time.
package dialogue

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"ama/audio"
	"ama/capture"
	"ama/interrupt"
	"ama/llm"
	"ama/playback"
	"ama/transcriber"
)

const (
	DefaultRestartAfterTalk     = 500 * time.Millisecond
	DefaultRestartAfterNoSpeech = 1500 * time.Millisecond
	DefaultMinSegment           = 100 * time.Millisecond
)

type Config struct {
	RestartAfterTalk     time.Duration
	RestartAfterNoSpeech time.Duration
	// Segments shorter than MinSegment, or whose peak level stays under
	// SpeechThreshold, are treated as no speech without calling the
	// transcriber.
	MinSegment      time.Duration
	SpeechThreshold float64
	MaxChunkChars   int
}

func (c Config) withDefaults() Config {
	if c.RestartAfterTalk <= 0 {
		c.RestartAfterTalk = DefaultRestartAfterTalk
	}
	if c.RestartAfterNoSpeech <= 0 {
		c.RestartAfterNoSpeech = DefaultRestartAfterNoSpeech
	}
	if c.MinSegment <= 0 {
		c.MinSegment = DefaultMinSegment
	}
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = capture.DefaultThreshold
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = playback.DefaultMaxChunkChars
	}
	return c
}

// Recorder is one microphone capture. *capture.Session implements it.
type Recorder interface {
	Start(onSilence func()) error
	Stop(reason capture.StopReason) (audio.Segment, bool, error)
	Level() float64
}

// Player speaks reply chunks. *playback.Scheduler implements it.
type Player interface {
	Play(ctx context.Context, tok *interrupt.Token, texts []string) error
	Stop()
	Level() float64
}

type Deps struct {
	// NewRecorder returns a fresh, unstarted recorder for each run.
	NewRecorder func() Recorder
	Transcriber transcriber.Transcriber
	Model       llm.Responder
	Player      Player
}

type msgKind int

const (
	msgStart msgKind = iota
	msgStop
	msgToggle
	msgInterrupt
	msgHide
	msgSilence
	msgTranscribed
	msgReplied
	msgPlayed
	msgRestart
)

type message struct {
	kind   msgKind
	manual bool
	resume bool
	runID  string
	gen    uint64
	text   string
	err    error
}

// Orchestrator owns the agent state. All mutation happens on the goroutine
// running Run; the Request methods only enqueue messages.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	machine *fsm.FSM
	inbox   chan message
	quit    chan struct{}
	done    chan struct{}
	running atomic.Bool
	once    sync.Once

	// owned by the Run goroutine
	ctx        context.Context
	run        *run
	lastRun    string
	restart    *time.Timer
	restartGen uint64
	lastErr    error
	pending    Change

	state   atomic.Value
	current atomic.Pointer[run]

	mu       sync.Mutex
	status   string
	watchers []func(Change)
}

func New(cfg Config, deps Deps, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: logger,
		inbox:  make(chan message, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	o.state.Store(Idle)

	all := []string{string(Idle), string(Listening), string(Thinking), string(Talking)}
	o.machine = fsm.NewFSM(string(Idle), fsm.Events{
		{Name: EventStart, Src: []string{string(Idle)}, Dst: string(Listening)},
		{Name: EventEndOfTurn, Src: []string{string(Listening)}, Dst: string(Thinking)},
		{Name: EventReply, Src: []string{string(Thinking)}, Dst: string(Talking)},
		{Name: EventNoSpeech, Src: []string{string(Thinking)}, Dst: string(Idle)},
		{Name: EventFinished, Src: []string{string(Talking)}, Dst: string(Listening)},
		{Name: EventBargeIn, Src: []string{string(Talking)}, Dst: string(Listening)},
		{Name: EventCancel, Src: []string{string(Listening), string(Thinking)}, Dst: string(Idle)},
		{Name: EventReset, Src: []string{string(Listening), string(Thinking), string(Talking)}, Dst: string(Idle)},
		{Name: EventFail, Src: all, Dst: string(Idle)},
		{Name: EventHide, Src: all, Dst: string(Idle)},
	}, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			o.entered(State(e.Src), State(e.Dst), e.Event)
		},
	})
	return o
}

// State returns the current agent state.
func (o *Orchestrator) State() State { return o.state.Load().(State) }

// Status returns the last user-facing status message, empty when none.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Watch registers fn to be called for every transition. fn runs on the
// orchestrator goroutine and must not block.
func (o *Orchestrator) Watch(fn func(Change)) {
	o.mu.Lock()
	o.watchers = append(o.watchers, fn)
	o.mu.Unlock()
}

// InputLevel is the live microphone loudness, 0 when not capturing.
func (o *Orchestrator) InputLevel() float64 {
	r := o.current.Load()
	if r == nil || r.recorder == nil {
		return 0
	}
	return r.recorder.Level()
}

// OutputLevel is the loudness of the speech being played.
func (o *Orchestrator) OutputLevel() float64 { return o.deps.Player.Level() }

// RequestStart begins listening. If a run is in progress it is interrupted
// first.
func (o *Orchestrator) RequestStart() { o.post(message{kind: msgStart, manual: true}) }

// RequestStop ends the user's turn early, as if silence had been detected.
func (o *Orchestrator) RequestStop() { o.post(message{kind: msgStop}) }

// Toggle is the single-button action: start when idle, finish the turn when
// listening, interrupt when thinking or talking.
func (o *Orchestrator) Toggle() { o.post(message{kind: msgToggle}) }

// RequestInterrupt is barge-in: it aborts whatever stage is in flight.
func (o *Orchestrator) RequestInterrupt() { o.post(message{kind: msgInterrupt}) }

// RequestHide tears everything down and returns to Idle.
func (o *Orchestrator) RequestHide() { o.post(message{kind: msgHide}) }

func (o *Orchestrator) post(m message) {
	select {
	case o.inbox <- m:
	case <-o.quit:
	case <-o.done:
	}
}

// Run processes messages until ctx is done or Close is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("dialogue: Run called twice")
	}
	defer close(o.done)
	o.ctx = ctx
	defer o.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.quit:
			return nil
		case m := <-o.inbox:
			o.handle(m)
		}
	}
}

// Close stops Run and waits for it to release all resources.
func (o *Orchestrator) Close() {
	o.once.Do(func() { close(o.quit) })
	if o.running.Load() {
		<-o.done
	}
}

func (o *Orchestrator) shutdown() {
	o.cancelRestart()
	o.endRun()
	o.deps.Player.Stop()
	o.fire(EventHide)
}

func (o *Orchestrator) handle(m message) {
	switch m.kind {
	case msgStart:
		o.onStart(m.manual)
	case msgStop:
		o.onStop()
	case msgToggle:
		o.onToggle()
	case msgInterrupt:
		o.onInterrupt()
	case msgHide:
		o.onHide()
	case msgSilence:
		if o.isCurrent(m.runID, Listening) {
			o.endOfTurn(capture.StopSilence)
		}
	case msgTranscribed:
		if o.isCurrent(m.runID, Thinking) {
			o.onTranscribed(m.text, m.err)
		}
	case msgReplied:
		if o.isCurrent(m.runID, Thinking) {
			o.onReplied(m.text, m.err)
		}
	case msgPlayed:
		if o.isCurrent(m.runID, Talking) {
			o.onPlayed(m.err)
		}
	case msgRestart:
		o.onRestart(m)
	}
}

// isCurrent reports whether a stage result belongs to the live run and
// arrived in the state that expects it. Anything else is stale.
func (o *Orchestrator) isCurrent(runID string, want State) bool {
	if o.run == nil || o.run.id != runID || o.run.token().Cancelled() || o.State() != want {
		o.logger.Debug().Str("run", runID).Str("state", o.State().String()).Msg("dropping stale result")
		return false
	}
	return true
}

func (o *Orchestrator) fire(event string) bool {
	err := o.machine.Event(context.Background(), event)
	if err == nil {
		return true
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return true
	}
	o.logger.Debug().Err(err).Str("event", event).Msg("transition rejected")
	return false
}

func (o *Orchestrator) entered(from, to State, event string) {
	o.state.Store(to)

	ch := o.pending
	o.pending = Change{}
	ch.From, ch.To, ch.Event = from, to, event
	ch.RunID = o.lastRun
	ch.Status = o.Status()
	ch.Err = o.lastErr
	ch.At = time.Now()
	o.lastErr = nil

	o.logger.Info().Str("from", from.String()).Str("to", to.String()).Str("event", event).
		Str("run", ch.RunID).Msg("state")

	o.mu.Lock()
	watchers := slices.Clone(o.watchers)
	o.mu.Unlock()
	for _, w := range watchers {
		w(ch)
	}
}

func (o *Orchestrator) setStatus(s string) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

func (o *Orchestrator) onStart(manual bool) {
	if state := o.State(); state != Idle {
		if !manual {
			o.logger.Debug().Str("state", state.String()).Msg("automatic start ignored")
			return
		}
		o.cancelRestart()
		o.endRun()
		o.fire(EventReset)
	}
	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	o.setStatus("")
	o.beginRun(trigger, EventStart)
}

// beginRun creates the next run, fires event (if any) and opens the
// microphone. The previous run must already be torn down.
func (o *Orchestrator) beginRun(trigger, event string) {
	o.cancelRestart()
	o.endRun()

	r := newRun(o.ctx, trigger, o.logger)
	rec := o.deps.NewRecorder()
	r.recorder = rec
	r.ctl.OnTeardown("capture", func() { rec.Stop(capture.StopCancelled) })
	o.run, o.lastRun = r, r.id
	o.current.Store(r)

	if event != "" && !o.fire(event) {
		o.endRun()
		return
	}
	if err := rec.Start(func() { o.post(message{kind: msgSilence, runID: r.id}) }); err != nil {
		o.fail(StageCapture, err)
		return
	}
	o.logger.Debug().Str("run", r.id).Str("trigger", trigger).Msg("listening")
}

// endRun interrupts and forgets the current run. Safe to call when none.
func (o *Orchestrator) endRun() {
	r := o.run
	if r == nil {
		return
	}
	o.run = nil
	o.current.Store(nil)
	r.ctl.Interrupt()
}

func (o *Orchestrator) onStop() {
	if o.State() == Listening && o.run != nil {
		o.endOfTurn(capture.StopManual)
	}
}

func (o *Orchestrator) onToggle() {
	switch o.State() {
	case Idle:
		o.onStart(true)
	case Listening:
		if o.run != nil {
			o.endOfTurn(capture.StopManual)
			return
		}
		// Waiting to resume after a reply: start capturing now.
		o.beginRun("manual", "")
	default:
		o.onInterrupt()
	}
}

func (o *Orchestrator) onInterrupt() {
	o.cancelRestart()
	switch o.State() {
	case Listening, Thinking:
		o.endRun()
		o.fire(EventCancel)
	case Talking:
		o.endRun()
		o.beginRun("barge-in", EventBargeIn)
	}
}

func (o *Orchestrator) onHide() {
	o.cancelRestart()
	o.endRun()
	o.deps.Player.Stop()
	o.setStatus("")
	o.fire(EventHide)
}

func (o *Orchestrator) endOfTurn(reason capture.StopReason) {
	r := o.run
	seg, ok, err := r.recorder.Stop(reason)
	if !o.fire(EventEndOfTurn) {
		return
	}
	if err != nil {
		o.fail(StageCapture, err)
		return
	}
	if !ok || seg.Empty() || seg.Duration < o.cfg.MinSegment || seg.Peak < o.cfg.SpeechThreshold {
		o.noSpeech()
		return
	}
	o.logger.Debug().Str("run", r.id).Str("reason", reason.String()).Dur("audio", seg.Duration).
		Float64("peak", seg.Peak).Msg("turn ended")
	go o.transcribe(r, seg)
}

func (o *Orchestrator) transcribe(r *run, seg audio.Segment) {
	tok := r.token()
	t0 := time.Now()
	text, err := o.deps.Transcriber.Transcribe(tok.Context(), seg)
	if tok.Cancelled() {
		return
	}
	o.logger.Debug().Str("run", r.id).Dur("took", time.Since(t0)).Msg("transcribed")
	o.post(message{kind: msgTranscribed, runID: r.id, text: text, err: err})
}

func (o *Orchestrator) onTranscribed(text string, err error) {
	if err != nil {
		o.fail(StageTranscribe, err)
		return
	}
	text = transcriber.Clean(text)
	if text == "" {
		o.noSpeech()
		return
	}
	o.run.prompt = text
	go o.respond(o.run, text)
}

func (o *Orchestrator) respond(r *run, prompt string) {
	tok := r.token()
	t0 := time.Now()
	reply, err := o.generate(tok, prompt)
	if tok.Cancelled() {
		return
	}
	o.logger.Debug().Str("run", r.id).Dur("took", time.Since(t0)).Msg("responded")
	o.post(message{kind: msgReplied, runID: r.id, text: reply, err: err})
}

// generate prefers streaming so an interrupt is noticed between increments.
func (o *Orchestrator) generate(tok *interrupt.Token, prompt string) (string, error) {
	s, ok := o.deps.Model.(llm.Streamer)
	if !ok {
		return o.deps.Model.Respond(tok.Context(), prompt)
	}
	stream, err := s.StreamRespond(tok.Context(), prompt)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for delta := range stream.Updates() {
		if tok.Cancelled() {
			return "", interrupt.ErrCancelled
		}
		sb.WriteString(delta)
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (o *Orchestrator) onReplied(reply string, err error) {
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		o.fail(StageRespond, err)
		return
	}
	r := o.run
	reply = strings.TrimSpace(reply)
	o.pending = Change{Transcript: r.prompt, Reply: reply}
	if !o.fire(EventReply) {
		return
	}
	chunks := playback.ChunkText(reply, o.cfg.MaxChunkChars)
	r.ctl.OnTeardown("playback", o.deps.Player.Stop)
	go o.speak(r, chunks)
}

func (o *Orchestrator) speak(r *run, chunks []string) {
	tok := r.token()
	err := o.deps.Player.Play(tok.Context(), tok, chunks)
	if tok.Cancelled() {
		return
	}
	o.post(message{kind: msgPlayed, runID: r.id, err: err})
}

func (o *Orchestrator) onPlayed(err error) {
	if err != nil {
		if interrupt.IsCancelled(err) {
			// Playback was stopped from outside the run; treat as barge-in.
			o.endRun()
			o.beginRun("barge-in", EventBargeIn)
			return
		}
		o.fail(StageSynthesize, err)
		return
	}
	o.endRun()
	o.fire(EventFinished)
	o.scheduleRestart(o.cfg.RestartAfterTalk, true)
}

func (o *Orchestrator) noSpeech() {
	o.setStatus(ErrNoSpeech.Error())
	o.lastErr = ErrNoSpeech
	o.endRun()
	o.fire(EventNoSpeech)
	o.scheduleRestart(o.cfg.RestartAfterNoSpeech, false)
}

func (o *Orchestrator) fail(stage Stage, err error) {
	o.cancelRestart()
	o.endRun()
	if interrupt.IsCancelled(err) {
		o.fire(EventFail)
		return
	}
	serr := &StageError{Stage: stage, Err: err}
	o.logger.Error().Err(err).Str("stage", string(stage)).Msg("run failed")
	o.setStatus(serr.Status())
	o.lastErr = serr
	o.fire(EventFail)
}

// scheduleRestart arranges an automatic start after delay. With resume the
// state is already Listening and only the microphone needs opening.
func (o *Orchestrator) scheduleRestart(delay time.Duration, resume bool) {
	o.cancelRestart()
	gen := o.restartGen
	o.restart = time.AfterFunc(delay, func() {
		o.post(message{kind: msgRestart, gen: gen, resume: resume})
	})
}

func (o *Orchestrator) cancelRestart() {
	if o.restart != nil {
		o.restart.Stop()
		o.restart = nil
	}
	o.restartGen++
}

func (o *Orchestrator) onRestart(m message) {
	if m.gen != o.restartGen {
		return
	}
	o.restart = nil
	if !m.resume {
		o.onStart(false)
		return
	}
	if o.State() == Listening && o.run == nil {
		o.beginRun("auto", "")
	}
}
