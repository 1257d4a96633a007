package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ama/audio"
	"ama/beep"
	"ama/capture"
	"ama/config"
	"ama/dialogue"
	"ama/llm"
	"ama/log"
	"ama/playback"
	"ama/transcriber"
	"ama/tts"
)

// agent owns the audio devices and the orchestrator for one process.
type agent struct {
	orch     *dialogue.Orchestrator
	timeline *playback.Timeline
	output   audio.PlaybackDevice
	device   *audio.DeviceInfo
	rate     int
	turns    atomic.Int32

	mu    sync.Mutex
	sinks []EventSink
}

type collaborators struct {
	transcriber transcriber.Transcriber
	model       llm.Responder
	synth       tts.Synthesizer
}

func defaultCollaborators(cfg *config.Config) collaborators {
	return collaborators{
		transcriber: transcriber.Fixed{Text: cfg.Transcriber.Text},
		model:       llm.Echo{},
		synth:       tts.NewTone(),
	}
}

func newAgent(actx audio.Context, cfg *config.Config, device *audio.DeviceInfo, c collaborators) (*agent, error) {
	rate := cfg.Playback.SampleRate
	a := &agent{
		timeline: playback.NewTimeline(rate),
		device:   device,
		rate:     rate,
	}

	out, err := actx.NewPlayback(audio.PlaybackConfig{SampleRate: uint32(rate), Channels: 1}, a.timeline.Render)
	if err != nil {
		return nil, fmt.Errorf("open playback: %w", err)
	}
	if err := out.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("start playback: %w", err)
	}
	a.output = out

	sched := playback.NewScheduler(a.timeline, c.synth, cfg.PlaybackConfig(), log.Component("playback"))
	capCfg := cfg.Capture(device)
	capLog := log.Component("capture")

	a.orch = dialogue.New(cfg.DialogueConfig(), dialogue.Deps{
		NewRecorder: func() dialogue.Recorder { return capture.NewSession(actx, capCfg, capLog) },
		Transcriber: c.transcriber,
		Model:       c.model,
		Player:      sched,
	}, log.Component("dialogue"))
	a.orch.Watch(a.observe)
	return a, nil
}

func (a *agent) addSink(s EventSink) {
	a.mu.Lock()
	a.sinks = append(a.sinks, s)
	a.mu.Unlock()
}

func (a *agent) notice(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	log.Info(text)
	a.mu.Lock()
	sinks := a.sinks
	a.mu.Unlock()
	for _, s := range sinks {
		s.Notice(text)
	}
}

// observe runs on the orchestrator goroutine for every transition.
func (a *agent) observe(ch dialogue.Change) {
	log.StateChange(ch.From.String(), ch.To.String(), ch.Event, ch.RunID, ch.Status)

	switch ch.Event {
	case dialogue.EventStart, dialogue.EventBargeIn:
		log.RunStart(ch.RunID, ch.Event)
		a.timeline.Cue(beep.Listen(a.rate))
	case dialogue.EventReply:
		a.turns.Add(1)
		log.Exchange(ch.RunID, ch.Transcript, ch.Reply)
	case dialogue.EventFail:
		if ch.Err != nil {
			a.timeline.Cue(beep.Error(a.rate))
		}
	}

	a.mu.Lock()
	sinks := a.sinks
	a.mu.Unlock()
	for _, s := range sinks {
		s.StateChanged(ch)
	}
}

func (a *agent) deviceName() string {
	if a.device == nil {
		return "system default"
	}
	return a.device.Name
}

func (a *agent) Close() {
	a.orch.Close()
	a.output.Close()
	log.SessionEnd(int(a.turns.Load()))
}
