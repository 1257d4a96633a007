package capture

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ama/audio"
	"ama/encoder"
)

type StopReason int

const (
	StopManual StopReason = iota
	StopSilence
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopManual:
		return "manual"
	case StopSilence:
		return "silence"
	case StopCancelled:
		return "cancelled"
	}
	return "unknown"
}

type Config struct {
	Device     *audio.DeviceInfo
	SampleRate int
	Format     string
	Gain       float64
	Silence    SilenceConfig
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateCapturing
	stateStopped
)

// Session records one utterance from the microphone. It is single use:
// Start once, Stop once (further Stops are no-ops).
type Session struct {
	actx   audio.Context
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	state     sessionState
	dev       audio.CaptureDevice
	meter     *audio.Meter
	pcm       []int16
	peak      float64
	started   time.Time
	stopWatch chan struct{}
	watchDone chan struct{}
}

func NewSession(actx audio.Context, cfg Config, logger zerolog.Logger) *Session {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = encoder.DefaultSampleRate
	}
	if cfg.Gain <= 0 {
		cfg.Gain = audio.DefaultGain
	}
	cfg.Silence = cfg.Silence.withDefaults()
	return &Session{actx: actx, cfg: cfg, logger: logger}
}

// Start opens the microphone and begins buffering. onSilence is invoked at
// most once, on its own goroutine, when the speaker stops talking.
func (s *Session) Start(onSilence func()) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = stateCapturing
	s.meter = audio.NewMeter(
		audio.WindowBytes(s.cfg.SampleRate, audio.DefaultWindow, audio.FormatS16LE),
		audio.FormatS16LE, s.cfg.Gain)
	s.mu.Unlock()

	dev, err := s.actx.NewCapture(s.cfg.Device, audio.CaptureConfig{
		SampleRate: uint32(s.cfg.SampleRate),
		Channels:   encoder.Channels,
	})
	if err != nil {
		s.abort(nil)
		return wrapDeviceError("open", err)
	}

	s.mu.Lock()
	s.dev = dev
	s.started = time.Now()
	s.mu.Unlock()

	dev.SetCallback(s.onData)
	if err := dev.Start(); err != nil {
		s.abort(dev)
		return wrapDeviceError("start", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.stopWatch, s.watchDone = stop, done
	meter := s.meter
	s.mu.Unlock()

	go func() {
		defer close(done)
		watchSilence(s.cfg.Silence, meter.Level, stop, func() {
			if onSilence != nil {
				go onSilence()
			}
		})
	}()

	s.logger.Debug().Int("sample_rate", s.cfg.SampleRate).Str("format", s.cfg.Format).Msg("capture started")
	return nil
}

func (s *Session) abort(dev audio.CaptureDevice) {
	if dev != nil {
		dev.ClearCallback()
		dev.Close()
	}
	s.mu.Lock()
	s.state = stateStopped
	s.meter.Close()
	s.mu.Unlock()
}

func (s *Session) onData(data []byte, _ uint32) {
	level := audio.Level(data, audio.FormatS16LE, s.cfg.Gain)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateCapturing {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s.pcm = append(s.pcm, int16(uint16(data[i])|uint16(data[i+1])<<8))
	}
	s.peak = max(s.peak, level)
	s.meter.Write(data)
}

// Stop releases the microphone. Unless reason is StopCancelled the buffered
// audio is returned as a segment with ok true. Stopping a session that is
// not capturing returns ok false and no error.
func (s *Session) Stop(reason StopReason) (seg audio.Segment, ok bool, err error) {
	s.mu.Lock()
	if s.state != stateCapturing {
		s.mu.Unlock()
		return audio.Segment{}, false, nil
	}
	s.state = stateStopped
	dev, stop, done, meter := s.dev, s.stopWatch, s.watchDone, s.meter
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	dev.Stop()
	dev.ClearCallback()
	dev.Close()
	meter.Close()

	s.mu.Lock()
	pcm, peak, started := s.pcm, s.peak, s.started
	s.pcm = nil
	s.mu.Unlock()

	s.logger.Debug().Str("reason", reason.String()).Dur("elapsed", time.Since(started)).
		Int("frames", len(pcm)).Msg("capture stopped")

	if reason == StopCancelled {
		return audio.Segment{}, false, nil
	}
	seg, err = s.encode(pcm)
	if err != nil {
		return audio.Segment{}, false, err
	}
	seg.Peak = peak
	return seg, true, nil
}

func (s *Session) encode(pcm []int16) (audio.Segment, error) {
	enc, err := encoder.New(s.cfg.Format, s.cfg.SampleRate)
	if err != nil {
		return audio.Segment{}, err
	}
	t0 := time.Now()
	for i := 0; i < len(pcm); i += encoder.BlockSize {
		if err := enc.EncodeBlock(pcm[i:min(i+encoder.BlockSize, len(pcm))]); err != nil {
			return audio.Segment{}, err
		}
	}
	if err := enc.Close(); err != nil {
		return audio.Segment{}, err
	}
	enc.AddEncodeTime(time.Since(t0))

	frames := enc.TotalFrames()
	s.logger.Debug().Uint64("frames", frames).Dur("encode", enc.EncodeTime()).
		Int("bytes", len(enc.Bytes())).Msg("segment encoded")

	var data []byte
	if frames > 0 {
		data = enc.Bytes()
	}
	return audio.Segment{
		Data:       data,
		MimeType:   enc.MimeType(),
		SampleRate: s.cfg.SampleRate,
		Channels:   encoder.Channels,
		Duration:   time.Duration(frames) * time.Second / time.Duration(s.cfg.SampleRate),
	}, nil
}

// Level is the live input loudness, or 0 when not capturing.
func (s *Session) Level() float64 {
	s.mu.Lock()
	capturing, meter := s.state == stateCapturing, s.meter
	s.mu.Unlock()
	if !capturing {
		return 0
	}
	return meter.Level()
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateCapturing
}
