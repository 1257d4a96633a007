package capture

import "time"

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultThreshold      = 0.01
	DefaultSilenceTimeout = 1000 * time.Millisecond
)

type SilenceConfig struct {
	Threshold    float64
	Timeout      time.Duration
	PollInterval time.Duration
}

func (c SilenceConfig) withDefaults() SilenceConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultSilenceTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Detector decides when the speaker has gone quiet. The timeout is measured
// from the first sub-threshold sample; any sample at or above the threshold
// restarts it. It fires at most once.
type Detector struct {
	threshold    float64
	timeout      time.Duration
	silenceStart time.Time
	fired        bool
}

func NewDetector(threshold float64, timeout time.Duration) *Detector {
	return &Detector{threshold: threshold, timeout: timeout}
}

// Observe feeds one level sample taken at now and reports whether the
// silence timeout has just elapsed.
func (d *Detector) Observe(now time.Time, level float64) bool {
	if d.fired {
		return false
	}
	if level >= d.threshold {
		d.silenceStart = time.Time{}
		return false
	}
	if d.silenceStart.IsZero() {
		d.silenceStart = now
		return false
	}
	if now.Sub(d.silenceStart) >= d.timeout {
		d.fired = true
		return true
	}
	return false
}

func (d *Detector) Fired() bool { return d.fired }

// watchSilence polls level until stop is closed or the detector fires, in
// which case onSilence is called once before returning.
func watchSilence(cfg SilenceConfig, level func() float64, stop <-chan struct{}, onSilence func()) {
	det := NewDetector(cfg.Threshold, cfg.Timeout)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if det.Observe(now, level()) {
				onSilence()
				return
			}
		}
	}
}
