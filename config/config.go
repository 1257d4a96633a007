// Package config loads and saves the agent settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ama/audio"
	"ama/capture"
	"ama/dialogue"
	"ama/encoder"
	"ama/playback"
)

const (
	AppDir    = "ama-agent"
	FileName  = "config.json"
	EnvPrefix = "AMA"
)

type Config struct {
	Audio       AudioConfig       `mapstructure:"audio"`
	Silence     SilenceConfig     `mapstructure:"silence"`
	Dialogue    DialogueConfig    `mapstructure:"dialogue"`
	Playback    PlaybackConfig    `mapstructure:"playback"`
	Hotkey      HotkeyConfig      `mapstructure:"hotkey"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
}

type AudioConfig struct {
	Device string  `mapstructure:"device"`
	Format string  `mapstructure:"format"` // flac or wav
	Gain   float64 `mapstructure:"gain"`
}

type SilenceConfig struct {
	Threshold float64       `mapstructure:"threshold"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Poll      time.Duration `mapstructure:"poll"`
}

type DialogueConfig struct {
	RestartAfterTalk     time.Duration `mapstructure:"restart_after_talk"`
	RestartAfterNoSpeech time.Duration `mapstructure:"restart_after_no_speech"`
	MinSegment           time.Duration `mapstructure:"min_segment"`
}

type PlaybackConfig struct {
	LeadIn        time.Duration `mapstructure:"lead_in"`
	Epsilon       time.Duration `mapstructure:"epsilon"`
	MaxChunkChars int           `mapstructure:"max_chunk_chars"`
	SampleRate    int           `mapstructure:"sample_rate"`
}

type HotkeyConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type FeedConfig struct {
	// Addr is the websocket listen address; empty disables the feed.
	Addr string `mapstructure:"addr"`
}

type TranscriberConfig struct {
	// Text is what the built-in transcriber hears on every turn.
	Text string `mapstructure:"text"`
}

func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Format: encoder.FormatFLAC,
			Gain:   audio.DefaultGain,
		},
		Silence: SilenceConfig{
			Threshold: capture.DefaultThreshold,
			Timeout:   capture.DefaultSilenceTimeout,
			Poll:      capture.DefaultPollInterval,
		},
		Dialogue: DialogueConfig{
			RestartAfterTalk:     dialogue.DefaultRestartAfterTalk,
			RestartAfterNoSpeech: dialogue.DefaultRestartAfterNoSpeech,
			MinSegment:           dialogue.DefaultMinSegment,
		},
		Playback: PlaybackConfig{
			LeadIn:        playback.DefaultLeadIn,
			Epsilon:       playback.DefaultEpsilon,
			MaxChunkChars: playback.DefaultMaxChunkChars,
			SampleRate:    encoder.DefaultSampleRate,
		},
		Hotkey: HotkeyConfig{Debounce: 300 * time.Millisecond},
		Transcriber: TranscriberConfig{Text: "hello"},
	}
}

// DefaultPath is <UserConfigDir>/ama-agent/config.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDir, FileName), nil
}

func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, val := range values(cfg) {
		v.SetDefault(key, val)
		// silence.timeout reads AMA_SILENCE_TIMEOUT.
		v.BindEnv(key)
	}
	return v
}

// Load reads path, writing a default file first when it does not exist.
// An empty path means DefaultPath. Environment variables override the file.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	v := newViper(cfg)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as JSON, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	v.SetConfigType("json")
	for key, val := range values(cfg) {
		v.Set(key, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// values flattens cfg into viper keys. Durations are stored as strings so
// the file stays readable ("1s", "500ms").
func values(cfg *Config) map[string]any {
	return map[string]any{
		"audio.device":                     cfg.Audio.Device,
		"audio.format":                     cfg.Audio.Format,
		"audio.gain":                       cfg.Audio.Gain,
		"silence.threshold":                cfg.Silence.Threshold,
		"silence.timeout":                  cfg.Silence.Timeout.String(),
		"silence.poll":                     cfg.Silence.Poll.String(),
		"dialogue.restart_after_talk":      cfg.Dialogue.RestartAfterTalk.String(),
		"dialogue.restart_after_no_speech": cfg.Dialogue.RestartAfterNoSpeech.String(),
		"dialogue.min_segment":             cfg.Dialogue.MinSegment.String(),
		"playback.lead_in":                 cfg.Playback.LeadIn.String(),
		"playback.epsilon":                 cfg.Playback.Epsilon.String(),
		"playback.max_chunk_chars":         cfg.Playback.MaxChunkChars,
		"playback.sample_rate":             cfg.Playback.SampleRate,
		"hotkey.debounce":                  cfg.Hotkey.Debounce.String(),
		"feed.addr":                        cfg.Feed.Addr,
		"transcriber.text":                 cfg.Transcriber.Text,
	}
}

func (c *Config) Validate() error {
	switch c.Audio.Format {
	case encoder.FormatFLAC, encoder.FormatWAV:
	default:
		return fmt.Errorf("audio.format %q: want flac or wav", c.Audio.Format)
	}
	if c.Silence.Threshold <= 0 || c.Silence.Threshold >= 1 {
		return fmt.Errorf("silence.threshold %v: want a value in (0, 1)", c.Silence.Threshold)
	}
	if c.Silence.Timeout <= 0 {
		return fmt.Errorf("silence.timeout %v: must be positive", c.Silence.Timeout)
	}
	if c.Playback.SampleRate <= 0 {
		return fmt.Errorf("playback.sample_rate %d: must be positive", c.Playback.SampleRate)
	}
	return nil
}

func (c *Config) Capture(device *audio.DeviceInfo) capture.Config {
	return capture.Config{
		Device:     device,
		SampleRate: encoder.DefaultSampleRate,
		Format:     c.Audio.Format,
		Gain:       c.Audio.Gain,
		Silence: capture.SilenceConfig{
			Threshold:    c.Silence.Threshold,
			Timeout:      c.Silence.Timeout,
			PollInterval: c.Silence.Poll,
		},
	}
}

func (c *Config) DialogueConfig() dialogue.Config {
	return dialogue.Config{
		RestartAfterTalk:     c.Dialogue.RestartAfterTalk,
		RestartAfterNoSpeech: c.Dialogue.RestartAfterNoSpeech,
		MinSegment:           c.Dialogue.MinSegment,
		SpeechThreshold:      c.Silence.Threshold,
		MaxChunkChars:        c.Playback.MaxChunkChars,
	}
}

func (c *Config) PlaybackConfig() playback.Config {
	return playback.Config{
		LeadIn:  c.Playback.LeadIn,
		Epsilon: c.Playback.Epsilon,
	}
}
