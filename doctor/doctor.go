// Package doctor runs interactive checks of the hotkey, microphone and
// speaker.
package doctor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ama/audio"
	"ama/beep"
	"ama/capture"
	"ama/encoder"
	"ama/hotkey"
	"ama/playback"
)

const (
	defaultRecordFor = 3 * time.Second
	speechPeak       = 0.05
)

// Options locate the devices under test.
type Options struct {
	// NewContext opens the audio backend. Defaults to audio.NewContext.
	NewContext func() (audio.Context, error)
	Device     string
	// SkipHotkey skips the hotkey check, for headless runs.
	SkipHotkey bool
	RecordFor  time.Duration
	In         io.Reader
	Out        io.Writer
}

type doctor struct {
	opts   Options
	in     *bufio.Reader
	out    io.Writer
	term   *terminal
	actx   audio.Context
	device *audio.DeviceInfo
	clip   audio.Segment
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). Later checks are skipped once one fails.
func Run(opts Options) int {
	if opts.NewContext == nil {
		opts.NewContext = audio.NewContext
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = defaultRecordFor
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	d := &doctor{opts: opts, in: bufio.NewReader(opts.In), out: opts.Out, term: saveTerminal()}
	d.term.onInterrupt()
	defer d.term.restore()

	d.printf("ama doctor - interactive system diagnostics\n")
	d.printf("============================================\n")

	checks := []struct {
		name string
		run  func() bool
	}{
		{"Hotkey detection", d.checkHotkey},
		{"Microphone", d.checkMic},
		{"Speaker", d.checkSpeaker},
		{"Round trip", d.checkRoundTrip},
	}

	allPass := true
	for i, c := range checks {
		d.printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run() {
			allPass = false
			break
		}
	}
	if d.actx != nil {
		d.actx.Close()
	}

	d.printf("\n")
	if allPass {
		d.printf("All checks passed!\n")
		return 0
	}
	d.printf("Some checks failed. See details above.\n")
	return 1
}

func (d *doctor) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

func (d *doctor) confirm(question string) bool {
	d.printf("%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkHotkey() bool {
	if d.opts.SkipHotkey {
		d.printf("  SKIP\n")
		return true
	}
	d.printf("Press Ctrl+Shift+Space...\n")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		d.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		d.printf("  PASS: hotkey detected\n")
		// Wait for keyup to avoid triggering next step
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// The shortcut may leave the terminal in raw mode.
		d.term.restore()
		return true
	case <-time.After(10 * time.Second):
		d.printf("  FAIL: timeout waiting for hotkey\n")
		return false
	}
}

func (d *doctor) checkMic() bool {
	actx, err := d.opts.NewContext()
	if err != nil {
		d.printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	d.actx = actx

	d.device, err = audio.FindDevice(actx, d.opts.Device)
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	name := "system default"
	if d.device != nil {
		name = d.device.Name
		if audio.IsBluetooth(name) {
			d.printf("  Warning: %s is a Bluetooth headset, audio quality will drop while listening\n", name)
		}
	}
	d.printf("Using input: %s\n", name)
	d.printf("Press Enter and speak for %.0f seconds...", d.opts.RecordFor.Seconds())
	d.in.ReadString('\n')

	sess := capture.NewSession(actx, capture.Config{
		Device: d.device,
		Format: encoder.FormatWAV,
		// the doctor stops on its own clock, not on silence
		Silence: capture.SilenceConfig{Timeout: time.Hour},
	}, zerolog.Nop())
	if err := sess.Start(nil); err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}

	deadline := time.Now().Add(d.opts.RecordFor)
	for time.Now().Before(deadline) {
		d.printf("\r  %s", levelBar(sess.Level(), 30))
		time.Sleep(100 * time.Millisecond)
	}
	d.printf("\n")

	seg, ok, err := sess.Stop(capture.StopManual)
	if err != nil {
		d.printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if !ok || seg.Empty() {
		d.printf("  FAIL: no audio captured\n")
		return false
	}
	d.printf("  Recorded %.1fs, peak level %.2f\n", seg.Duration.Seconds(), seg.Peak)
	if seg.Peak < speechPeak {
		d.printf("  FAIL: input too quiet, check the microphone gain\n")
		return false
	}
	d.clip = seg
	d.printf("  PASS: microphone hears speech\n")
	return true
}

func levelBar(level float64, width int) string {
	n := min(int(level*float64(width)+0.5), width)
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "]"
}

// play renders samples through the default output and waits for them to
// finish.
func (d *doctor) play(samples []float32, rate int) error {
	tl := playback.NewTimeline(rate)
	dev, err := d.actx.NewPlayback(audio.PlaybackConfig{SampleRate: uint32(rate), Channels: 1}, tl.Render)
	if err != nil {
		return err
	}
	defer dev.Close()
	tl.Cue(samples)
	if err := dev.Start(); err != nil {
		return err
	}
	length := time.Duration(len(samples)) * time.Second / time.Duration(rate)
	deadline := time.Now().Add(length + time.Second)
	for tl.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func (d *doctor) checkSpeaker() bool {
	rate := encoder.DefaultSampleRate
	samples := beep.Tone(rate, 660, 0.6, 0.25)
	samples = append(samples, beep.Done(rate)...)
	d.printf("Playing a test tone...\n")
	if err := d.play(samples, rate); err != nil {
		d.printf("  FAIL: playback error: %v\n", err)
		return false
	}
	if !d.confirm("Did you hear the tone?") {
		d.printf("  FAIL: tone not heard\n")
		return false
	}
	d.printf("  PASS: speaker verified by user\n")
	return true
}

func (d *doctor) checkRoundTrip() bool {
	rate := encoder.DefaultSampleRate
	samples, err := playback.Decode(d.clip.Data, rate)
	if err != nil {
		d.printf("  FAIL: cannot decode recording: %v\n", err)
		return false
	}
	d.printf("Playing back your recording...\n")
	if err := d.play(samples, rate); err != nil {
		d.printf("  FAIL: playback error: %v\n", err)
		return false
	}
	if !d.confirm("Did you hear yourself clearly?") {
		d.printf("  FAIL: recording not confirmed\n")
		return false
	}
	d.printf("  PASS: capture and playback verified by user\n")
	return true
}
