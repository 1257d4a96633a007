//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("AMA_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "AMA_TEST_BIN not set; build with: go build -o /tmp/ama . && AMA_TEST_BIN=/tmp/ama go test -tags integration ./test")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	silencePath := filepath.Join("data", "silence.wav")
	tonePath := filepath.Join("data", "tone.wav")
	if err := writeWAV(silencePath, 16000, 1.0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	if err := writeWAV(tonePath, 16000, 0.6, 440); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.Remove(silencePath)
	os.Remove(tonePath)
	os.Exit(code)
}

// writeWAV writes 16-bit mono PCM. freq 0 writes silence.
func writeWAV(path string, sampleRate int, durationS, freq float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := range numSamples {
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 16000)
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runAma(t *testing.T, stdin string, args ...string) (logDir, stdout string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-config", filepath.Join(logDir, "config.json")}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "AMA_SILENCE_TIMEOUT=300ms", "AMA_DIALOGUE_RESTART_AFTER_NO_SPEECH=100ms")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ama exited with error: %v\noutput: %s", err, out)
	}
	return logDir, string(out)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestFullTurn(t *testing.T) {
	logDir, out := runAma(t, cmds("START", "WAIT thinking", "WAIT talking", "WAIT listening", "HIDE", "WAIT idle", "QUIT"),
		"-test", "data/tone.wav")

	for _, want := range []string{"STATE idle listening start", "STATE thinking talking reply", "REPLY "} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	conv := readLog(t, logDir, "conversation_log.txt")
	if !strings.Contains(conv, "user\thello") {
		t.Errorf("conversation log missing the user line:\n%s", conv)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "session_start") {
		t.Error("diagnostics log has no session entry")
	}
}

func TestNoSpeech(t *testing.T) {
	logDir, out := runAma(t, cmds("START", "WAIT idle", "HIDE", "QUIT"), "-test", "data/silence.wav")
	if !strings.Contains(out, "STATE listening idle no_speech") {
		t.Errorf("stdout missing no_speech transition:\n%s", out)
	}
	if conv := readLog(t, logDir, "conversation_log.txt"); strings.TrimSpace(conv) != "" {
		t.Errorf("conversation log should be empty, got:\n%s", conv)
	}
}

func TestInterruptWhileListening(t *testing.T) {
	_, out := runAma(t, cmds("START", "WAIT listening", "INTERRUPT", "WAIT idle", "QUIT"), "-test", "data/tone.wav")
	if !strings.Contains(out, "STATE listening idle cancel") {
		t.Errorf("stdout missing cancel transition:\n%s", out)
	}
}

func TestWaitTimeout(t *testing.T) {
	logDir := t.TempDir()
	cmd := exec.Command(testBinary, "-logpath", logDir, "-config", filepath.Join(logDir, "config.json"), "-test", "data/tone.wav")
	cmd.Stdin = strings.NewReader(cmds("WAIT talking"))
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected non-zero exit, output: %s", out)
	}
	if !strings.Contains(string(out), "TIMEOUT talking") {
		t.Errorf("output missing TIMEOUT line: %s", out)
	}
}
