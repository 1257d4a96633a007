package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DiagnosticsFile  = "diagnostics_log.txt"
	ConversationFile = "conversation_log.txt"
	EnvPath          = "AMA_LOG_PATH"
)

var (
	diagLog  = zerolog.Nop()
	diagFile *os.File
	convFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: AMA_LOG_PATH environment variable
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and conversation logs in Dir. When debug is
// set the diagnostics log also records debug events.
func Init(debug bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, DiagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	convFile, err = os.OpenFile(filepath.Join(dir, ConversationFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	diagLog = newLogger(diagFile).Level(level)

	logReady = true
	return nil
}

func newLogger(w io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if convFile != nil {
		convFile.Close()
		convFile = nil
	}
	diagLog = zerolog.Nop()
	logReady = false
}

// Logger returns the diagnostics logger, a no-op logger before Init.
func Logger() zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return diagLog
}

// Component returns the diagnostics logger tagged with a component name.
// Packages receive it at construction and never touch the files directly.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

func Info(msg string) {
	l := Logger()
	l.Info().Msg(msg)
}

func Infof(format string, args ...any) {
	l := Logger()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

func Error(msg string) {
	l := Logger()
	l.Error().Msg(msg)
}

func Errorf(format string, args ...any) {
	l := Logger()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

func Warn(msg string) {
	l := Logger()
	l.Warn().Msg(msg)
}

func Warnf(format string, args ...any) {
	l := Logger()
	l.Warn().Msg(fmt.Sprintf(format, args...))
}

func StateChange(from, to, event, runID, status string) {
	l := Logger()
	ev := l.Info().
		Str("from", from).
		Str("to", to).
		Str("event", event)
	if runID != "" {
		ev = ev.Str("run", runID)
	}
	if status != "" {
		ev = ev.Str("status", status)
	}
	ev.Msg("state_change")
}

func RunStart(runID, trigger string) {
	l := Logger()
	l.Info().
		Str("run", runID).
		Str("trigger", trigger).
		Msg("run_start")
}

func SessionStart(device, format, transcriber, model string) {
	l := Logger()
	l.Info().
		Str("device", device).
		Str("format", format).
		Str("transcriber", transcriber).
		Str("model", model).
		Msg("session_start")
}

func SessionEnd(turns int) {
	l := Logger()
	l.Info().
		Int("turns", turns).
		Msg("session_end")
}

// Exchange appends one user/agent turn to the conversation log.
func Exchange(runID, transcript, reply string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	fmt.Fprintf(convFile, "%s\t[%d]\t%s\tuser\t%s\n", ts, pid, short, oneLine(transcript))
	fmt.Fprintf(convFile, "%s\t[%d]\t%s\tagent\t%s\n", ts, pid, short, oneLine(reply))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
