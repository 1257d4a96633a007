package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/ama-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/ama-env-log" {
		t.Errorf("got %q, want /tmp/ama-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(EnvPath, "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "ama-agent") {
		t.Errorf("default directory %q does not name the app", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{DiagnosticsFile, ConversationFile} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestExchange(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}

	Exchange("0123456789abcdef", "what time\nis it", "It is noon.")

	data, err := os.ReadFile(filepath.Join(tmp, ConversationFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	if !strings.HasSuffix(lines[0], "01234567\tuser\twhat time is it") {
		t.Errorf("user line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "01234567\tagent\tIt is noon.") {
		t.Errorf("agent line = %q", lines[1])
	}
}

func TestComponentWritesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(true); err != nil {
		t.Fatal(err)
	}

	l := Component("capture")
	l.Debug().Str("reason", "silence").Msg("capture stopped")
	StateChange("listening", "thinking", "end_of_turn", "run-1", "")

	data, err := os.ReadFile(filepath.Join(tmp, DiagnosticsFile))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"component=capture", "capture stopped", "state_change", "to=thinking"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, out)
		}
	}
}

func TestLoggingBeforeInit(t *testing.T) {
	setupLogDir(t)
	// None of these may panic or create files.
	Info("ignored")
	Exchange("run", "a", "b")
	l := Component("x")
	l.Info().Msg("ignored")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
