package feed

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ama/dialogue"
)

type fakeAgent struct {
	mu    sync.Mutex
	state dialogue.State
	calls []string
}

func (a *fakeAgent) record(name string) {
	a.mu.Lock()
	a.calls = append(a.calls, name)
	a.mu.Unlock()
}

func (a *fakeAgent) got() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAgent) State() dialogue.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *fakeAgent) Status() string       { return "" }
func (a *fakeAgent) InputLevel() float64  { return 0.25 }
func (a *fakeAgent) OutputLevel() float64 { return 0.5 }
func (a *fakeAgent) RequestStart()        { a.record("start") }
func (a *fakeAgent) RequestStop()         { a.record("stop") }
func (a *fakeAgent) Toggle()              { a.record("toggle") }
func (a *fakeAgent) RequestInterrupt()    { a.record("interrupt") }
func (a *fakeAgent) RequestHide()         { a.record("hide") }

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// readType skips messages until one of the given type arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for range 100 {
		if m := readJSON(t, conn); m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %s message", typ)
	return nil
}

func TestSnapshotOnConnect(t *testing.T) {
	agent := &fakeAgent{state: dialogue.Listening}
	conn := dial(t, New(agent, Config{}, zerolog.Nop()))

	m := readJSON(t, conn)
	assert.Equal(t, "state", m["type"])
	assert.Equal(t, "listening", m["state"])
}

func TestPublishState(t *testing.T) {
	srv := New(&fakeAgent{state: dialogue.Idle}, Config{}, zerolog.Nop())
	conn := dial(t, srv)
	readJSON(t, conn) // snapshot

	srv.Publish(dialogue.Change{
		From: dialogue.Thinking, To: dialogue.Talking, Event: dialogue.EventReply,
		RunID: "run-1", Transcript: "hi", Reply: "hello",
	})
	m := readType(t, conn, "state")
	assert.Equal(t, "talking", m["state"])
	assert.Equal(t, "thinking", m["from"])
	assert.Equal(t, "reply", m["event"])
	assert.Equal(t, "hello", m["reply"])
}

func TestLevelsStream(t *testing.T) {
	srv := New(&fakeAgent{state: dialogue.Idle}, Config{LevelInterval: 5 * time.Millisecond}, zerolog.Nop())
	conn := dial(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.levels(ctx)

	m := readType(t, conn, "level")
	assert.InDelta(t, 0.25, m["input"], 1e-9)
	assert.InDelta(t, 0.5, m["output"], 1e-9)
}

func TestCommands(t *testing.T) {
	agent := &fakeAgent{state: dialogue.Idle}
	conn := dial(t, New(agent, Config{}, zerolog.Nop()))

	for _, c := range []string{"start", "STOP", "toggle", "bogus", "interrupt", "hide"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"`+c+`"}`)))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	want := []string{"start", "stop", "toggle", "interrupt", "hide"}
	require.Eventually(t, func() bool { return len(agent.got()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, agent.got())
}

func TestClientRemovedOnClose(t *testing.T) {
	srv := New(&fakeAgent{state: dialogue.Idle}, Config{}, zerolog.Nop())
	conn := dial(t, srv)
	conn.Close()
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, time.Second, time.Millisecond)

	// Publishing with no clients is a no-op.
	srv.Publish(dialogue.Change{To: dialogue.Idle})
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := New(&fakeAgent{state: dialogue.Idle}, Config{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	readJSON(t, conn)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, time.Second, time.Millisecond)
}
