// Package feed serves the agent state and audio levels over a websocket so
// an external indicator (an overlay window, a status bar widget) can mirror
// the orb and send the same commands as the keyboard.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ama/dialogue"
)

const (
	DefaultLevelInterval = 100 * time.Millisecond
	DefaultPingInterval  = 20 * time.Second
	DefaultWriteTimeout  = 5 * time.Second

	clientQueue = 32
)

// Agent is the part of the orchestrator the feed drives.
type Agent interface {
	State() dialogue.State
	Status() string
	InputLevel() float64
	OutputLevel() float64
	RequestStart()
	RequestStop()
	Toggle()
	RequestInterrupt()
	RequestHide()
}

type StateMessage struct {
	Type       string `json:"type"`
	State      string `json:"state"`
	From       string `json:"from,omitempty"`
	Event      string `json:"event,omitempty"`
	Run        string `json:"run,omitempty"`
	Status     string `json:"status,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Reply      string `json:"reply,omitempty"`
}

type LevelMessage struct {
	Type   string  `json:"type"`
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

type command struct {
	Type string `json:"type"`
}

type Config struct {
	LevelInterval time.Duration
	PingInterval  time.Duration
	WriteTimeout  time.Duration
}

type Server struct {
	agent  Agent
	cfg    Config
	logger zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(agent Agent, cfg Config, logger zerolog.Logger) *Server {
	if cfg.LevelInterval <= 0 {
		cfg.LevelInterval = DefaultLevelInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{
		agent:  agent,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed listens on loopback for local widgets.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// ListenAndServe serves the feed on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go s.levels(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("feed listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish sends a state transition to every client. Safe to call from a
// dialogue watcher: it never blocks on a slow client.
func (s *Server) Publish(ch dialogue.Change) {
	s.broadcast(StateMessage{
		Type:       "state",
		State:      ch.To.String(),
		From:       ch.From.String(),
		Event:      ch.Event,
		Run:        ch.RunID,
		Status:     ch.Status,
		Transcript: ch.Transcript,
		Reply:      ch.Reply,
	})
}

func (s *Server) levels(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LevelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Clients() == 0 {
				continue
			}
			s.broadcast(LevelMessage{Type: "level", Input: s.agent.InputLevel(), Output: s.agent.OutputLevel()})
		}
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("feed marshal")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.send(data)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feed upgrade")
		return
	}
	c := &client{conn: conn, out: make(chan []byte, clientQueue), done: make(chan struct{})}

	snapshot, _ := json.Marshal(StateMessage{Type: "state", State: s.agent.State().String(), Status: s.agent.Status()})
	c.send(snapshot)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("feed client connected")

	go c.writeLoop(s.cfg)
	s.readLoop(c)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("feed client gone")
}

func (s *Server) readLoop(c *client) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Debug().Err(err).Msg("feed: bad command")
			continue
		}
		if !s.dispatch(cmd.Type) {
			s.logger.Debug().Str("type", cmd.Type).Msg("feed: unknown command")
		}
	}
}

func (s *Server) dispatch(kind string) bool {
	switch strings.ToLower(kind) {
	case "start":
		s.agent.RequestStart()
	case "stop":
		s.agent.RequestStop()
	case "toggle":
		s.agent.Toggle()
	case "interrupt":
		s.agent.RequestInterrupt()
	case "hide":
		s.agent.RequestHide()
	default:
		return false
	}
	return true
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// send queues data, dropping it when the client has fallen behind.
func (c *client) send(data []byte) {
	select {
	case c.out <- data:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writeLoop(cfg Config) {
	ping := time.NewTicker(cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		}
	}
}
