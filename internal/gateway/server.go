// Package gateway exposes bound commands over a local websocket endpoint so
// external processes (editors, scripts, a WebUI) can run them and stream the
// captured output.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
)

// request is one command invocation sent by a client.
type request struct {
	Command string `json:"command"`
	Args    string `json:"args"`
}

// frame is one message sent back to a client.
type frame struct {
	Type    string `json:"type"` // "chunk" | "result" | "error"
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server is the websocket gateway. It implements schema.Channel: outbound
// messages addressed to a connection's chat id stream to that connection as
// chunk frames.
type Server struct {
	cfg    *config.Provider
	store  *binding.Store
	engine *capture.Engine

	mu    sync.Mutex
	conns map[string]*client // keyed by connection id
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func NewServer(cfg *config.Provider, store *binding.Store, engine *capture.Engine) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		engine: engine,
		conns:  make(map[string]*client),
	}
}

func (s *Server) Name() string { return "gateway" }

var upgrader = websocket.Upgrader{
	// Local-only endpoint; the listen address is the access control.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Start serves the websocket endpoint until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	gw := s.cfg.Snapshot().Gateway
	addr := net.JoinHostPort(gw.Host, fmt.Sprintf("%d", gw.Port))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	}
}

// Send streams an outbound message to the connection named by ChatID.
func (s *Server) Send(_ context.Context, msg bus.OutboundMessage) error {
	s.mu.Lock()
	c, ok := s.conns[msg.ChatID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("gateway: no connection %q", msg.ChatID)
	}
	return c.writeJSON(frame{Type: "chunk", Content: msg.Content})
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: upgrade failed", "err", err)
		return
	}
	connID := uuid.NewString()
	c := &client{conn: conn}

	s.mu.Lock()
	s.conns[connID] = c
	s.mu.Unlock()
	slog.Info("gateway: client connected", "conn", connID, "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		conn.Close()
		slog.Info("gateway: client disconnected", "conn", connID)
	}()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !errors.Is(err, context.Canceled) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("gateway: read ended", "conn", connID, "err", err)
			}
			return
		}
		go s.run(ctx, c, connID, req)
	}
}

func (s *Server) run(ctx context.Context, c *client, connID string, req request) {
	b, err := s.store.Get(req.Command)
	if err != nil {
		_ = c.writeJSON(frame{Type: "error", Error: err.Error()})
		return
	}

	res, err := s.engine.Execute(ctx, capture.Request{
		Binding: b,
		Args:    req.Args,
		Origin:  bus.Origin{Channel: "gateway", ChatID: connID, SenderID: connID},
	})
	if err != nil {
		_ = c.writeJSON(frame{Type: "error", Error: err.Error()})
		return
	}

	result := frame{Type: "result", Content: res.Text()}
	if res.Empty() {
		result.Content = ""
		result.Error = "no output captured"
	}
	_ = c.writeJSON(result)
}
