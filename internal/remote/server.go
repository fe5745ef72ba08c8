// Package remote serves a small HTTP API for controlling playback from other
// devices: status over SSE or websocket, command text in.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/events"
	"github.com/zsprackett/tunedeck/internal/model"
)

type TLSConfig struct {
	Mode     string // "self-signed", "manual", or "" (disabled)
	CertFile string
	KeyFile  string
	CacheDir string
}

type Config struct {
	Host         string
	Port         int
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	Announce     bool
	TLS          TLSConfig
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	cfg      Config
	events   *events.Manager
	logger   *slog.Logger
	listener net.Listener
	srv      *http.Server
	started  atomic.Bool

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    []byte
}

// New builds a server without binding it. Use Listen to serve.
func New(cfg Config, em *events.Manager, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		events:  em,
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
	}
}

// Listen binds the configured address so a port conflict is reported before
// the UI starts.
func (s *Server) Listen() error {
	if s.cfg.JWTSecret == "" {
		return errors.New("remote: jwt secret not configured")
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind remote server %s: %w", addr, err)
	}
	tlsCfg, err := serverTLS(s.cfg.TLS)
	if err != nil {
		l.Close()
		return fmt.Errorf("remote tls: %w", err)
	}
	if tlsCfg != nil {
		l = tls.NewListener(l, tlsCfg)
	}
	s.listener = l
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("remote server listening", "addr", l.Addr().String(), "tls", tlsCfg != nil)
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves on rt until it shuts down and announces the server on the
// local network when configured.
func (s *Server) Start(rt *async.Runtime) {
	s.started.Store(true)
	rt.Spawn("remote-http", func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.srv.Shutdown(shutdownCtx)
		})
		defer stop()
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.cfg.Announce {
		port := s.listener.Addr().(*net.TCPAddr).Port
		rt.Spawn("remote-announce", func(ctx context.Context) error {
			return Announce(ctx, Instance{Name: instanceName(), Port: port, TLS: s.cfg.TLS.Mode != ""})
		})
	}
}

// Close releases the listener. Once Start has run it closes the HTTP server,
// which owns the listener from then on.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	if s.started.Load() {
		return s.srv.Close()
	}
	return s.listener.Close()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return jwtMiddleware(s.cfg.JWTSecret, []string{"/api/auth/login"}, mux)
}

// Publish implements events.Publisher.
func (s *Server) Publish(state model.PlayerState, current *model.Track) {
	data, err := json.Marshal(model.NewStatus(state, current))
	if err != nil {
		s.logger.Error("encode status", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

func (s *Server) addClient() chan []byte {
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	if s.last != nil {
		ch <- s.last
	}
	s.mu.Unlock()
	return ch
}

func (s *Server) removeClient(ch chan []byte) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) lastStatus() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		data, _ := json.Marshal(model.NewStatus(model.Stopped, nil))
		return data
	}
	return s.last
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Username != s.cfg.Username || !checkPassword(s.cfg.PasswordHash, body.Password) {
		s.logger.Warn("remote login failed", "username", body.Username, "remote", r.RemoteAddr)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := IssueAccessToken(s.cfg.JWTSecret, body.Username, s.cfg.TokenTTL)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"expires_in":   int(s.cfg.TokenTTL.Seconds()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.lastStatus())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	text := strings.TrimSpace(body.Command)
	if text == "" {
		http.Error(w, "empty command", 400)
		return
	}
	s.logger.Info("command from remote", "user", Username(r.Context()))
	s.events.Send(events.IpcInput{Text: text})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", 500)
		return
	}

	ch := s.addClient()
	defer s.removeClient(ch)

	if len(ch) == 0 {
		writeSSE(w, flusher, s.lastStatus())
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			writeSSE(w, flusher, data)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, data []byte) {
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := s.addClient()
	defer s.removeClient(ch)

	go func() {
		defer cancel()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if text := strings.TrimSpace(string(msg)); text != "" {
				s.events.Send(events.IpcInput{Text: text})
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
