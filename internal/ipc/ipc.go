// Package ipc serves the control socket. Clients write newline-separated
// command text and receive a JSON status line on every playback change.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/events"
	"github.com/zsprackett/tunedeck/internal/model"
)

const clientBuffer = 16

type client struct {
	id   string
	conn net.Conn
	out  chan []byte
}

type Server struct {
	path     string
	listener net.Listener
	events   *events.Manager
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	last    []byte
	closed  bool
}

// Listen binds the socket at path, replacing a stale socket file left by a
// previous run.
func Listen(path string, em *events.Manager, logger *slog.Logger) (*Server, error) {
	if err := removeStale(path); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind control socket %s: %w", path, err)
	}
	logger.Info("control socket listening", "path", path)
	return &Server{
		path:     path,
		listener: l,
		events:   em,
		logger:   logger,
		clients:  make(map[string]*client),
	}, nil
}

func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.Dial("unix", path); err == nil {
		conn.Close()
		return fmt.Errorf("another instance is listening on %s", path)
	}
	return os.Remove(path)
}

func (s *Server) Path() string { return s.path }

// Start runs the accept loop on rt until it shuts down.
func (s *Server) Start(rt *async.Runtime) {
	rt.Spawn("ipc-accept", func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() { s.listener.Close() })
		defer stop()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			c := s.add(conn)
			rt.Spawn("ipc-read", func(ctx context.Context) error { return s.read(ctx, c) })
			rt.Spawn("ipc-write", func(ctx context.Context) error { return s.write(ctx, c) })
		}
	})
}

func (s *Server) add(conn net.Conn) *client {
	c := &client{id: uuid.NewString(), conn: conn, out: make(chan []byte, clientBuffer)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
	if s.last != nil {
		c.out <- s.last
	}
	s.logger.Debug("control client connected", "client", c.id)
	return c
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; !ok {
		return
	}
	delete(s.clients, c.id)
	close(c.out)
	c.conn.Close()
	s.logger.Debug("control client disconnected", "client", c.id)
}

func (s *Server) read(ctx context.Context, c *client) error {
	defer s.drop(c)
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()
	sc := bufio.NewScanner(c.conn)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s.events.Send(events.IpcInput{Text: line})
	}
	return nil
}

func (s *Server) write(ctx context.Context, c *client) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-c.out:
			if !ok {
				return nil
			}
			if _, err := c.conn.Write(msg); err != nil {
				s.logger.Debug("control client write failed", "client", c.id, "err", err)
				s.drop(c)
				return nil
			}
		}
	}
}

// Publish sends the status to every client without waiting for them.
func (s *Server) Publish(state model.PlayerState, current *model.Track) {
	data, err := json.Marshal(model.NewStatus(state, current))
	if err != nil {
		s.logger.Error("encode status", "err", err)
		return
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for _, c := range s.clients {
		select {
		case c.out <- data:
		default:
			s.logger.Debug("control client too slow, status skipped", "client", c.id)
		}
	}
}

// Clients reports how many control clients are connected.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops accepting clients, disconnects the existing ones and removes
// the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	for _, c := range clients {
		s.drop(c)
	}
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}
