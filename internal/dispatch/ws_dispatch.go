package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var ErrNoSession = errors.New("no ws session")

// Frame is the envelope written to rider WebSocket sessions.
type Frame struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

const (
	KindState      = "state"
	KindNavigation = "navigation"
)

// conn is the subset of *websocket.Conn a session writes through.
type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// WSSession represents a connected rider client
type WSSession struct {
	ID   string
	conn conn
	mu   sync.Mutex
}

func (s *WSSession) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(f)
}

func (s *WSSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// WSRegistry holds rider sessions
type WSRegistry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{logger: logger, sessions: make(map[string]*WSSession)}
}

// Add registers c under a fresh session id.
func (r *WSRegistry) Add(c *websocket.Conn) *WSSession {
	return r.add(c)
}

func (r *WSRegistry) add(c conn) *WSSession {
	s := &WSSession{ID: uuid.NewString(), conn: c}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *WSRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *WSRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send writes f to one session.
func (r *WSRegistry) Send(id string, f Frame) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(f); err != nil {
		r.logger.Warn("ws send failed", "session", id, "error", err)
		return err
	}
	return nil
}

// Broadcast writes f to every session and drops the ones that fail.
func (r *WSRegistry) Broadcast(f Frame) int {
	r.mu.RLock()
	sessions := make([]*WSSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		if err := s.Send(f); err != nil {
			r.logger.Warn("ws broadcast failed, dropping session", "session", s.ID, "error", err)
			r.Remove(s.ID)
			_ = s.conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll sends a close frame to every session and forgets them.
func (r *WSRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*WSSession)
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
