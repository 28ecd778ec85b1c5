// ABOUTME: Per-connection session state and the process-wide active-session set.
// ABOUTME: Sessions join on accept, leave on disconnect, and are never reused.

package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Session is the ephemeral state for one active client connection. It is
// created on accept, destroyed on disconnect, and never persisted or reused
// across reconnects.
type Session struct {
	ID        string
	Remote    string
	CreatedAt time.Time

	conn *websocket.Conn

	// Serializes frames from the dispatch loop and concurrent broadcasts.
	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, remote string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Remote:    remote,
		CreatedAt: time.Now(),
		conn:      conn,
	}
}

// send writes one text frame to the session's connection.
func (s *Session) send(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// sessionSet is the concurrency-safe active-session container. It is owned
// by the Handler and lives for the life of the process, not as a global.
type sessionSet struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[string]*Session)}
}

func (ss *sessionSet) add(s *Session) {
	ss.mu.Lock()
	ss.sessions[s.ID] = s
	ss.mu.Unlock()
}

func (ss *sessionSet) remove(s *Session) {
	ss.mu.Lock()
	delete(ss.sessions, s.ID)
	ss.mu.Unlock()
}

// snapshot returns the sessions active at this instant. Broadcast iterates
// the snapshot so joins and leaves during delivery cannot block it.
func (ss *sessionSet) snapshot() []*Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]*Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		out = append(out, s)
	}
	return out
}

func (ss *sessionSet) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
