package ws

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var errSessionClosed = errors.New("session closed")

// session adapts a websocket connection to hub.Session.
type session struct {
	id     string
	conn   *websocket.Conn
	closed atomic.Bool
}

func newSession(conn *websocket.Conn) *session {
	return &session{id: uuid.NewString(), conn: conn}
}

func (s *session) ID() string   { return s.id }
func (s *session) IsOpen() bool { return !s.closed.Load() }

func (s *session) Send(ctx context.Context, payload []byte) error {
	if s.closed.Load() {
		return errSessionClosed
	}
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

// Close sends a normal closure once; later calls are no-ops.
func (s *session) Close(reason string) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close(websocket.StatusNormalClosure, reason)
}

// markClosed records that the peer went away without a close handshake
// from our side.
func (s *session) markClosed() { s.closed.Store(true) }
