package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/hub"
	pub "github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

type fakeGames map[engine.Code]engine.Game

func (f fakeGames) Get(_ context.Context, code engine.Code) (engine.Game, error) {
	g, ok := f[code]
	if !ok {
		return engine.Game{}, fmt.Errorf("game %s: %w", code, apperror.ErrNotFound)
	}
	return g, nil
}

// completingGames reports the game active on the first lookup and closes
// its sessions right away, standing in for a completion that is committed
// and dispatched while the session is still connecting.
type completingGames struct {
	lookups atomic.Int32
	b       atomic.Pointer[hub.Broadcaster]
}

func (c *completingGames) Get(_ context.Context, code engine.Code) (engine.Game, error) {
	if c.lookups.Add(1) == 1 {
		if b := c.b.Load(); b != nil {
			b.CloseAll(code)
		}
		return engine.Game{Code: code, Status: engine.StatusActive}, nil
	}
	return engine.Game{Code: code, Status: engine.StatusCompleted}, nil
}

type testServer struct {
	url string
	hub *hub.Hub
	b   *hub.Broadcaster
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, fakeGames{
		"ACE007": {Code: "ACE007", Status: engine.StatusActive},
		"DONE01": {Code: "DONE01", Status: engine.StatusCompleted},
	})
}

func newTestServerWith(t *testing.T, games GameLookup) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := hub.NewHub(context.Background(), log)
	t.Cleanup(h.Shutdown)

	r := chi.NewRouter()
	r.Get("/ws/games/{gameID}", Handler(h, games, log, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		url: "ws" + strings.TrimPrefix(srv.URL, "http"),
		hub: h,
		b:   hub.NewBroadcaster(h, log),
	}
}

func dial(t *testing.T, ts *testServer, gameID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, ts.url+"/ws/games/"+gameID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) pub.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg pub.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readClose(t *testing.T, conn *websocket.Conn) websocket.CloseError {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	var ce websocket.CloseError
	require.True(t, errors.As(err, &ce), "want close error, got %v", err)
	return ce
}

func TestHandler_RejectsBadOrUnknownGame(t *testing.T) {
	ts := newTestServer(t)

	for _, id := range []string{"no-pe", "X", "NOPE01"} {
		t.Run(id, func(t *testing.T) {
			conn := dial(t, ts, id)
			ce := readClose(t, conn)
			assert.Equal(t, websocket.StatusInvalidFramePayloadData, ce.Code)
			assert.Equal(t, "bad data", ce.Reason)
		})
	}
	assert.Equal(t, 0, ts.hub.Games())
}

func TestHandler_CompletedGameClosesNormally(t *testing.T) {
	ts := newTestServer(t)

	ce := readClose(t, dial(t, ts, "DONE01"))
	assert.Equal(t, websocket.StatusNormalClosure, ce.Code)
	assert.Equal(t, "game completed", ce.Reason)
}

func TestHandler_RegistersAndAnswersPing(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "ace007")

	require.Eventually(t, func() bool { return ts.hub.Count("ACE007") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"PING"}`)))
	assert.Equal(t, pub.MsgPong, readMessage(t, conn).Type)

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`not json`)))
	assert.Equal(t, pub.MsgError, readMessage(t, conn).Type)

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"SCORE"}`)))
	msg := readMessage(t, conn)
	assert.Equal(t, pub.MsgError, msg.Type)
	assert.Equal(t, "unknown type", msg.Error)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
	require.Eventually(t, func() bool { return ts.hub.Games() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandler_ReceivesBroadcastsUntilClosed(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts, "ACE007")
	b := dial(t, ts, "ACE007")
	require.Eventually(t, func() bool { return ts.hub.Count("ACE007") == 2 }, time.Second, 5*time.Millisecond)

	n := ts.b.Broadcast(context.Background(), "ACE007", pub.EventActivated("ACE007", "ev-1", "Left hand only"))
	require.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, pub.MsgEventActivated, msg.Type)
		assert.Equal(t, "Left hand only", msg.Title)
	}

	// The close handshake needs the clients reading, so close from the side.
	closed := make(chan int, 1)
	go func() { closed <- ts.b.CloseAll("ACE007") }()
	for _, conn := range []*websocket.Conn{a, b} {
		ce := readClose(t, conn)
		assert.Equal(t, websocket.StatusNormalClosure, ce.Code)
		assert.Equal(t, "game completed", ce.Reason)
	}
	assert.Equal(t, 2, <-closed)
	assert.Equal(t, 0, ts.b.Broadcast(context.Background(), "ACE007", pub.Pong()))
}

func TestHandler_GameCompletedWhileConnecting(t *testing.T) {
	games := &completingGames{}
	ts := newTestServerWith(t, games)
	games.b.Store(ts.b)

	ce := readClose(t, dial(t, ts, "ACE007"))
	assert.Equal(t, websocket.StatusNormalClosure, ce.Code)
	assert.Equal(t, "game completed", ce.Reason)
	require.Eventually(t, func() bool { return ts.hub.Games() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, games.lookups.Load())
}
