package hub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testMessage struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

func newTestBroadcaster(t *testing.T) (*Hub, *Broadcaster) {
	t.Helper()
	h := newTestHub(t)
	return h, NewBroadcaster(h, zaptest.NewLogger(t), WithConcurrency(2))
}

func TestBroadcast_NoSessionsIsNoop(t *testing.T) {
	_, b := newTestBroadcaster(t)

	require.NotPanics(t, func() {
		assert.Equal(t, 0, b.Broadcast(context.Background(), "ACE007", testMessage{Type: "X"}))
	})
}

func TestBroadcast_FaultySessionDoesNotBlockHealthyOnes(t *testing.T) {
	h, b := newTestBroadcaster(t)

	healthy := newFakeSession("healthy")
	faulty := newFakeSession("faulty")
	faulty.failSend = true
	closed := newFakeSession("closed")
	closed.closed.Store(true)

	h.Register("ACE007", faulty)
	h.Register("ACE007", closed)
	h.Register("ACE007", healthy)

	delivered := b.Broadcast(context.Background(), "ace007", testMessage{Type: "GAME_STATE_CHANGED", N: 1})

	require.Equal(t, 1, delivered)
	msgs := healthy.messages()
	require.Len(t, msgs, 1)

	var got testMessage
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, testMessage{Type: "GAME_STATE_CHANGED", N: 1}, got)
	assert.Empty(t, closed.messages())

	// Failures are left for natural cleanup on disconnect.
	assert.Equal(t, 3, h.Count("ACE007"))
}

func TestBroadcast_OnlyTargetsTheGivenGame(t *testing.T) {
	h, b := newTestBroadcaster(t)
	mine, other := newFakeSession("mine"), newFakeSession("other")
	h.Register("ACE007", mine)
	h.Register("BOB123", other)

	b.Broadcast(context.Background(), "ACE007", testMessage{Type: "X"})

	assert.Len(t, mine.messages(), 1)
	assert.Empty(t, other.messages())
}

func TestBroadcast_UnmarshalableMessageIsSwallowed(t *testing.T) {
	h, b := newTestBroadcaster(t)
	s := newFakeSession("a")
	h.Register("ACE007", s)

	assert.Equal(t, 0, b.Broadcast(context.Background(), "ACE007", map[string]any{"bad": make(chan int)}))
	assert.Empty(t, s.messages())
}

func TestCloseAll_ThenBroadcastReachesNobody(t *testing.T) {
	h, b := newTestBroadcaster(t)
	a, c := newFakeSession("a"), newFakeSession("c")
	c.closeErr = errBrokenPipe
	h.Register("ACE007", a)
	h.Register("ACE007", c)

	require.Equal(t, 2, b.CloseAll("ACE007"))

	assert.False(t, a.IsOpen())
	assert.False(t, c.IsOpen())
	assert.Equal(t, "game completed", a.reason)
	assert.Equal(t, 0, h.Count("ACE007"))
	assert.Equal(t, 0, b.Broadcast(context.Background(), "ACE007", testMessage{Type: "X"}))
	assert.Empty(t, a.messages())
}
