package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/events"
	"github.com/DoyleJ11/pubcrawl-backend/internal/store"
	"github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

type call struct {
	code engine.Code
	msg  types.ServerMessage // zero for CloseAll
	op   string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []call
	// block, when set, stalls broadcasts for the given game until closed.
	block map[engine.Code]chan struct{}
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, code engine.Code, msg any) int {
	f.mu.Lock()
	gate := f.block[code]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{code: code, msg: msg.(types.ServerMessage), op: "broadcast"})
	return 1
}

func (f *fakeBroadcaster) CloseAll(code engine.Code) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{code: code, op: "closeAll"})
	return 1
}

func (f *fakeBroadcaster) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newTestDispatcher(t *testing.T, b Broadcaster) *Dispatcher {
	t.Helper()
	d := New(context.Background(), b, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func stateChanged(code engine.Code, name string) engine.DomainEvent {
	return engine.NewGameStateChanged(engine.Game{Code: code, Name: name}, time.Now())
}

func TestDispatcher_DeliversInCommitOrder(t *testing.T) {
	b := &fakeBroadcaster{}
	bus := events.NewBus(zaptest.NewLogger(t))
	d := newTestDispatcher(t, b)
	d.Subscribe(bus)

	s := store.NewMemory(bus)
	ctx := context.Background()
	g, created, err := engine.NewGame("ACE007", "Friday", []engine.Hole{{Number: 1, Par: 3}}, nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Within(ctx, "ACE007", func(tx store.Tx) error {
		tx.Record(created)
		return tx.Insert(ctx, g)
	}))

	for _, name := range []string{"Alice", "Bob", "Cara"} {
		require.NoError(t, s.Within(ctx, "ACE007", func(tx store.Tx) error {
			cur, err := tx.Load(ctx)
			if err != nil {
				return err
			}
			evs, next, err := engine.Apply(cur, engine.Command{Type: engine.CmdJoin, Name: name}, time.Now())
			if err != nil {
				return err
			}
			tx.Record(evs...)
			return tx.Save(ctx, next)
		}))
	}

	require.NoError(t, d.Close(ctx))

	calls := b.snapshot()
	require.Len(t, calls, 3, "GameCreated and PlayerJoined are not broadcast")
	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, types.MsgGameStateChanged, calls[i].msg.Type)
		assert.Len(t, calls[i].msg.Game.Players, want)
	}
}

func TestDispatcher_SlowGameDoesNotDelayOthers(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBroadcaster{block: map[engine.Code]chan struct{}{"SLOW01": gate}}
	d := newTestDispatcher(t, b)

	d.Enqueue(context.Background(), stateChanged("SLOW01", "first"))
	d.Enqueue(context.Background(), stateChanged("SLOW01", "second"))
	d.Enqueue(context.Background(), stateChanged("FAST01", "fast"))

	require.Eventually(t, func() bool {
		calls := b.snapshot()
		return len(calls) == 1 && calls[0].code == "FAST01"
	}, time.Second, 5*time.Millisecond)

	close(gate)
	require.NoError(t, d.Close(context.Background()))

	calls := b.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "first", calls[1].msg.Game.Name)
	assert.Equal(t, "second", calls[2].msg.Game.Name)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_CompletionBroadcastsThenClosesSessions(t *testing.T) {
	b := &fakeBroadcaster{}
	d := newTestDispatcher(t, b)

	evs, _, err := engine.Apply(engine.Game{Code: "ACE007", Status: engine.StatusActive},
		engine.Command{Type: engine.CmdComplete}, time.Now())
	require.NoError(t, err)
	for _, ev := range evs {
		d.Enqueue(context.Background(), ev)
	}
	require.NoError(t, d.Close(context.Background()))

	calls := b.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, types.MsgGameCompleted, calls[0].msg.Type)
	assert.Equal(t, "closeAll", calls[1].op)
}

func TestDispatcher_EventMessagesCarryIDAndTitle(t *testing.T) {
	b := &fakeBroadcaster{}
	d := newTestDispatcher(t, b)

	g := engine.Game{
		Code:          "ACE007",
		Status:        engine.StatusActive,
		SpecialEvents: []engine.SpecialEvent{{ID: "ev-1", Title: "Left hand only"}},
	}
	activated, g, err := engine.Apply(g, engine.Command{Type: engine.CmdActivateEvent, EventID: "ev-1"}, time.Now())
	require.NoError(t, err)
	ended, _, err := engine.Apply(g, engine.Command{Type: engine.CmdEndEvent, EventID: "ev-1"}, time.Now())
	require.NoError(t, err)

	for _, ev := range append(activated, ended...) {
		d.Enqueue(context.Background(), ev)
	}
	require.NoError(t, d.Close(context.Background()))

	calls := b.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, types.EventActivated("ACE007", "ev-1", "Left hand only"), calls[0].msg)
	assert.Equal(t, types.EventEnded("ACE007", "ev-1", "Left hand only"), calls[1].msg)
}

func TestDispatcher_DropsEventsAfterClose(t *testing.T) {
	b := &fakeBroadcaster{}
	d := newTestDispatcher(t, b)
	require.NoError(t, d.Close(context.Background()))

	d.Enqueue(context.Background(), stateChanged("ACE007", "late"))

	assert.Empty(t, b.snapshot())
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBroadcaster{block: map[engine.Code]chan struct{}{"SLOW01": gate}}
	d := New(context.Background(), b, zaptest.NewLogger(t))
	d.Enqueue(context.Background(), stateChanged("SLOW01", "stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- d.Close(ctx) }()

	time.Sleep(40 * time.Millisecond)
	close(gate)
	assert.ErrorIs(t, <-errc, context.DeadlineExceeded)
}
