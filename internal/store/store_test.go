package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]engine.DomainEvent
}

func (n *recordingNotifier) Committed(_ context.Context, evs []engine.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, evs)
}

func (n *recordingNotifier) kinds() []engine.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []engine.EventKind
	for _, b := range n.batches {
		for _, ev := range b {
			out = append(out, ev.Kind())
		}
	}
	return out
}

var testHoles = []engine.Hole{
	{Number: 1, Name: "The Crown", Par: 3, Lat: 51.5007, Lon: -0.1246},
	{Number: 2, Name: "The Anchor", Par: 4, Lat: 51.5033, Lon: -0.1195},
}

func seedGame(t *testing.T, s Transactor, code engine.Code) engine.Game {
	t.Helper()
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	g, created, err := engine.NewGame(code, "Friday crawl", testHoles,
		[]engine.SpecialEvent{{ID: "ev-1", Title: "Left hand only"}}, now)
	require.NoError(t, err)

	err = s.Within(context.Background(), code, func(tx Tx) error {
		if err := tx.Insert(context.Background(), g); err != nil {
			return err
		}
		tx.Record(created)
		return nil
	})
	require.NoError(t, err)
	return g
}

// runTransactorSuite checks the contract shared by every store.
func runTransactorSuite(t *testing.T, newStore func(t *testing.T, n Notifier) Transactor) {
	ctx := context.Background()

	t.Run("insert then get round-trips", func(t *testing.T) {
		n := &recordingNotifier{}
		s := newStore(t, n)
		seedGame(t, s, "ROUND1")

		got, err := s.Get(ctx, "ROUND1")
		require.NoError(t, err)
		assert.Equal(t, "Friday crawl", got.Name)
		assert.Equal(t, engine.StatusActive, got.Status)
		assert.Len(t, got.Holes, 2)
		assert.Equal(t, "Left hand only", got.SpecialEvents[0].Title)
		assert.Empty(t, got.Players)
		assert.Equal(t, []engine.EventKind{engine.EvtGameCreated}, n.kinds())
	})

	t.Run("duplicate insert reports code taken", func(t *testing.T) {
		s := newStore(t, nil)
		g := seedGame(t, s, "TAKEN1")

		err := s.Within(ctx, "TAKEN1", func(tx Tx) error { return tx.Insert(ctx, g) })
		require.ErrorIs(t, err, ErrCodeTaken)
	})

	t.Run("missing game is not found", func(t *testing.T) {
		s := newStore(t, nil)

		_, err := s.Get(ctx, "NOPE01")
		require.ErrorIs(t, err, apperror.ErrNotFound)

		err = s.Within(ctx, "NOPE01", func(tx Tx) error {
			_, err := tx.Load(ctx)
			return err
		})
		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("save persists players and scores", func(t *testing.T) {
		n := &recordingNotifier{}
		s := newStore(t, n)
		seedGame(t, s, "SCORE1")

		err := s.Within(ctx, "SCORE1", func(tx Tx) error {
			g, err := tx.Load(ctx)
			if err != nil {
				return err
			}
			evs, g, err := engine.Apply(g, engine.Command{Type: engine.CmdJoin, Name: "Alice"}, time.Now().UTC())
			if err != nil {
				return err
			}
			alice := g.Players[0].ID
			more, g, err := engine.Apply(g, engine.Command{Type: engine.CmdSubmitScore, PlayerID: alice, Hole: 2, Strokes: 5}, time.Now().UTC())
			if err != nil {
				return err
			}
			tx.Record(append(evs, more...)...)
			return tx.Save(ctx, g)
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "SCORE1")
		require.NoError(t, err)
		require.Len(t, got.Players, 1)
		assert.Equal(t, "Alice", got.Players[0].Name)
		assert.Equal(t, map[int]int{2: 5}, got.Players[0].Scores)
		assert.Contains(t, n.kinds(), engine.EvtScoreSubmitted)
	})

	t.Run("failed work is discarded without notification", func(t *testing.T) {
		n := &recordingNotifier{}
		s := newStore(t, n)
		seedGame(t, s, "ROLLB1")
		before := len(n.kinds())
		boom := errors.New("boom")

		err := s.Within(ctx, "ROLLB1", func(tx Tx) error {
			g, err := tx.Load(ctx)
			if err != nil {
				return err
			}
			g.Name = "renamed"
			if err := tx.Save(ctx, g); err != nil {
				return err
			}
			tx.Record(engine.NewGameStateChanged(g, time.Now()))
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, "ROLLB1")
		require.NoError(t, err)
		assert.Equal(t, "Friday crawl", got.Name)
		assert.Len(t, n.kinds(), before)
	})

	t.Run("concurrent work on one game is serialized", func(t *testing.T) {
		s := newStore(t, nil)
		seedGame(t, s, "SERIA1")

		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Within(ctx, "SERIA1", func(tx Tx) error {
					g, err := tx.Load(ctx)
					if err != nil {
						return err
					}
					_, g, err = engine.Apply(g, engine.Command{Type: engine.CmdJoin, Name: string(rune('A' + i))}, time.Now().UTC())
					if err != nil {
						return err
					}
					return tx.Save(ctx, g)
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.Get(ctx, "SERIA1")
		require.NoError(t, err)
		assert.Len(t, got.Players, n)
	})
}

func TestMemory(t *testing.T) {
	runTransactorSuite(t, func(_ *testing.T, n Notifier) Transactor {
		return NewMemory(n)
	})
}

func TestMemory_GetReturnsDetachedCopy(t *testing.T) {
	s := NewMemory(nil)
	seedGame(t, s, "COPY01")

	g, err := s.Get(context.Background(), "COPY01")
	require.NoError(t, err)
	g.Holes[0].Name = "mutated"

	again, err := s.Get(context.Background(), "COPY01")
	require.NoError(t, err)
	assert.Equal(t, "The Crown", again.Holes[0].Name)
}

func TestGameLocks_ReleasedEntriesAreDropped(t *testing.T) {
	var l gameLocks

	unlockA := l.lock("ACE007")
	unlockB := l.lock("BOB123")
	require.Equal(t, 2, l.len())

	unlockA()
	unlockB()
	assert.Equal(t, 0, l.len())
}

func TestGameLocks_SameGameExcludes(t *testing.T) {
	var l gameLocks
	unlock := l.lock("ACE007")

	acquired := make(chan struct{})
	go func() {
		release := l.lock("ace007x")
		release()
		second := l.lock("ACE007")
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was never handed over")
	}
}
