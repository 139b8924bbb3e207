package store

import (
	"context"
	"errors"
	"sync"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

var ErrCodeTaken = errors.New("game code already taken")

// Tx is the unit of work for one game. Events recorded on it are handed to
// the Notifier only after the work commits.
type Tx interface {
	Load(ctx context.Context) (engine.Game, error)
	Insert(ctx context.Context, g engine.Game) error
	Save(ctx context.Context, g engine.Game) error
	Record(evs ...engine.DomainEvent)
}

type Transactor interface {
	Get(ctx context.Context, code engine.Code) (engine.Game, error)
	Within(ctx context.Context, code engine.Code, fn func(Tx) error) error
}

// Notifier receives the events of a committed unit of work. It is called
// while the game's lock is still held, so successive calls for one game
// arrive in commit order.
type Notifier interface {
	Committed(ctx context.Context, evs []engine.DomainEvent)
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

// gameLocks serializes units of work per game. Entries are dropped once no
// caller holds or waits on them.
type gameLocks struct {
	mu    sync.Mutex
	locks map[engine.Code]*gameLock
}

func (l *gameLocks) lock(code engine.Code) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[engine.Code]*gameLock)
	}
	gl, ok := l.locks[code]
	if !ok {
		gl = &gameLock{}
		l.locks[code] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.mu.Lock()

	return func() {
		gl.mu.Unlock()

		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}

func (l *gameLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func notify(ctx context.Context, n Notifier, evs []engine.DomainEvent) {
	if n == nil || len(evs) == 0 {
		return
	}
	n.Committed(ctx, evs)
}
