package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

// Memory keeps games in process. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu       sync.RWMutex
	games    map[engine.Code]engine.Game
	locks    gameLocks
	notifier Notifier
}

func NewMemory(n Notifier) *Memory {
	return &Memory{games: make(map[engine.Code]engine.Game), notifier: n}
}

func (m *Memory) Get(_ context.Context, code engine.Code) (engine.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[code]
	if !ok {
		return engine.Game{}, fmt.Errorf("game %s: %w", code, apperror.ErrNotFound)
	}
	return g.Clone(), nil
}

func (m *Memory) Within(ctx context.Context, code engine.Code, fn func(Tx) error) error {
	unlock := m.locks.lock(code)
	defer unlock()

	tx := &memoryTx{m: m, code: code}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.staged {
		m.mu.Lock()
		m.games[code] = tx.next
		m.mu.Unlock()
	}
	notify(ctx, m.notifier, tx.events)
	return nil
}

type memoryTx struct {
	m      *Memory
	code   engine.Code
	next   engine.Game
	staged bool
	events []engine.DomainEvent
}

func (t *memoryTx) Load(ctx context.Context) (engine.Game, error) {
	if t.staged {
		return t.next.Clone(), nil
	}
	return t.m.Get(ctx, t.code)
}

func (t *memoryTx) Insert(_ context.Context, g engine.Game) error {
	if g.Code != t.code {
		return apperror.Validation("game code %s does not match unit of work %s", g.Code, t.code)
	}
	t.m.mu.RLock()
	_, exists := t.m.games[t.code]
	t.m.mu.RUnlock()
	if exists || t.staged {
		return ErrCodeTaken
	}
	t.next, t.staged = g.Clone(), true
	return nil
}

func (t *memoryTx) Save(_ context.Context, g engine.Game) error {
	if g.Code != t.code {
		return apperror.Validation("game code %s does not match unit of work %s", g.Code, t.code)
	}
	if !t.staged {
		t.m.mu.RLock()
		_, exists := t.m.games[t.code]
		t.m.mu.RUnlock()
		if !exists {
			return fmt.Errorf("game %s: %w", t.code, apperror.ErrNotFound)
		}
	}
	t.next, t.staged = g.Clone(), true
	return nil
}

func (t *memoryTx) Record(evs ...engine.DomainEvent) {
	t.events = append(t.events, evs...)
}
