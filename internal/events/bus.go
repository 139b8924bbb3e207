package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

// Handler reacts to one committed domain event.
type Handler func(ctx context.Context, ev engine.DomainEvent)

// Bus delivers committed domain events to the handlers subscribed for their
// kind. The store calls Committed only after a transaction commits, and
// does so while still holding the game's lock, so handlers observe events
// of one game in commit order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[engine.EventKind][]Handler
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[engine.EventKind][]Handler),
		log:      log.Named("events"),
	}
}

func (b *Bus) Subscribe(kind engine.EventKind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Committed runs every subscribed handler for each event, in order. A
// panicking handler is logged and does not stop the others.
func (b *Bus) Committed(ctx context.Context, evs []engine.DomainEvent) {
	for _, ev := range evs {
		b.mu.RLock()
		hs := b.handlers[ev.Kind()]
		b.mu.RUnlock()

		for _, h := range hs {
			b.call(ctx, h, ev)
		}
	}
}

func (b *Bus) call(ctx context.Context, h Handler, ev engine.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("kind", string(ev.Kind())),
				zap.String("game", string(ev.GameCode())),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, ev)
}
