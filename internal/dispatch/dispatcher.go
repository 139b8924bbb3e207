package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/events"
	"github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, code engine.Code, msg any) int
	CloseAll(code engine.Code) int
}

// Dispatcher turns committed events into client broadcasts. Each game has
// its own FIFO drained by a single goroutine, so clients of one game see
// messages in commit order while games never wait on each other.
type Dispatcher struct {
	b   Broadcaster
	log *zap.Logger

	mu     sync.Mutex
	lanes  map[engine.Code]*lane
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

type lane struct {
	queue []engine.DomainEvent
}

func New(parent context.Context, b Broadcaster, log *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(parent)
	return &Dispatcher{
		b:      b,
		log:    log.Named("dispatch"),
		lanes:  make(map[engine.Code]*lane),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe wires the dispatcher to every broadcast kind on the bus.
func (d *Dispatcher) Subscribe(bus *events.Bus) {
	for _, kind := range engine.EventKinds {
		if kind.Broadcast() {
			bus.Subscribe(kind, d.Enqueue)
		}
	}
}

// Enqueue appends ev to its game's queue and starts a drain if none runs.
// The caller's context only scopes the commit; delivery outlives it.
func (d *Dispatcher) Enqueue(_ context.Context, ev engine.DomainEvent) {
	code := ev.GameCode()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Warn("dropping event after close",
			zap.String("game", string(code)), zap.String("kind", string(ev.Kind())))
		return
	}

	if l, ok := d.lanes[code]; ok {
		l.queue = append(l.queue, ev)
		return
	}

	l := &lane{queue: []engine.DomainEvent{ev}}
	d.lanes[code] = l
	d.wg.Add(1)
	go d.drain(code, l)
}

func (d *Dispatcher) drain(code engine.Code, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.queue) == 0 {
			delete(d.lanes, code)
			d.mu.Unlock()
			return
		}
		ev := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		d.mu.Unlock()

		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev engine.DomainEvent) {
	code := ev.GameCode()
	log := d.log.With(zap.String("game", string(code)), zap.String("kind", string(ev.Kind())))

	var n int
	switch e := ev.(type) {
	case engine.GameStateChanged:
		n = d.b.Broadcast(d.ctx, code, types.GameStateChanged(e.Game))

	case engine.EventActivated:
		n = d.b.Broadcast(d.ctx, code, types.EventActivated(code, e.EventID, e.Title))

	case engine.EventEnded:
		n = d.b.Broadcast(d.ctx, code, types.EventEnded(code, e.EventID, e.Title))

	case engine.GameCompleted:
		n = d.b.Broadcast(d.ctx, code, types.GameCompleted(e.Game))
		closed := d.b.CloseAll(code)
		log.Info("game completed, sessions closed", zap.Int("sessions", closed))

	default:
		log.Debug("no broadcast for event")
		return
	}
	log.Debug("broadcast delivered", zap.Int("sessions", n))
}

// Close stops accepting events and waits for queued ones to be delivered.
// If ctx ends first, pending sends are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Pending reports how many games currently have a drain running.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}
