package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

const (
	DefaultSendTimeout = 3 * time.Second
	DefaultConcurrency = 16
)

// Broadcaster pushes one serialized message to every session of a game.
// Delivery is fire-and-forget: per-session failures are logged and never
// reach the caller.
type Broadcaster struct {
	hub         *Hub
	log         *zap.Logger
	sendTimeout time.Duration
	concurrency int
	failures    metric.Int64Counter
}

type Option func(*Broadcaster)

func WithSendTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.sendTimeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func NewBroadcaster(h *Hub, log *zap.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		hub:         h,
		log:         log.Named("broadcast"),
		sendTimeout: DefaultSendTimeout,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}

	failures, err := otel.Meter("github.com/DoyleJ11/pubcrawl-backend/internal/hub").
		Int64Counter("pubcrawl.broadcast.send_failures", metric.WithDescription("Failed session sends"))
	if err != nil {
		b.log.Warn("send failure counter unavailable", zap.Error(err))
	}
	b.failures = failures
	return b
}

// Broadcast serializes msg once and sends it to the game's sessions
// concurrently. It returns how many sessions accepted the message.
func (b *Broadcaster) Broadcast(ctx context.Context, code engine.Code, msg any) int {
	log := b.log.With(zap.String("game", string(code)))

	sessions := b.hub.Sessions(code)
	if len(sessions) == 0 {
		return 0
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error("marshal broadcast", zap.Error(err))
		return 0
	}

	var delivered atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for _, s := range sessions {
		if !s.IsOpen() {
			log.Debug("skip closed session", zap.String("session", s.ID()))
			continue
		}
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()

			if err := s.Send(sendCtx, payload); err != nil {
				log.Warn("send failed", zap.String("session", s.ID()), zap.Error(err))
				if b.failures != nil {
					b.failures.Add(ctx, 1)
				}
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(delivered.Load())
}

// CloseAll removes the game's entry and closes every session in it.
// Subsequent broadcasts for the game reach nobody until a new session
// registers.
func (b *Broadcaster) CloseAll(code engine.Code) int {
	sessions := b.hub.Detach(code)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs error
	)
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close("game completed"); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if errs != nil {
		b.log.Warn("close sessions", zap.String("game", string(code)), zap.Error(errs))
	}
	return len(sessions)
}
