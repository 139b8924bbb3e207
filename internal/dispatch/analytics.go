package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/events"
)

// Analytics records the events that never reach clients.
type Analytics struct {
	log     *zap.Logger
	counter metric.Int64Counter
}

func NewAnalytics(log *zap.Logger) *Analytics {
	a := &Analytics{log: log.Named("analytics")}
	counter, err := otel.Meter("github.com/DoyleJ11/pubcrawl-backend/internal/dispatch").
		Int64Counter("pubcrawl.domain_events", metric.WithDescription("Committed domain events by kind"))
	if err != nil {
		a.log.Warn("domain event counter unavailable", zap.Error(err))
	}
	a.counter = counter
	return a
}

func (a *Analytics) Subscribe(bus *events.Bus) {
	for _, kind := range engine.EventKinds {
		if !kind.Broadcast() {
			bus.Subscribe(kind, a.Observe)
		}
	}
}

func (a *Analytics) Observe(ctx context.Context, ev engine.DomainEvent) {
	fields := []zap.Field{
		zap.String("game", string(ev.GameCode())),
		zap.String("kind", string(ev.Kind())),
		zap.Time("at", ev.OccurredAt()),
	}
	switch e := ev.(type) {
	case engine.GameCreated:
		fields = append(fields, zap.String("name", e.Name))
	case engine.PlayerJoined:
		fields = append(fields, zap.String("player", e.PlayerID), zap.String("name", e.Name))
	case engine.ScoreSubmitted:
		fields = append(fields, zap.String("player", e.PlayerID), zap.Int("hole", e.Hole), zap.Int("strokes", e.Strokes))
	case engine.RandomiseUsed:
		fields = append(fields, zap.String("player", e.PlayerID), zap.String("option", e.Option))
	}
	a.log.Info("domain event", fields...)

	if a.counter != nil {
		a.counter.Add(context.WithoutCancel(ctx), 1,
			metric.WithAttributes(attribute.String("kind", string(ev.Kind()))))
	}
}
