package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/events"
)

func TestAnalytics_LogsOnlyAnalyticsKinds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bus := events.NewBus(zap.NewNop())
	NewAnalytics(zap.New(core)).Subscribe(bus)

	evs, _, err := engine.Apply(
		engine.Game{Code: "ACE007", Status: engine.StatusActive, Players: []engine.Player{}},
		engine.Command{Type: engine.CmdJoin, Name: "Alice"}, time.Now())
	assert.NoError(t, err)

	bus.Committed(context.Background(), evs)

	entries := logs.FilterMessage("domain event").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "PlayerJoined", fields["kind"])
		assert.Equal(t, "Alice", fields["name"])
		assert.Equal(t, "ACE007", fields["game"])
	}
}
