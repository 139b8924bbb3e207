package engine

import "time"

type EventKind string

const (
	EvtGameStateChanged EventKind = "GameStateChanged"
	EvtEventActivated   EventKind = "EventActivated"
	EvtEventEnded       EventKind = "EventEnded"
	EvtGameCompleted    EventKind = "GameCompleted"

	// Analytics only, never broadcast.
	EvtGameCreated    EventKind = "GameCreated"
	EvtPlayerJoined   EventKind = "PlayerJoined"
	EvtScoreSubmitted EventKind = "ScoreSubmitted"
	EvtRandomiseUsed  EventKind = "RandomiseUsed"
)

// EventKinds lists every kind Apply can emit.
var EventKinds = []EventKind{
	EvtGameStateChanged, EvtEventActivated, EvtEventEnded, EvtGameCompleted,
	EvtGameCreated, EvtPlayerJoined, EvtScoreSubmitted, EvtRandomiseUsed,
}

// DomainEvent is a committed state change. The set of variants is closed:
// only this package can construct one.
type DomainEvent interface {
	Kind() EventKind
	GameCode() Code
	OccurredAt() time.Time
	isDomainEvent()
}

type baseEvent struct {
	Code Code
	At   time.Time
}

func (e baseEvent) GameCode() Code        { return e.Code }
func (e baseEvent) OccurredAt() time.Time { return e.At }
func (baseEvent) isDomainEvent()          {}

type GameStateChanged struct {
	baseEvent
	Game Game
}

type EventActivated struct {
	baseEvent
	EventID string
	Title   string
}

type EventEnded struct {
	baseEvent
	EventID string
	Title   string
}

type GameCompleted struct {
	baseEvent
	Game Game
}

type GameCreated struct {
	baseEvent
	Name string
}

type PlayerJoined struct {
	baseEvent
	PlayerID string
	Name     string
}

type ScoreSubmitted struct {
	baseEvent
	PlayerID string
	Hole     int
	Strokes  int
}

type RandomiseUsed struct {
	baseEvent
	PlayerID string
	Option   string
}

func (GameStateChanged) Kind() EventKind { return EvtGameStateChanged }
func (EventActivated) Kind() EventKind   { return EvtEventActivated }
func (EventEnded) Kind() EventKind       { return EvtEventEnded }
func (GameCompleted) Kind() EventKind    { return EvtGameCompleted }
func (GameCreated) Kind() EventKind      { return EvtGameCreated }
func (PlayerJoined) Kind() EventKind     { return EvtPlayerJoined }
func (ScoreSubmitted) Kind() EventKind   { return EvtScoreSubmitted }
func (RandomiseUsed) Kind() EventKind    { return EvtRandomiseUsed }

// Broadcast reports whether clients of the game are told about this kind.
func (k EventKind) Broadcast() bool {
	switch k {
	case EvtGameStateChanged, EvtEventActivated, EvtEventEnded, EvtGameCompleted:
		return true
	default:
		return false
	}
}

// NewGameStateChanged carries a detached snapshot of g.
func NewGameStateChanged(g Game, at time.Time) GameStateChanged {
	return GameStateChanged{baseEvent: baseEvent{Code: g.Code, At: at}, Game: g.Clone()}
}
