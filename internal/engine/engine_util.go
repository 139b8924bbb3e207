package engine

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

var ErrInvalidCode = errors.New("invalid game code")
var ErrInvalidHoles = errors.New("invalid holes")

const MaxHoles = 9

// Code identifies a game. Codes are case-insensitive; always go through
// NormalizeCode before comparing or using one as a key.
type Code string

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,12}$`)

func NormalizeCode(s string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(s)))
}

func (c Code) Valid() bool {
	return codePattern.MatchString(string(c))
}

func (c Code) String() string { return string(c) }

// ParseCode normalizes s and rejects anything that is not a well-formed code.
func ParseCode(s string) (Code, error) {
	c := NormalizeCode(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	return c, nil
}

// NewGame builds an active game and the GameCreated event for it.
func NewGame(code Code, name string, holes []Hole, events []SpecialEvent, now time.Time) (Game, DomainEvent, error) {
	if !code.Valid() {
		return Game{}, nil, ErrInvalidCode
	}
	if err := validateHoles(holes); err != nil {
		return Game{}, nil, err
	}

	g := Game{
		Code:          code,
		Name:          strings.TrimSpace(name),
		Status:        StatusActive,
		Holes:         slices.Clone(holes),
		Players:       []Player{},
		SpecialEvents: make([]SpecialEvent, 0, len(events)),
		CreatedAt:     now,
	}
	slices.SortFunc(g.Holes, func(a, b Hole) int { return a.Number - b.Number })

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = newID()
		}
		ev.Active = false
		ev.StartedAt, ev.EndedAt = nil, nil
		g.SpecialEvents = append(g.SpecialEvents, ev)
	}

	return g, GameCreated{baseEvent: baseEvent{Code: code, At: now}, Name: g.Name}, nil
}

func validateHoles(holes []Hole) error {
	if len(holes) == 0 || len(holes) > MaxHoles {
		return fmt.Errorf("%w: want 1..%d holes, got %d", ErrInvalidHoles, MaxHoles, len(holes))
	}
	seen := map[int]bool{}
	for _, h := range holes {
		if h.Number < 1 || h.Number > MaxHoles {
			return fmt.Errorf("%w: hole number %d", ErrInvalidHoles, h.Number)
		}
		if seen[h.Number] {
			return fmt.Errorf("%w: duplicate hole %d", ErrInvalidHoles, h.Number)
		}
		if h.Par < 1 {
			return fmt.Errorf("%w: hole %d par %d", ErrInvalidHoles, h.Number, h.Par)
		}
		seen[h.Number] = true
	}
	return nil
}

// Clone returns a deep copy so snapshots handed to events and stores never
// share maps or slices with the live state.
func (g Game) Clone() Game {
	c := g
	c.Holes = slices.Clone(g.Holes)
	c.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		p.Scores = maps.Clone(p.Scores)
		if p.Scores == nil {
			p.Scores = map[int]int{}
		}
		c.Players[i] = p
	}
	c.SpecialEvents = make([]SpecialEvent, len(g.SpecialEvents))
	for i, ev := range g.SpecialEvents {
		ev.StartedAt = cloneTime(ev.StartedAt)
		ev.EndedAt = cloneTime(ev.EndedAt)
		c.SpecialEvents[i] = ev
	}
	c.CompletedAt = cloneTime(g.CompletedAt)
	return c
}

func (g Game) Hole(number int) (Hole, bool) {
	for _, h := range g.Holes {
		if h.Number == number {
			return h, true
		}
	}
	return Hole{}, false
}

func (g Game) Player(id string) (Player, bool) {
	if i := g.playerIndex(id); i >= 0 {
		return g.Players[i], true
	}
	return Player{}, false
}

func (g Game) playerIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(g.Players, func(p Player) bool { return p.ID == id })
}

func (g Game) eventIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(g.SpecialEvents, func(ev SpecialEvent) bool { return ev.ID == id })
}

func ContainsEvent(events []DomainEvent, kind EventKind) bool {
	for _, event := range events {
		if event.Kind() == kind {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
