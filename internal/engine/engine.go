package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrGameCompleted = errors.New("game already completed")
var ErrPlayerNotFound = errors.New("player not in game")
var ErrPlayerExists = errors.New("player name already taken")
var ErrInvalidName = errors.New("player name required")
var ErrUnknownHole = errors.New("unknown hole")
var ErrInvalidStrokes = errors.New("strokes out of range")
var ErrEventNotFound = errors.New("special event not found")
var ErrEventActive = errors.New("another special event is active")
var ErrEventNotActive = errors.New("special event is not active")
var ErrRandomiseUsed = errors.New("wheel already spun")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	MinStrokes = 1
	MaxStrokes = 20
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

type Hole struct {
	Number int     `json:"number"`
	Name   string  `json:"name"`
	Par    int     `json:"par"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type Player struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	JoinedAt      time.Time   `json:"joinedAt"`
	Scores        map[int]int `json:"scores"` // hole number -> strokes
	RandomiseUsed bool        `json:"randomiseUsed"`
	WheelResult   string      `json:"wheelResult,omitempty"`
}

type SpecialEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

type Game struct {
	Code          Code           `json:"code"`
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	Holes         []Hole         `json:"holes"`
	Players       []Player       `json:"players"`
	SpecialEvents []SpecialEvent `json:"specialEvents"`
	ActiveEventID string         `json:"activeEventId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

type CommandType string

const (
	CmdJoin          CommandType = "Join"
	CmdSubmitScore   CommandType = "SubmitScore"
	CmdActivateEvent CommandType = "ActivateEvent"
	CmdEndEvent      CommandType = "EndEvent"
	CmdComplete      CommandType = "Complete"
	CmdRandomise     CommandType = "Randomise"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	Hole     int
	Strokes  int
	EventID  string
}

// newID is swapped in tests for stable player ids.
var newID = uuid.NewString

// Apply validates cmd against g and returns the events it produces together
// with the next state. g itself is never modified.
func Apply(g Game, cmd Command, now time.Time) ([]DomainEvent, Game, error) {
	if g.Status == StatusCompleted {
		return nil, g, ErrGameCompleted
	}

	next := g.Clone()
	base := baseEvent{Code: g.Code, At: now}

	switch cmd.Type {
	case CmdJoin:
		name := strings.TrimSpace(cmd.Name)
		if name == "" {
			return nil, g, ErrInvalidName
		}
		for _, p := range g.Players {
			if strings.EqualFold(p.Name, name) {
				return nil, g, ErrPlayerExists
			}
		}

		player := Player{ID: newID(), Name: name, JoinedAt: now, Scores: map[int]int{}}
		next.Players = append(next.Players, player)

		return []DomainEvent{
			PlayerJoined{baseEvent: base, PlayerID: player.ID, Name: player.Name},
			NewGameStateChanged(next, base.At),
		}, next, nil

	case CmdSubmitScore:
		idx := next.playerIndex(cmd.PlayerID)
		if idx < 0 {
			return nil, g, ErrPlayerNotFound
		}
		if _, ok := next.Hole(cmd.Hole); !ok {
			return nil, g, ErrUnknownHole
		}
		if cmd.Strokes < MinStrokes || cmd.Strokes > MaxStrokes {
			return nil, g, ErrInvalidStrokes
		}

		next.Players[idx].Scores[cmd.Hole] = cmd.Strokes

		return []DomainEvent{
			ScoreSubmitted{baseEvent: base, PlayerID: cmd.PlayerID, Hole: cmd.Hole, Strokes: cmd.Strokes},
			NewGameStateChanged(next, base.At),
		}, next, nil

	case CmdActivateEvent:
		idx := next.eventIndex(cmd.EventID)
		if idx < 0 {
			return nil, g, ErrEventNotFound
		}
		if next.ActiveEventID != "" {
			return nil, g, ErrEventActive
		}

		ev := &next.SpecialEvents[idx]
		started := now
		ev.Active = true
		ev.StartedAt = &started
		ev.EndedAt = nil
		next.ActiveEventID = ev.ID

		return []DomainEvent{
			EventActivated{baseEvent: base, EventID: ev.ID, Title: ev.Title},
		}, next, nil

	case CmdEndEvent:
		idx := next.eventIndex(cmd.EventID)
		if idx < 0 {
			return nil, g, ErrEventNotFound
		}
		if next.ActiveEventID != cmd.EventID {
			return nil, g, ErrEventNotActive
		}

		ev := &next.SpecialEvents[idx]
		endEvent(ev, now)
		next.ActiveEventID = ""

		return []DomainEvent{
			EventEnded{baseEvent: base, EventID: ev.ID, Title: ev.Title},
		}, next, nil

	case CmdComplete:
		// An event still running is closed quietly; the completion message
		// supersedes it for every client.
		if idx := next.eventIndex(next.ActiveEventID); idx >= 0 {
			endEvent(&next.SpecialEvents[idx], now)
		}
		completed := now
		next.ActiveEventID = ""
		next.Status = StatusCompleted
		next.CompletedAt = &completed

		return []DomainEvent{
			GameCompleted{baseEvent: base, Game: next.Clone()},
		}, next, nil

	case CmdRandomise:
		idx := next.playerIndex(cmd.PlayerID)
		if idx < 0 {
			return nil, g, ErrPlayerNotFound
		}
		if next.Players[idx].RandomiseUsed {
			return nil, g, ErrRandomiseUsed
		}

		option := spinWheel()
		next.Players[idx].RandomiseUsed = true
		next.Players[idx].WheelResult = option

		return []DomainEvent{
			RandomiseUsed{baseEvent: base, PlayerID: cmd.PlayerID, Option: option},
			NewGameStateChanged(next, base.At),
		}, next, nil

	default:
		return nil, g, ErrUnsupportedCommand
	}
}

func endEvent(ev *SpecialEvent, now time.Time) {
	ended := now
	ev.Active = false
	ev.EndedAt = &ended
}
