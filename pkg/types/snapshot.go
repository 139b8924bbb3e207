package types

import (
	"time"

	"github.com/samber/lo"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

// GameView is the game as clients see it: the stored game plus per-player
// totals so clients never sum scores themselves.
type GameView struct {
	Code          string                `json:"code"`
	Name          string                `json:"name"`
	Status        engine.Status         `json:"status"`
	Holes         []engine.Hole         `json:"holes"`
	Players       []PlayerView          `json:"players"`
	SpecialEvents []engine.SpecialEvent `json:"specialEvents"`
	ActiveEventID string                `json:"activeEventId,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	CompletedAt   *time.Time            `json:"completedAt,omitempty"`
}

type PlayerView struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	JoinedAt      time.Time   `json:"joinedAt"`
	Scores        map[int]int `json:"scores"`
	Total         int         `json:"total"`
	HolesPlayed   int         `json:"holesPlayed"`
	RandomiseUsed bool        `json:"randomiseUsed"`
	WheelResult   string      `json:"wheelResult,omitempty"`
}

func Snapshot(g engine.Game) GameView {
	g = g.Clone()
	return GameView{
		Code:          string(g.Code),
		Name:          g.Name,
		Status:        g.Status,
		Holes:         g.Holes,
		SpecialEvents: g.SpecialEvents,
		ActiveEventID: g.ActiveEventID,
		CreatedAt:     g.CreatedAt,
		CompletedAt:   g.CompletedAt,
		Players: lo.Map(g.Players, func(p engine.Player, _ int) PlayerView {
			return PlayerView{
				ID:            p.ID,
				Name:          p.Name,
				JoinedAt:      p.JoinedAt,
				Scores:        p.Scores,
				Total:         lo.Sum(lo.Values(p.Scores)),
				HolesPlayed:   len(p.Scores),
				RandomiseUsed: p.RandomiseUsed,
				WheelResult:   p.WheelResult,
			}
		}),
	}
}
