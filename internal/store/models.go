package store

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
)

type gameRecord struct {
	Code          string                `gorm:"primaryKey;size:12"`
	Name          string                `gorm:"not null"`
	Status        string                `gorm:"size:16;not null"`
	Holes         []engine.Hole         `gorm:"serializer:json;type:jsonb;not null"`
	SpecialEvents []engine.SpecialEvent `gorm:"serializer:json;type:jsonb;not null"`
	ActiveEventID string                `gorm:"size:36"`
	CreatedAt     time.Time             `gorm:"not null"`
	CompletedAt   *time.Time
	Players       []playerRecord `gorm:"foreignKey:GameCode;references:Code;constraint:OnDelete:CASCADE"`
}

func (gameRecord) TableName() string { return "games" }

// Player names are unique per game regardless of case; NameKey carries the
// folded name for the unique index.
type playerRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	GameCode      string    `gorm:"size:12;not null;uniqueIndex:idx_players_game_name"`
	Name          string    `gorm:"not null"`
	NameKey       string    `gorm:"not null;uniqueIndex:idx_players_game_name"`
	JoinedAt      time.Time `gorm:"not null"`
	RandomiseUsed bool      `gorm:"not null;default:false"`
	WheelResult   string
	Scores        []scoreRecord `gorm:"foreignKey:PlayerID;references:ID;constraint:OnDelete:CASCADE"`
}

func (playerRecord) TableName() string { return "players" }

type scoreRecord struct {
	PlayerID string `gorm:"primaryKey;size:36"`
	Hole     int    `gorm:"primaryKey"`
	Strokes  int    `gorm:"not null"`
}

func (scoreRecord) TableName() string { return "scores" }

func toRecord(g engine.Game) gameRecord {
	return gameRecord{
		Code:          string(g.Code),
		Name:          g.Name,
		Status:        string(g.Status),
		Holes:         lo.Ternary(g.Holes == nil, []engine.Hole{}, g.Holes),
		SpecialEvents: lo.Ternary(g.SpecialEvents == nil, []engine.SpecialEvent{}, g.SpecialEvents),
		ActiveEventID: g.ActiveEventID,
		CreatedAt:     g.CreatedAt,
		CompletedAt:   g.CompletedAt,
		Players: lo.Map(g.Players, func(p engine.Player, _ int) playerRecord {
			return toPlayerRecord(g.Code, p)
		}),
	}
}

func toPlayerRecord(code engine.Code, p engine.Player) playerRecord {
	return playerRecord{
		ID:            p.ID,
		GameCode:      string(code),
		Name:          p.Name,
		NameKey:       strings.ToLower(p.Name),
		JoinedAt:      p.JoinedAt,
		RandomiseUsed: p.RandomiseUsed,
		WheelResult:   p.WheelResult,
		Scores: lo.MapToSlice(p.Scores, func(hole, strokes int) scoreRecord {
			return scoreRecord{PlayerID: p.ID, Hole: hole, Strokes: strokes}
		}),
	}
}

func (r gameRecord) toGame() engine.Game {
	return engine.Game{
		Code:          engine.Code(r.Code),
		Name:          r.Name,
		Status:        engine.Status(r.Status),
		Holes:         lo.Ternary(r.Holes == nil, []engine.Hole{}, r.Holes),
		SpecialEvents: lo.Ternary(r.SpecialEvents == nil, []engine.SpecialEvent{}, r.SpecialEvents),
		ActiveEventID: r.ActiveEventID,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
		Players: lo.Map(r.Players, func(p playerRecord, _ int) engine.Player {
			return engine.Player{
				ID:            p.ID,
				Name:          p.Name,
				JoinedAt:      p.JoinedAt,
				RandomiseUsed: p.RandomiseUsed,
				WheelResult:   p.WheelResult,
				Scores: lo.SliceToMap(p.Scores, func(s scoreRecord) (int, int) {
					return s.Hole, s.Strokes
				}),
			}
		}),
	}
}
