package engine

import (
	"cmp"
	"slices"
)

type Standing struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	Strokes     int    `json:"strokes"`
	Par         int    `json:"par"`
	ToPar       int    `json:"toPar"`
	HolesPlayed int    `json:"holesPlayed"`
}

// Standings ranks players by strokes relative to the par of the holes they
// have actually played. Ties share a rank (1, 1, 3).
func Standings(g Game) []Standing {
	out := make([]Standing, 0, len(g.Players))
	for _, p := range g.Players {
		s := Standing{PlayerID: p.ID, Name: p.Name}
		for hole, strokes := range p.Scores {
			h, ok := g.Hole(hole)
			if !ok {
				continue
			}
			s.Strokes += strokes
			s.Par += h.Par
			s.HolesPlayed++
		}
		s.ToPar = s.Strokes - s.Par
		out = append(out, s)
	}

	slices.SortFunc(out, func(a, b Standing) int {
		return cmp.Or(
			cmp.Compare(a.ToPar, b.ToPar),
			cmp.Compare(b.HolesPlayed, a.HolesPlayed),
			cmp.Compare(a.Name, b.Name),
		)
	})

	for i := range out {
		if i > 0 && out[i].ToPar == out[i-1].ToPar && out[i].HolesPlayed == out[i-1].HolesPlayed {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
