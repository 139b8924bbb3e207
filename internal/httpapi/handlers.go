package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/game"
	"github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

type holeRequest struct {
	Number int     `json:"number" validate:"min=1,max=9"`
	Name   string  `json:"name" validate:"required,max=80"`
	Par    int     `json:"par" validate:"min=1,max=10"`
	Lat    float64 `json:"lat" validate:"latitude"`
	Lon    float64 `json:"lon" validate:"longitude"`
}

type eventRequest struct {
	ID          string `json:"id" validate:"omitempty,max=36"`
	Title       string `json:"title" validate:"required,max=80"`
	Description string `json:"description" validate:"max=280"`
}

type createGameRequest struct {
	Name          string         `json:"name" validate:"required,max=80"`
	Holes         []holeRequest  `json:"holes" validate:"required,min=1,max=9,dive"`
	SpecialEvents []eventRequest `json:"specialEvents" validate:"max=20,dive"`
}

type joinRequest struct {
	Name string `json:"name" validate:"required,max=40"`
}

type scoreRequest struct {
	PlayerID string `json:"playerId" validate:"required"`
	Hole     int    `json:"hole" validate:"min=1,max=9"`
	Strokes  int    `json:"strokes" validate:"min=1,max=20"`
}

type playerRequest struct {
	PlayerID string `json:"playerId" validate:"required"`
}

func CreateGame(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}

		g, err := svc.Create(r.Context(), game.NewGame{
			Name: req.Name,
			Holes: lo.Map(req.Holes, func(h holeRequest, _ int) engine.Hole {
				return engine.Hole{Number: h.Number, Name: h.Name, Par: h.Par, Lat: h.Lat, Lon: h.Lon}
			}),
			Events: lo.Map(req.SpecialEvents, func(e eventRequest, _ int) engine.SpecialEvent {
				return engine.SpecialEvent{ID: e.ID, Title: e.Title, Description: e.Description}
			}),
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.Snapshot(g))
	}
}

func GetGame(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		g, err := svc.Get(r.Context(), code)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.Snapshot(g))
	})
}

func Scoreboard(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		standings, err := svc.Scoreboard(r.Context(), code)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, standings)
	})
}

func JoinGame(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		var req joinRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		p, err := svc.Join(r.Context(), code, req.Name)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	})
}

func SubmitScore(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		var req scoreRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		respondGame(w, r, log)(svc.SubmitScore(r.Context(), code, req.PlayerID, req.Hole, req.Strokes))
	})
}

func Randomise(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		var req playerRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		p, err := svc.Randomise(r.Context(), code, req.PlayerID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}

func ActivateEvent(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return eventCommand(log, svc.ActivateEvent)
}

func EndEvent(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return eventCommand(log, svc.EndEvent)
}

func CompleteGame(svc *game.Service, log *zap.Logger) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		respondGame(w, r, log)(svc.Complete(r.Context(), code))
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func eventCommand(log *zap.Logger, run func(ctx context.Context, code engine.Code, eventID string) (engine.Game, error)) http.HandlerFunc {
	return withCode(log, func(w http.ResponseWriter, r *http.Request, code engine.Code) {
		respondGame(w, r, log)(run(r.Context(), code, chi.URLParam(r, "eventID")))
	})
}

func withCode(log *zap.Logger, next func(http.ResponseWriter, *http.Request, engine.Code)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := codeParam(r)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		next(w, r, code)
	}
}

func respondGame(w http.ResponseWriter, r *http.Request, log *zap.Logger) func(engine.Game, error) {
	return func(g engine.Game, err error) {
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.Snapshot(g))
	}
}
