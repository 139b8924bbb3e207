package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/game"
	"github.com/DoyleJ11/pubcrawl-backend/internal/hub"
	"github.com/DoyleJ11/pubcrawl-backend/internal/ws"
)

type Deps struct {
	Games          *game.Service
	Hub            *hub.Hub
	Places         PlaceSearcher
	Routes         RouteCalculator
	Log            *zap.Logger
	OriginPatterns []string
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)

	r.Route("/games", func(r chi.Router) {
		r.Post("/", CreateGame(d.Games, log))
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", GetGame(d.Games, log))
			r.Get("/scoreboard", Scoreboard(d.Games, log))
			r.Post("/players", JoinGame(d.Games, log))
			r.Post("/scores", SubmitScore(d.Games, log))
			r.Post("/randomise", Randomise(d.Games, log))
			r.Post("/events/{eventID}/activate", ActivateEvent(d.Games, log))
			r.Post("/events/{eventID}/end", EndEvent(d.Games, log))
			r.Post("/complete", CompleteGame(d.Games, log))
		})
	})

	r.Get("/places", SearchPlaces(d.Places, log))
	r.Post("/routes", CalculateRoute(d.Routes, log))

	r.Get("/ws/games/{gameID}", ws.Handler(d.Hub, d.Games, d.Log, d.OriginPatterns))
	return r
}
