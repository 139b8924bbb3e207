package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/geocode"
	"github.com/DoyleJ11/pubcrawl-backend/internal/routing"
)

type PlaceSearcher interface {
	Search(ctx context.Context, q geocode.Query) ([]geocode.Place, error)
}

type RouteCalculator interface {
	CalculateRoute(ctx context.Context, stops []routing.Stop) (*routing.Geometry, error)
}

type routeRequest struct {
	Stops []routing.Stop `json:"stops" validate:"max=20"`
}

type routeResponse struct {
	Geometry *routing.Geometry `json:"geometry"`
}

func SearchPlaces(places PlaceSearcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := geocode.Query{ClientID: q.Get("clientId"), Text: q.Get("q")}

		var err error
		if query.Lat, err = optionalFloat(q.Get("lat")); err != nil {
			writeError(w, r, log, apperror.Validation("lat: %v", err))
			return
		}
		if query.Lon, err = optionalFloat(q.Get("lon")); err != nil {
			writeError(w, r, log, apperror.Validation("lon: %v", err))
			return
		}

		found, err := places.Search(r.Context(), query)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

func CalculateRoute(routes RouteCalculator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req routeRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		g, err := routes.CalculateRoute(r.Context(), req.Stops)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, routeResponse{Geometry: g})
	}
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
