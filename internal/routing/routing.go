package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
)

const DefaultProfile = "foot"

type Stop struct {
	Sequence int     `json:"sequence" validate:"min=1"`
	Lat      float64 `json:"lat" validate:"latitude"`
	Lon      float64 `json:"lon" validate:"longitude"`
}

// Geometry is a GeoJSON geometry as returned by the provider, usually a
// LineString of [lon, lat] pairs.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry Geometry `json:"geometry"`
	} `json:"routes"`
}

type Config struct {
	BaseURL string
	Profile string
}

// Router looks up a walking route through a game's stops from an
// OSRM-style provider.
type Router struct {
	cfg      Config
	client   *http.Client
	validate *validator.Validate
	log      *zap.Logger
}

func NewRouter(cfg Config, client *http.Client, log *zap.Logger) *Router {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Router{
		cfg:      cfg,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.Named("routing"),
	}
}

// CalculateRoute returns the geometry through stops in sequence order. It
// returns nil without error when there is nothing to route or the provider
// found no route.
func (r *Router) CalculateRoute(ctx context.Context, stops []Stop) (*Geometry, error) {
	if len(stops) < 2 {
		return nil, nil
	}
	for i, s := range stops {
		if err := r.validate.Struct(s); err != nil {
			return nil, apperror.Validation("stop %d: %v", i, err)
		}
	}

	ordered := slices.Clone(stops)
	slices.SortStableFunc(ordered, func(a, b Stop) int { return a.Sequence - b.Sequence })

	res, err := r.fetch(ctx, ordered)
	if err != nil {
		r.log.Warn("route lookup failed", zap.Int("stops", len(stops)), zap.Error(err))
		return nil, &apperror.RoutingError{Err: err}
	}
	if res.Code != "Ok" || len(res.Routes) == 0 {
		r.log.Info("no route", zap.String("code", res.Code), zap.Int("routes", len(res.Routes)))
		return nil, nil
	}
	g := res.Routes[0].Geometry
	return &g, nil
}

func (r *Router) fetch(ctx context.Context, stops []Stop) (routeResponse, error) {
	coords := strings.Join(lo.Map(stops, func(s Stop, _ int) string {
		return strconv.FormatFloat(s.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(s.Lat, 'f', -1, 64)
	}), ";")
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson", r.cfg.BaseURL, r.cfg.Profile, coords)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return routeResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return routeResponse{}, err
	}
	defer resp.Body.Close()

	var out routeResponse
	// OSRM answers "no route" style outcomes with a 400 and a JSON code.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return routeResponse{}, fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return routeResponse{}, fmt.Errorf("decode provider response: %w", err)
	}
	return out, nil
}
