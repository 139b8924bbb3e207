package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
)

// BoxHalfWidth is the half-width in degrees of the area a search is biased
// towards when an origin is given.
const BoxHalfWidth = 0.045

const (
	DefaultDelay = time.Second
	DefaultLimit = 5
)

type Config struct {
	BaseURL   string
	UserAgent string
	Delay     time.Duration
	Limit     int
}

type Query struct {
	ClientID string
	Text     string
	Lat, Lon *float64
}

type Place struct {
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type providerPlace struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat,string"`
	Lon         float64 `json:"lon,string"`
}

// ticket is the latest query a client asked for. seq tells apart two calls
// with the same text.
type ticket struct {
	seq  uint64
	text string
}

// Searcher proxies place searches to a Nominatim-style provider. A single
// permit lets one provider call run at a time process-wide, and a call
// whose client has since asked for something else is skipped.
type Searcher struct {
	cfg    Config
	client *http.Client
	sem    *semaphore.Weighted
	log    *zap.Logger

	mu     sync.Mutex
	seq    uint64
	latest map[string]ticket
}

func NewSearcher(cfg Config, client *http.Client, log *zap.Logger) *Searcher {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = http.DefaultClient
	}
	return &Searcher{
		cfg:    cfg,
		client: client,
		sem:    semaphore.NewWeighted(1),
		log:    log.Named("geocode"),
		latest: make(map[string]ticket),
	}
}

func (s *Searcher) Search(ctx context.Context, q Query) ([]Place, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, apperror.Validation("search text required")
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		s.log.Debug("origin ignored, lat and lon must both be set", zap.String("client", q.ClientID))
	}

	t := s.track(q.ClientID, text)
	defer s.clear(q.ClientID, t)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if err := sleep(ctx, s.cfg.Delay); err != nil {
		return nil, err
	}

	if s.superseded(q.ClientID, t) {
		s.log.Debug("query superseded", zap.String("client", q.ClientID), zap.String("q", text))
		return []Place{}, nil
	}

	places, err := s.fetch(ctx, text, q.Lat, q.Lon)
	if err != nil {
		s.log.Warn("place search failed", zap.String("q", text), zap.Error(err))
		return nil, &apperror.PlaceSearchError{Err: err}
	}
	return places, nil
}

// track records t as the client's latest query before the permit is
// requested.
func (s *Searcher) track(clientID, text string) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := ticket{seq: s.seq, text: text}
	if clientID != "" {
		s.latest[clientID] = t
	}
	return t
}

// superseded reports whether a newer query replaced t. A missing marker
// means a newer query already ran and cleared its own.
func (s *Searcher) superseded(clientID string, t ticket) bool {
	if clientID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.latest[clientID]
	return !ok || cur != t
}

// clear drops the client's marker only if no newer query replaced it.
func (s *Searcher) clear(clientID string, t ticket) {
	if clientID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[clientID] == t {
		delete(s.latest, clientID)
	}
}

func (s *Searcher) pending(clientID string) (ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.latest[clientID]
	return t, ok
}

func (s *Searcher) fetch(ctx context.Context, text string, lat, lon *float64) ([]Place, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(s.cfg.Limit))
	if lat != nil && lon != nil {
		params.Set("viewbox", viewbox(*lat, *lon))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []providerPlace
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if len(raw) > s.cfg.Limit {
		raw = raw[:s.cfg.Limit]
	}
	return lo.Map(raw, func(p providerPlace, _ int) Place {
		return Place{DisplayName: p.DisplayName, Lat: p.Lat, Lon: p.Lon}
	}), nil
}

// viewbox is left,top,right,bottom.
func viewbox(lat, lon float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return strings.Join([]string{
		f(lon - BoxHalfWidth),
		f(lat + BoxHalfWidth),
		f(lon + BoxHalfWidth),
		f(lat - BoxHalfWidth),
	}, ",")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
