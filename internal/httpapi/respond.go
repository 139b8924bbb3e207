package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pubcrawl-backend/internal/apperror"
	"github.com/DoyleJ11/pubcrawl-backend/internal/engine"
	"github.com/DoyleJ11/pubcrawl-backend/internal/game"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation("malformed body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperror.Validation("%v", err)
	}
	return nil
}

func statusFor(err error) int {
	var (
		searchErr  *apperror.PlaceSearchError
		routingErr *apperror.RoutingError
	)
	switch {
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, engine.ErrInvalidCode),
		errors.Is(err, engine.ErrInvalidHoles),
		errors.Is(err, engine.ErrInvalidName),
		errors.Is(err, engine.ErrInvalidStrokes),
		errors.Is(err, engine.ErrUnknownHole),
		errors.Is(err, engine.ErrUnsupportedCommand):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, engine.ErrPlayerNotFound),
		errors.Is(err, engine.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrGameCompleted),
		errors.Is(err, engine.ErrPlayerExists),
		errors.Is(err, engine.ErrEventActive),
		errors.Is(err, engine.ErrEventNotActive),
		errors.Is(err, engine.ErrRandomiseUsed):
		return http.StatusConflict
	case errors.As(err, &searchErr), errors.As(err, &routingErr):
		return http.StatusBadGateway
	case errors.Is(err, game.ErrNoFreeCode):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func codeParam(r *http.Request) (engine.Code, error) {
	return engine.ParseCode(chi.URLParam(r, "code"))
}
