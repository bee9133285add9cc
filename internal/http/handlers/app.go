// Package handlers exposes the escrow engine over JSON HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
	"crowdfund/internal/middleware"
)

const maxBodyBytes = 64 << 10

type App struct {
	Engine *escrow.Engine
	Logger zerolog.Logger
}

func NewApp(engine *escrow.Engine, logger zerolog.Logger) *App {
	return &App{Engine: engine, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": kind, "message": msg},
	})
}

// fail writes the response for an engine error. Unknown errors are logged
// and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, status, kind, "internal error")
		return
	}
	a.error(w, status, kind, err.Error())
}

func statusFor(kind string) int {
	switch kind {
	case "invalid_target", "invalid_amount", "invalid_title", "invalid_description",
		"invalid_metadata", "invalid_category", "invalid_executor", "invalid_campaign_id":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "campaign_not_found", "receipt_not_found", "not_found":
		return http.StatusNotFound
	case "already_exists", "campaign_not_active", "campaign_not_funded", "campaign_not_cancelled",
		"campaign_expired", "duplicate_donation", "conflict":
		return http.StatusConflict
	case "math_overflow":
		return http.StatusUnprocessableEntity
	case "insufficient_funds":
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// decode reads one JSON object from the request body. Unknown fields are
// rejected.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid payload"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit)
		}
		a.error(w, http.StatusBadRequest, "bad_request", msg)
		return false
	}
	if dec.More() {
		a.error(w, http.StatusBadRequest, "bad_request", "payload must be a single object")
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func (a *App) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
