package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
	"crowdfund/internal/store/memstore"
)

func TestFailMapsKindsToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrCampaignNotFound, http.StatusNotFound},
		{fmt.Errorf("donate: %w", domain.ErrCampaignExpired), http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrMathOverflow, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	a := &App{Logger: zerolog.Nop()}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		a.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	a := &App{Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	a.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("password=hunter2"))
	require.NotContains(t, rec.Body.String(), "hunter2")
	require.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestDecodeRejectsOversizedAndTrailingInput(t *testing.T) {
	a := &App{Logger: zerolog.Nop()}
	var dst donateRequest

	big := `{"amount":1` + strings.Repeat(" ", maxBodyBytes) + `}`
	rec := httptest.NewRecorder()
	require.False(t, a.decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &dst))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	require.False(t, a.decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":1}{"amount":2}`)), &dst))

	rec = httptest.NewRecorder()
	require.True(t, a.decodeOptional(rec, httptest.NewRequest(http.MethodPost, "/", nil), &struct{}{}))
}

type unreachableStore struct{ domain.Store }

func (unreachableStore) Atomically(context.Context, func(domain.Tx) error) error {
	return errors.New("dial tcp: connection refused")
}

func TestHealthReflectsStore(t *testing.T) {
	for _, tc := range []struct {
		store domain.Store
		code  int
		body  string
	}{
		{memstore.New(), http.StatusOK, `"status":"ok"`},
		{unreachableStore{}, http.StatusServiceUnavailable, `"status":"degraded"`},
	} {
		engine, err := escrow.New(tc.store, escrow.Options{Platform: "platform"})
		require.NoError(t, err)
		a := NewApp(engine, zerolog.Nop())
		rec := httptest.NewRecorder()
		a.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
		require.Equal(t, tc.code, rec.Code)
		require.Contains(t, rec.Body.String(), tc.body)
	}
}
