package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain"
)

const secret = "test-secret"

func TestAuthJWTStoresCaller(t *testing.T) {
	token, err := SignJWT(secret, "alice", time.Hour)
	require.NoError(t, err)

	var seen domain.Identity
	h := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.Identity("alice"), seen)
}

func TestAuthJWTRejects(t *testing.T) {
	expired, err := SignJWT(secret, "alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := SignJWT("other-secret", "alice", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(secret))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	escrowSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: string(domain.EscrowAccount("abc"))}).
		SignedString([]byte(secret))
	require.NoError(t, err)
	depositSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: string(domain.DepositAccount)}).
		SignedString([]byte(secret))
	require.NoError(t, err)

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic abc",
		"expired":         "Bearer " + expired,
		"wrong secret":    "Bearer " + foreign,
		"no subject":      "Bearer " + noSubject,
		"alg none":        "Bearer " + unsigned,
		"escrow subject":  "Bearer " + escrowSubject,
		"deposit subject": "Bearer " + depositSubject,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			h := AuthJWT(secret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.False(t, called)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body struct {
				Error struct{ Code string } `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, "unauthenticated", body.Error.Code)
		})
	}
}

func TestSignJWTRefusesLedgerAccounts(t *testing.T) {
	for _, sub := range []domain.Identity{domain.DepositAccount, domain.EscrowAccount("abc")} {
		_, err := SignJWT(secret, sub, time.Hour)
		require.Error(t, err)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.NotEqual(t, "abc", seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}
