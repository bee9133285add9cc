package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crowdfund/internal/domain"
)

type callerKey string

const callerIDKey callerKey = "caller"

var errReservedSubject = errors.New("token subject names a ledger account")

// SignJWT issues an HS256 token whose subject is the caller identity. A zero
// ttl issues a token without expiry.
func SignJWT(secret string, subject domain.Identity, ttl time.Duration) (string, error) {
	if subject.Reserved() {
		return "", errReservedSubject
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  string(subject),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT checks signature and expiry and returns the subject. Subjects
// naming engine ledger accounts are rejected.
func VerifyJWT(secret, token string) (domain.Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub := domain.Identity(strings.TrimSpace(claims.Subject))
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	if sub.Reserved() {
		return "", errReservedSubject
	}
	return sub, nil
}

// AuthJWT rejects requests without a valid bearer token and stores the
// token subject as the caller identity.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthenticated(w, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthenticated(w, "invalid authorization")
				return
			}
			caller, err := VerifyJWT(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				unauthenticated(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
		})
	}
}

// CallerFromContext returns the authenticated identity, or "" when none.
func CallerFromContext(ctx context.Context) domain.Identity {
	if v, ok := ctx.Value(callerIDKey).(domain.Identity); ok {
		return v
	}
	return ""
}

func ContextWithCaller(ctx context.Context, caller domain.Identity) context.Context {
	if strings.TrimSpace(string(caller)) == "" {
		return ctx
	}
	return context.WithValue(ctx, callerIDKey, caller)
}

func unauthenticated(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthenticated", "message": msg},
	})
}
