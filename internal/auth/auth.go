// Package auth identifies the cashier operating a terminal.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

func WithCashier(ctx context.Context, cashierID string) context.Context {
	return context.WithValue(ctx, contextKey{}, cashierID)
}

func CashierFromContext(ctx context.Context) (string, bool) {
	cashierID, ok := ctx.Value(contextKey{}).(string)
	return cashierID, ok && cashierID != ""
}

// ParseTokens reads "token:cashier" pairs separated by commas.
func ParseTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, cashier, ok := strings.Cut(pair, ":")
		token, cashier = strings.TrimSpace(token), strings.TrimSpace(cashier)
		if !ok || token == "" || cashier == "" {
			return nil, fmt.Errorf("invalid cashier token entry %q", pair)
		}
		tokens[token] = cashier
	}
	return tokens, nil
}

// Claims identify the cashier of a signed session token.
type Claims struct {
	CashierID string `json:"cashier_id"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the cashier, valid for ttl.
func IssueToken(secret []byte, cashierID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := &Claims{
		CashierID: cashierID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cashierID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CashierID == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.CashierID, nil
}

// Middleware resolves the bearer token to a cashier and rejects the request with 401 otherwise.
// A token is either one of the static terminal tokens or, when secret is set, a signed
// session token from IssueToken.
func Middleware(tokens map[string]string, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
			token = strings.TrimSpace(token)
			if !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w)
				return
			}

			cashierID, ok := tokens[token]
			if !ok && len(secret) > 0 {
				id, err := parseToken(secret, token)
				cashierID, ok = id, err == nil
			}
			if !ok {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCashier(r.Context(), cashierID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pos"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"code":    "unauthorized",
		"details": "missing or unknown cashier token",
	})
}
