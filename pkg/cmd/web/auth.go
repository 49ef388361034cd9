package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/igolaizola/xenotune/pkg/storage"
	"github.com/oklog/ulid/v2"
)

const defaultTokenTTL = 30 * 24 * time.Hour

type tokens struct {
	store  *storage.Store
	secret []byte
	ttl    time.Duration
}

func newTokens(store *storage.Store, secret []byte, ttl time.Duration) *tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &tokens{store: store, secret: secret, ttl: ttl}
}

// issue signs a token for the user with a unique id so it can be revoked.
func (t *tokens) issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        ulid.Make().String(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("web: couldn't sign token: %w", err)
	}
	return signed, nil
}

func (t *tokens) parse(ctx context.Context, s string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(s, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("invalid token")
	}
	revoked, err := t.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

// bearer extracts the token of "Authorization: Bearer <token>". The
// "Token" scheme is also accepted.
func bearer(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 {
		return ""
	}
	switch strings.ToLower(parts[0]) {
	case "bearer", "token":
		return parts[1]
	}
	return ""
}

type claimsKey struct{}

func (t *tokens) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := bearer(r)
		if s == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, err := t.parse(r.Context(), s)
		if err != nil {
			log.Printf("web: rejected token: %v\n", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *jwt.RegisteredClaims {
	c, _ := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return c
}
