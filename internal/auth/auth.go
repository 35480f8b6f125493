// Package auth resolves the owner id a request acts for. Token issuance and
// login flows belong to the identity provider; this package only verifies a
// bearer token's signature and reads its subject.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying ownerID.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom returns the owner id stored by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// Claims are the token fields we read. Supabase and Auth0 both put the user
// id in "sub".
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Resolver extracts the owner id from a request.
type Resolver struct {
	secret []byte
	header string
	parser *jwt.Parser
}

// NewResolver verifies HS256 bearer tokens when a secret is configured and
// otherwise trusts the configured owner header.
func NewResolver(cfg config.Auth) *Resolver {
	return &Resolver{
		secret: []byte(cfg.JWTSecret),
		header: cfg.OwnerHeader,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Resolve returns the owner id for r.
func (res *Resolver) Resolve(r *http.Request) (string, error) {
	if len(res.secret) == 0 {
		owner := strings.TrimSpace(r.Header.Get(res.header))
		if owner == "" {
			return "", ErrMissingCredentials
		}
		return owner, nil
	}

	authz := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingCredentials
	}
	return res.ParseToken(strings.TrimSpace(token))
}

// ParseToken verifies token and returns its subject.
func (res *Resolver) ParseToken(token string) (string, error) {
	claims := &Claims{}
	_, err := res.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return res.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
