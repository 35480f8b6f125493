package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/config"
)

func sign(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestResolveBearerToken(t *testing.T) {
	res := NewResolver(config.Auth{JWTSecret: "s3cret"})
	token := sign(t, "s3cret", jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	req := httptest.NewRequest("GET", "/todos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	owner, err := res.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	res := NewResolver(config.Auth{JWTSecret: "s3cret"})
	cases := map[string]string{
		"wrong secret": "Bearer " + sign(t, "other", jwt.RegisteredClaims{Subject: "alice"}),
		"expired": "Bearer " + sign(t, "s3cret", jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no subject": "Bearer " + sign(t, "s3cret", jwt.RegisteredClaims{}),
		"garbage":    "Bearer not-a-token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/todos", nil)
			req.Header.Set("Authorization", header)
			_, err := res.Resolve(req)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	req := httptest.NewRequest("GET", "/todos", nil)
	_, err := res.Resolve(req)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestResolveOwnerHeader(t *testing.T) {
	res := NewResolver(config.Auth{OwnerHeader: "X-User-ID"})
	req := httptest.NewRequest("GET", "/todos", nil)
	_, err := res.Resolve(req)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	req.Header.Set("X-User-ID", "bob")
	owner, err := res.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
}

func TestOwnerContext(t *testing.T) {
	_, ok := OwnerFrom(context.Background())
	assert.False(t, ok)

	owner, ok := OwnerFrom(WithOwner(context.Background(), "alice"))
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
}
