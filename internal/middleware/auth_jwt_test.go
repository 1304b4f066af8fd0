package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mart/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, cfg config.Config, authz string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	h := AuthJWT(cfg)(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})
	_ = h(c)
	return rec, c, nextCalled
}

func TestAuthJWT_ValidToken(t *testing.T) {
	cfg := config.Config{JWTSecret: "test_secret"}
	token := signToken(t, "test_secret", jwt.MapClaims{
		"sub":  "user-1",
		"role": "USER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rec, c, nextCalled := runAuth(t, cfg, "Bearer "+token)
	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", c.Get(CtxUserIDKey))
	assert.Equal(t, "USER", c.Get(CtxUserRoleKey))
}

func TestAuthJWT_MissingHeader(t *testing.T) {
	cfg := config.Config{JWTSecret: "test_secret"}
	rec, _, nextCalled := runAuth(t, cfg, "")
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_WrongSecret(t *testing.T) {
	cfg := config.Config{JWTSecret: "test_secret"}
	token := signToken(t, "other_secret", jwt.MapClaims{
		"sub":  "user-1",
		"role": "USER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rec, _, nextCalled := runAuth(t, cfg, "Bearer "+token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_ExpiredToken(t *testing.T) {
	cfg := config.Config{JWTSecret: "test_secret"}
	token := signToken(t, "test_secret", jwt.MapClaims{
		"sub":  "user-1",
		"role": "USER",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	rec, _, nextCalled := runAuth(t, cfg, "Bearer "+token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_MissingRole(t *testing.T) {
	cfg := config.Config{JWTSecret: "test_secret"}
	token := signToken(t, "test_secret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec, _, nextCalled := runAuth(t, cfg, "Bearer "+token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoleGuard(t *testing.T) {
	e := echo.New()

	run := func(role any) (*httptest.ResponseRecorder, bool) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set(CtxUserRoleKey, role)
		}

		nextCalled := false
		h := AdminRoleGuard()(func(c echo.Context) error {
			nextCalled = true
			return c.NoContent(http.StatusOK)
		})
		_ = h(c)
		return rec, nextCalled
	}

	rec, called := run("ADMIN")
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, called = run("USER")
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, called = run(nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
