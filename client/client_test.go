package client

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-arch1tect/treez/handlers/auth"
	"github.com/tech-arch1tect/treez/handlers/keys"
	usershandler "github.com/tech-arch1tect/treez/handlers/users"
	"github.com/tech-arch1tect/treez/middleware/guard"
	"github.com/tech-arch1tect/treez/middleware/ratelimit"
	"github.com/tech-arch1tect/treez/server"
	"github.com/tech-arch1tect/treez/services/cryptox"
	"github.com/tech-arch1tect/treez/services/jwt"
	"github.com/tech-arch1tect/treez/services/password"
	"github.com/tech-arch1tect/treez/services/pgp"
	"github.com/tech-arch1tect/treez/services/refreshtoken"
	userssvc "github.com/tech-arch1tect/treez/services/users"
	"github.com/tech-arch1tect/treez/testutils"
)

type nullMailer struct{}

func (nullMailer) SendPasswordReset(to, name, resetURL string) error { return nil }

// startServer stands up the real API surface and counts key exchange
// requests so the single-flight behaviour can be asserted.
func startServer(t *testing.T) (string, *atomic.Int64) {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.RateLimit.Enabled = false

	db := testutils.SetupTestDB(t,
		&userssvc.Role{}, &userssvc.User{}, &userssvc.PasswordResetToken{},
		&refreshtoken.RefreshToken{})

	userService := userssvc.NewService(db, nil)
	passwordService := password.NewService(cfg, nil)
	jwtService := jwt.NewService(cfg, nil)
	tokenService := refreshtoken.NewService(db, cfg, nil)
	ciphers := cryptox.NewRegistry(cfg, nil)
	authGuard := guard.New(cfg, jwtService, tokenService, userService, nil)

	pgpService := pgp.NewService(cfg, nil)
	_, err := pgpService.Initialize()
	require.NoError(t, err)

	srv := server.New(cfg, nil, &ratelimit.Config{})

	var keyExchanges atomic.Int64
	srv.Echo().Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/api/keys/client" {
				keyExchanges.Add(1)
			}
			return next(c)
		}
	})

	api := srv.Group("/api")
	auth.NewHandler(cfg, userService, passwordService, jwtService, tokenService, authGuard, pgpService, nullMailer{}, nil).Register(api)
	keys.NewHandler(cfg, pgpService, nil).Register(api)
	usershandler.NewHandler(cfg, userService, pgpService, ciphers, authGuard, nil).Register(api)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)

	return ts.URL, &keyExchanges
}

func TestClientLifecycle(t *testing.T) {
	baseURL, _ := startServer(t)
	ctx := context.Background()

	c, err := New(baseURL)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, c.State())

	user, err := c.Register(ctx, "Alice Example", "alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = c.Login(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, c.State())

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", profile.Name)
	assert.NotEqual(t, user.ID, profile.ID, "profile id travels encrypted")

	name := "Alice Renamed"
	updated, err := c.UpdateProfile(ctx, profile.ID, ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", updated.Name)

	sessions, err := c.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Current)

	require.NoError(t, c.RefreshSession(ctx))

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, Anonymous, c.State())

	_, err = c.Profile(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestClientLoginFailure(t *testing.T) {
	baseURL, _ := startServer(t)
	ctx := context.Background()

	c, err := New(baseURL)
	require.NoError(t, err)

	_, err = c.Login(ctx, "nobody@example.com", "WrongPass1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)

	// the failed login leaves the exchanged keys in place
	assert.Equal(t, KeysExchanged, c.State())
}

func TestClientKeyExchangeSingleFlight(t *testing.T) {
	baseURL, keyExchanges := startServer(t)
	ctx := context.Background()

	c, err := New(baseURL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.EnsureKeys(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), keyExchanges.Load())
}

func TestClientCheckSession(t *testing.T) {
	baseURL, _ := startServer(t)
	ctx := context.Background()

	c, err := New(baseURL)
	require.NoError(t, err)

	// nothing to restore before a key exchange
	assert.False(t, c.CheckSession(ctx))
	assert.Equal(t, Anonymous, c.State())

	_, err = c.Register(ctx, "Alice Example", "alice@example.com", "Secret123")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	assert.True(t, c.CheckSession(ctx))
	assert.Equal(t, Authenticated, c.State())

	// after logout the keypair is discarded and restore fails
	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.CheckSession(ctx))
	assert.Equal(t, Anonymous, c.State())
}

func TestClientChangePassword(t *testing.T) {
	baseURL, _ := startServer(t)
	ctx := context.Background()

	c, err := New(baseURL)
	require.NoError(t, err)

	_, err = c.Register(ctx, "Alice Example", "alice@example.com", "Secret123")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, c.ChangePassword(ctx, "Secret123", "NewSecret123"))

	// still authenticated on the reissued tokens
	_, err = c.ActiveSessions(ctx)
	assert.NoError(t, err)
}
