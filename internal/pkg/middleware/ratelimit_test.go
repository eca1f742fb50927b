package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *ratelimit.Registry {
	t.Helper()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	reg := ratelimit.NewRegistry(store)
	reg.SetClock(func() time.Time { return testNow })
	return reg
}

func fakeAuth(userID string, tier entitlements.Tier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.UserContext{UserID: userID, IsLoggedIn: true, Tier: tier})
		return c.Next()
	}
}

func ok(c *fiber.Ctx) error { return c.SendString("ok") }

func TestRateLimit_UserScopedByTier(t *testing.T) {
	reg := newTestRegistry(t)
	policy := ratelimit.Policy{
		Name:    "interpret",
		Scope:   ratelimit.ScopeUser,
		Window:  time.Minute,
		Default: 1,
		Tiers:   map[entitlements.Tier]int{entitlements.TierBasic: 2},
	}

	app := fiber.New()
	app.Get("/free", fakeAuth("u-free", entitlements.TierFree), RateLimit(reg, policy, nil), ok)
	app.Get("/basic", fakeAuth("u-basic", entitlements.TierBasic), RateLimit(reg, policy, nil), ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/free", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(HeaderRateLimitLimit))
	assert.Equal(t, "0", resp.Header.Get(HeaderRateLimitRemaining))
	assert.Equal(t, strconv.FormatInt(testNow.Add(time.Minute).Unix(), 10), resp.Header.Get(HeaderRateLimitReset))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/free", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
	body := decodeError(t, resp.Body)
	assert.Equal(t, fiber.StatusTooManyRequests, body.Status)
	assert.Contains(t, body.Message, "60 seconds")

	for i := 0; i < 2; i++ {
		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/basic", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "basic request %d", i+1)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/basic", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimit_IPScoped(t *testing.T) {
	reg := newTestRegistry(t)
	policy := ratelimit.Policy{Name: "login", Scope: ratelimit.ScopeIP, Window: time.Minute, Default: 1}

	app := fiber.New()
	app.Post("/login", RateLimit(reg, policy, nil), ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

type downStore struct{}

func (downStore) Take(context.Context, string, int, time.Duration, time.Time) (ratelimit.Window, error) {
	return ratelimit.Window{}, errors.New("redis down")
}

func TestRateLimit_StoreFailureAllows(t *testing.T) {
	reg := ratelimit.NewRegistry(downStore{})
	app := fiber.New()
	app.Get("/", fakeAuth("u-1", entitlements.TierFree), RateLimit(reg, ratelimit.PolicyReadings, nil), ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(HeaderRateLimitLimit))
}

func TestRateLimit_ResetHeaderRoundsUp(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	reg := ratelimit.NewRegistry(store)
	now := testNow.Add(250 * time.Millisecond)
	reg.SetClock(func() time.Time { return now })

	app := fiber.New()
	app.Get("/", fakeAuth("u-1", entitlements.TierFree), RateLimit(reg, ratelimit.PolicyReadings, nil), ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	want := testNow.Add(time.Minute).Unix() + 1
	assert.Equal(t, strconv.FormatInt(want, 10), resp.Header.Get(HeaderRateLimitReset))
}
