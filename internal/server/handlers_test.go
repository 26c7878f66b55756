package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/internal/rate"
	"github.com/MrEthical07/pairAuth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

func TestRegister_SetsBothCookiesAndReturnsUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.register(t, "Ada Lovelace", "Ada@Example.com", testPassword)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeBody[authEnvelope](t, rr)
	assert.NotEmpty(t, body.User.ID)
	assert.Equal(t, "Ada Lovelace", body.User.Name)
	assert.Equal(t, "ada@example.com", body.User.Email)
	assert.Equal(t, "user", body.User.Role)
	assert.NotEmpty(t, body.AccessToken)
	assert.True(t, env.clock.Now().Add(15*time.Minute).Equal(body.AccessTokenExpiresAt))
	assert.NotContains(t, rr.Body.String(), "refresh")
	assert.NotContains(t, rr.Body.String(), "password")

	access := responseCookie(rr, "access_token")
	require.NotNil(t, access)
	assert.Equal(t, body.AccessToken, access.Value)
	assert.Equal(t, 900, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.False(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	refresh := responseCookie(rr, "refresh_token")
	require.NotNil(t, refresh)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	require.Equal(t, http.StatusOK, env.register(t, "Ada", "ada@example.com", testPassword).Code)

	rr := env.register(t, "Ada Again", "ADA@example.com", testPassword)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already exists", errorMessage(t, rr))
	assert.Nil(t, responseCookie(rr, "access_token"))
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	cases := []struct {
		name    string
		body    any
		rawBody string
		want    string
	}{
		{name: "short name", body: map[string]string{"name": "A", "email": "a@example.com", "password": testPassword}, want: "Name must be at least 2 characters"},
		{name: "missing name", body: map[string]string{"email": "a@example.com", "password": testPassword}, want: "Name is required"},
		{name: "bad email", body: map[string]string{"name": "Ada", "email": "not-an-email", "password": testPassword}, want: "Invalid email"},
		{name: "short password", body: map[string]string{"name": "Ada", "email": "a@example.com", "password": "short"}, want: "Password must be at least 10 characters"},
		{name: "unknown field", body: map[string]string{"name": "Ada", "email": "a@example.com", "password": testPassword, "role": "admin"}, want: "Invalid request body"},
		{name: "malformed json", rawBody: `{"name":`, want: "Invalid request body"},
		{name: "trailing data", rawBody: `{"name":"Ada","email":"a@example.com","password":"correct-horse-battery"} {}`, want: "Invalid request body"},
		{name: "empty body", want: "Request body is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: tc.body, rawBody: tc.rawBody})
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tc.want, errorMessage(t, rr))
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.Equal(t, http.StatusOK, env.register(t, "Ada", "ada@example.com", testPassword).Code)

	t.Run("success", func(t *testing.T) {
		rr := env.do(t, request{
			method: http.MethodPost,
			path:   "/api/auth/login",
			body:   map[string]string{"email": "ada@example.com", "password": testPassword},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "ada@example.com", decodeBody[authEnvelope](t, rr).User.Email)
		assert.NotNil(t, responseCookie(rr, "access_token"))
		assert.NotNil(t, responseCookie(rr, "refresh_token"))
	})

	for _, tc := range []struct{ name, email, password string }{
		{"wrong password", "ada@example.com", "wrong-password-123"},
		{"unknown email", "nobody@example.com", testPassword},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, request{
				method: http.MethodPost,
				path:   "/api/auth/login",
				body:   map[string]string{"email": tc.email, "password": tc.password},
			})
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Invalid credentials", errorMessage(t, rr))
			assert.Nil(t, responseCookie(rr, "access_token"))
		})
	}
}

func TestMe_CredentialSources(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	reg := env.register(t, "Ada", "ada@example.com", testPassword)
	require.Equal(t, http.StatusOK, reg.Code)
	access := responseCookie(reg, "access_token")
	refresh := responseCookie(reg, "refresh_token")

	t.Run("access cookie", func(t *testing.T) {
		rr := env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{access, refresh}})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ada@example.com", decodeBody[userEnvelope](t, rr).User.Email)
		assert.Empty(t, rr.Result().Cookies(), "a valid access token must not set any cookie")
	})

	t.Run("bearer header", func(t *testing.T) {
		rr := env.do(t, request{
			method: http.MethodGet,
			path:   "/api/users/me",
			header: map[string]string{"Authorization": "Bearer " + access.Value},
		})
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("refresh only rotates", func(t *testing.T) {
		rr := env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{refresh}})
		require.Equal(t, http.StatusOK, rr.Code)

		rotated := responseCookie(rr, "access_token")
		require.NotNil(t, rotated)
		assert.Equal(t, 900, rotated.MaxAge)
		assert.True(t, rotated.HttpOnly)
		assert.Nil(t, responseCookie(rr, "refresh_token"))
	})

	t.Run("nothing", func(t *testing.T) {
		rr := env.do(t, request{method: http.MethodGet, path: "/api/users/me"})
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
	})
}

func TestMe_ExpiryLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	reg := env.register(t, "Ada", "ada@example.com", testPassword)
	require.Equal(t, http.StatusOK, reg.Code)
	access := responseCookie(reg, "access_token")
	refresh := responseCookie(reg, "refresh_token")

	env.clock.Advance(16 * time.Minute)

	rr := env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{access, refresh}})
	require.Equal(t, http.StatusOK, rr.Code)
	rotated := responseCookie(rr, "access_token")
	require.NotNil(t, rotated)
	require.NotEqual(t, access.Value, rotated.Value)

	rr = env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{rotated}})
	require.Equal(t, http.StatusOK, rr.Code, "the rotated access token must authenticate on its own")

	env.clock.Advance(7 * 24 * time.Hour)

	rr = env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{rotated, refresh}})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
	assert.Nil(t, responseCookie(rr, "access_token"))
}

func TestMe_UnknownUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	pair, err := env.engine.IssuePair(context.Background(), pairAuth.Principal{UserID: "ghost", Email: "ghost@example.com"})
	require.NoError(t, err)

	rr := env.do(t, request{
		method: http.MethodGet,
		path:   "/api/users/me",
		header: map[string]string{"Authorization": "Bearer " + pair.AccessToken},
	})
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", errorMessage(t, rr))
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	reg := env.register(t, "Ada", "ada@example.com", testPassword)
	require.Equal(t, http.StatusOK, reg.Code)
	access := responseCookie(reg, "access_token")

	rr := env.do(t, request{
		method:  http.MethodPatch,
		path:    "/api/users/me",
		body:    map[string]string{"name": "Countess Ada"},
		cookies: []*http.Cookie{access},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Countess Ada", decodeBody[userEnvelope](t, rr).User.Name)

	rr = env.do(t, request{method: http.MethodPatch, path: "/api/users/me", rawBody: `{}`, cookies: []*http.Cookie{access}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Countess Ada", decodeBody[userEnvelope](t, rr).User.Name)

	rr = env.do(t, request{method: http.MethodPatch, path: "/api/users/me", body: map[string]string{"name": "A"}, cookies: []*http.Cookie{access}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name must be at least 2 characters", errorMessage(t, rr))

	rr = env.do(t, request{method: http.MethodPatch, path: "/api/users/me", body: map[string]string{"name": "Nobody"}})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	reg := env.register(t, "Ada", "ada@example.com", testPassword)
	require.Equal(t, http.StatusOK, reg.Code)
	access := responseCookie(reg, "access_token")
	refresh := responseCookie(reg, "refresh_token")

	rr := env.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookies: []*http.Cookie{access, refresh}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	for _, name := range []string{"access_token", "refresh_token"} {
		c := responseCookie(rr, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[pairAuth.MetricLogout])

	// The tokens themselves stay valid until expiry.
	rr = env.do(t, request{method: http.MethodGet, path: "/api/users/me", cookies: []*http.Cookie{access}})
	require.Equal(t, http.StatusOK, rr.Code)

	// Anonymous logout still succeeds.
	rr = env.do(t, request{method: http.MethodPost, path: "/api/auth/logout"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[pairAuth.MetricLogout])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rr := env.do(t, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	down := newTestEnv(t, nil, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("store down") }
	})
	rr = down.do(t, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "store down")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.Equal(t, http.StatusOK, env.register(t, "Ada", "ada@example.com", testPassword).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, request{method: http.MethodGet, path: "/api/users/me"}).Code)

	rr := env.do(t, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "pairauth_register_success_total 1")
	assert.Contains(t, body, "pairauth_auth_rejected_total 1")
	assert.Contains(t, body, "pairauth_auth_no_credentials_total 1")
}

func TestRateLimit(t *testing.T) {
	limiter := rate.New(rate.NewMemoryCounter(nil), rate.Config{Limit: 2, Window: time.Minute})
	env := newTestEnv(t, nil, func(o *Options) { o.Limiter = limiter })

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, request{method: http.MethodGet, path: "/healthz"}).Code)
	}
	rr := env.do(t, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "Too many requests", errorMessage(t, rr))
}

func TestNotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, request{method: http.MethodGet, path: "/api/nope"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not found", errorMessage(t, rr))

	rr = env.do(t, request{method: http.MethodDelete, path: "/api/auth/login"})
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, func(o *Options) { o.ClientOrigin = "https://app.example.com" })

	rr := env.do(t, request{
		method: http.MethodOptions,
		path:   "/api/users/me",
		header: map[string]string{
			"Origin":                        "https://app.example.com",
			"Access-Control-Request-Method": http.MethodGet,
		},
	})
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	rr = env.do(t, request{
		method: http.MethodGet,
		path:   "/healthz",
		header: map[string]string{"Origin": "https://evil.example.com"},
	})
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndToEnd_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := redisstore.New(rdb)
	env := newTestEnv(t, store, func(o *Options) { o.Ready = store.Ping })

	reg := env.register(t, "Grace Hopper", "grace@example.com", testPassword)
	require.Equal(t, http.StatusOK, reg.Code, reg.Body.String())
	require.Equal(t, http.StatusBadRequest, env.register(t, "Grace", "grace@example.com", testPassword).Code)

	login := env.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   map[string]string{"email": "grace@example.com", "password": testPassword},
	})
	require.Equal(t, http.StatusOK, login.Code)

	refresh := responseCookie(login, "refresh_token")
	rr := env.do(t, request{
		method:  http.MethodPatch,
		path:    "/api/users/me",
		body:    map[string]string{"name": "Rear Admiral Hopper"},
		cookies: []*http.Cookie{refresh},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Rear Admiral Hopper", decodeBody[userEnvelope](t, rr).User.Name)
	assert.NotNil(t, responseCookie(rr, "access_token"))

	require.Equal(t, http.StatusOK, env.do(t, request{method: http.MethodGet, path: "/healthz"}).Code)
	mr.Close()
	require.Equal(t, http.StatusServiceUnavailable, env.do(t, request{method: http.MethodGet, path: "/healthz"}).Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Len(t, rr.Header().Get(requestIDHeader), 36)

	rr = env.do(t, request{method: http.MethodGet, path: "/healthz", header: map[string]string{requestIDHeader: "req-123"}})
	assert.Equal(t, "req-123", rr.Header().Get(requestIDHeader))

	long := strings.Repeat("x", 200)
	rr = env.do(t, request{method: http.MethodGet, path: "/healthz", header: map[string]string{requestIDHeader: long}})
	assert.NotEqual(t, long, rr.Header().Get(requestIDHeader))
}
