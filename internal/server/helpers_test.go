package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	promexport "github.com/MrEthical07/pairAuth/metrics/export/prometheus"
	"github.com/MrEthical07/pairAuth/store/memstore"
	"github.com/stretchr/testify/require"
)

var (
	testAccessSecret  = []byte("access-secret-for-server-tests-0123456789ab")
	testRefreshSecret = []byte("refresh-secret-for-server-tests-987654321zy")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	handler http.Handler
	engine  *pairAuth.Engine
	clock   *testClock
}

// newTestEnv builds the full router over the given provider, memstore when nil, with a
// cheap argon2 profile.
func newTestEnv(t *testing.T, up pairAuth.UserProvider, mutate func(*Options)) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if up == nil {
		up = memstore.New().WithClock(clock.Now)
	}

	cfg := pairAuth.DefaultConfig()
	cfg.Token.AccessSecret = testAccessSecret
	cfg.Token.RefreshSecret = testRefreshSecret
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	engine, err := pairAuth.New().
		WithConfig(cfg).
		WithUserProvider(up).
		WithClock(clock.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	opts := Options{
		Engine:  engine,
		Logger:  slog.New(slog.DiscardHandler),
		Metrics: promexport.NewPrometheusExporter(engine).Handler(),
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &testEnv{
		handler: NewRouter(opts),
		engine:  engine,
		clock:   clock,
	}
}

type request struct {
	method  string
	path    string
	body    any
	rawBody string
	cookies []*http.Cookie
	header  map[string]string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch {
	case req.rawBody != "":
		body = bytes.NewBufferString(req.rawBody)
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	r.RemoteAddr = "192.0.2.10:40000"
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, r)
	return rr
}

func (e *testEnv) register(t *testing.T, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"name": name, "email": email, "password": password},
	})
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorBody](t, rr).Error
}
