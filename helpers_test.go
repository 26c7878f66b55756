package pairAuth

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"
)

var (
	testAccessSecret  = []byte("access-secret-0123456789-abcdefghijklmnop")
	testRefreshSecret = []byte("refresh-secret-9876543210-zyxwvutsrqponml")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

// testConfig has valid secrets and a cheap argon2 profile.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = cloneBytes(testAccessSecret)
	cfg.Token.RefreshSecret = cloneBytes(testRefreshSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string
	seq     int

	createCalls int
	getCalls    int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (m *mockUserProvider) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if _, ok := m.byEmail[in.Email]; ok {
		return UserRecord{}, ErrAccountExists
	}
	m.seq++
	rec := UserRecord{
		UserID:       "u" + strconv.Itoa(m.seq),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
	m.users[rec.UserID] = rec
	m.byEmail[rec.Email] = rec.UserID
	return rec, nil
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	rec, ok := m.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (m *mockUserProvider) UpdateUserName(_ context.Context, id, name string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	rec.Name = name
	m.users[id] = rec
	return rec, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	rec.PasswordHash = hash
	m.users[id] = rec
	return nil
}

func (m *mockUserProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls + m.getCalls
}

type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *captureSink) all() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

// safeBuffer lets a slog handler and the test read the same buffer.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEngineOptions struct {
	cfg    *Config
	up     UserProvider
	sink   AuditSink
	logBuf *safeBuffer
}

func buildTestEngine(t testing.TB, opts testEngineOptions) (*Engine, *testClock) {
	t.Helper()

	cfg := testConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	if opts.sink != nil {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}

	clock := newTestClock()
	b := New().WithConfig(cfg).WithClock(clock.Now)
	if opts.up != nil {
		b.WithUserProvider(opts.up)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}
	if opts.logBuf != nil {
		b.WithLogger(slog.New(slog.NewJSONHandler(opts.logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, clock
}

var testPrincipal = Principal{UserID: "u-42", Email: "ada@example.com"}
