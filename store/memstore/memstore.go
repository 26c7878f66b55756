// Package memstore is an in-process pairAuth.UserProvider. Records are lost on restart; it
// backs tests, the load generator and single-node development servers.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/google/uuid"
)

// Store keeps users in two maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]pairAuth.UserRecord
	byEmail map[string]string
	now     func() time.Time
}

func New() *Store {
	return &Store{
		byID:    make(map[string]pairAuth.UserRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock sets the time source for CreatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) CreateUser(_ context.Context, in pairAuth.CreateUserInput) (pairAuth.UserRecord, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return pairAuth.UserRecord{}, pairAuth.ErrAccountExists
	}

	rec := pairAuth.UserRecord{
		UserID:       uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	s.byID[rec.UserID] = rec
	s.byEmail[email] = rec.UserID

	return rec, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (pairAuth.UserRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (pairAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}
	return rec, nil
}

func (s *Store) UpdateUserName(_ context.Context, id, name string) (pairAuth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}
	rec.Name = name
	s.byID[id] = rec

	return rec, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return pairAuth.ErrUserNotFound
	}
	rec.PasswordHash = hash
	s.byID[id] = rec
	return nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var (
	_ pairAuth.UserProvider        = (*Store)(nil)
	_ pairAuth.PasswordHashUpdater = (*Store)(nil)
)
