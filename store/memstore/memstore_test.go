package memstore

import (
	"sync"
	"testing"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookup(t *testing.T) {
	s := New()
	ctx := t.Context()

	rec, err := s.CreateUser(ctx, pairAuth.CreateUserInput{Name: "Ada", Email: "Ada@Example.com", PasswordHash: "h", Role: "user"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.UserID)
	assert.Equal(t, "ada@example.com", rec.Email)
	assert.False(t, rec.CreatedAt.IsZero())

	byEmail, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, rec, byEmail)

	byID, err := s.GetUserByID(ctx, rec.UserID)
	require.NoError(t, err)
	assert.Equal(t, rec, byID)
}

func TestCreateDuplicateEmail(t *testing.T) {
	s := New()
	ctx := t.Context()

	_, err := s.CreateUser(ctx, pairAuth.CreateUserInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, pairAuth.CreateUserInput{Name: "Other", Email: "ada@example.com"})
	assert.ErrorIs(t, err, pairAuth.ErrAccountExists)
	assert.Equal(t, 1, s.Len())
}

func TestUnknownUser(t *testing.T) {
	s := New()

	_, err := s.GetUserByID(t.Context(), "missing")
	assert.ErrorIs(t, err, pairAuth.ErrUserNotFound)
	_, err = s.GetUserByEmail(t.Context(), "missing@example.com")
	assert.ErrorIs(t, err, pairAuth.ErrUserNotFound)
	_, err = s.UpdateUserName(t.Context(), "missing", "x")
	assert.ErrorIs(t, err, pairAuth.ErrUserNotFound)
	assert.ErrorIs(t, s.UpdatePasswordHash(t.Context(), "missing", "x"), pairAuth.ErrUserNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	s := New()
	rec, err := s.CreateUser(t.Context(), pairAuth.CreateUserInput{Name: "Ada", Email: "ada@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, s.UpdatePasswordHash(t.Context(), rec.UserID, "new"))

	byEmail, err := s.GetUserByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", byEmail.PasswordHash)
	assert.Equal(t, rec.Name, byEmail.Name)
}

func TestUpdateUserName(t *testing.T) {
	s := New()
	rec, err := s.CreateUser(t.Context(), pairAuth.CreateUserInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	updated, err := s.UpdateUserName(t.Context(), rec.UserID, "Ada L.")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, rec.Email, updated.Email)
}

func TestConcurrentCreateSameEmail(t *testing.T) {
	s := New()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(t.Context(), pairAuth.CreateUserInput{Name: "Ada", Email: "ada@example.com"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}
