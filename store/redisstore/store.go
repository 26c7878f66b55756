// Package redisstore is a pairAuth.UserProvider backed by Redis.
//
// Each user is a hash at <prefix>{users}:user:<id>; <prefix>{users}:email:<email> maps the
// normalized email to the id. Creation and updates run as Lua scripts so the email index and
// the hash never diverge. The {users} hash tag puts both keys in one Redis Cluster slot,
// which the creation script needs.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure other than a missing key.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorruptRecord is returned when a user hash lacks required fields.
var ErrCorruptRecord = errors.New("corrupt user record")

const DefaultPrefix = "pairauth:"

const createUserScript = `
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2],
  "id", ARGV[1],
  "name", ARGV[2],
  "email", ARGV[3],
  "password_hash", ARGV[4],
  "role", ARGV[5],
  "created_at", ARGV[6])
return 1
`

// updateFieldScript sets one field of an existing user hash.
const updateFieldScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

// hashTag keeps a user hash and its email index in the same cluster slot.
const hashTag = "{users}:"

var (
	createUserLua  = redis.NewScript(createUserScript)
	updateFieldLua = redis.NewScript(updateFieldScript)
)

// Store implements pairAuth.UserProvider. It is safe for concurrent use.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*Store)

// WithPrefix namespaces every key. Defaults to DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity; the server uses it for readiness.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) userKey(id string) string {
	return s.prefix + hashTag + "user:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + hashTag + "email:" + email
}

func (s *Store) CreateUser(ctx context.Context, in pairAuth.CreateUserInput) (pairAuth.UserRecord, error) {
	rec := pairAuth.UserRecord{
		UserID:       uuid.NewString(),
		Name:         in.Name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}

	created, err := createUserLua.Run(ctx, s.rdb,
		[]string{s.emailKey(rec.Email), s.userKey(rec.UserID)},
		rec.UserID, rec.Name, rec.Email, rec.PasswordHash, rec.Role, strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return pairAuth.UserRecord{}, fmt.Errorf("%w: create user: %v", ErrRedisUnavailable, err)
	}
	if created == 0 {
		return pairAuth.UserRecord{}, pairAuth.ErrAccountExists
	}

	return rec, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (pairAuth.UserRecord, error) {
	id, err := s.rdb.Get(ctx, s.emailKey(normalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
		}
		return pairAuth.UserRecord{}, fmt.Errorf("%w: get email index: %v", ErrRedisUnavailable, err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (pairAuth.UserRecord, error) {
	if id == "" {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}

	fields, err := s.rdb.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return pairAuth.UserRecord{}, fmt.Errorf("%w: get user: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}

	return decodeUser(fields)
}

func (s *Store) UpdateUserName(ctx context.Context, id, name string) (pairAuth.UserRecord, error) {
	if err := s.updateField(ctx, id, "name", name); err != nil {
		return pairAuth.UserRecord{}, err
	}
	return s.GetUserByID(ctx, id)
}

// UpdatePasswordHash replaces the stored hash; Login calls it to upgrade stale hashes.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateField(ctx, id, "password_hash", hash)
}

func (s *Store) updateField(ctx context.Context, id, field, value string) error {
	if id == "" {
		return pairAuth.ErrUserNotFound
	}
	updated, err := updateFieldLua.Run(ctx, s.rdb, []string{s.userKey(id)}, field, value).Int64()
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrRedisUnavailable, field, err)
	}
	if updated == 0 {
		return pairAuth.ErrUserNotFound
	}
	return nil
}

func decodeUser(fields map[string]string) (pairAuth.UserRecord, error) {
	rec := pairAuth.UserRecord{
		UserID:       fields["id"],
		Name:         fields["name"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Role:         fields["role"],
	}
	if rec.UserID == "" || rec.Email == "" {
		return pairAuth.UserRecord{}, ErrCorruptRecord
	}

	if raw := fields["created_at"]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return pairAuth.UserRecord{}, fmt.Errorf("%w: created_at: %v", ErrCorruptRecord, err)
		}
		rec.CreatedAt = time.UnixMilli(ms).UTC()
	}

	return rec, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ pairAuth.UserProvider        = (*Store)(nil)
	_ pairAuth.PasswordHashUpdater = (*Store)(nil)
)
