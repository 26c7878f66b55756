// Package mongostore is a pairAuth.UserProvider backed by a MongoDB "users" collection with
// a unique index on email.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	defaultDBName   = "pairauth"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

// Store owns its client and must be closed.
type Store struct {
	client *mongodriver.Client
	users  *mongodriver.Collection
	now    func() time.Time
}

// New connects to uri, pings the primary and ensures indexes. The database name is taken
// from the URI path and defaults to "pairauth".
func New(ctx context.Context, uri string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{
		client: cli,
		users:  cli.Database(databaseFromURI(uri)).Collection(usersCollection),
		now:    time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity; the server uses it for readiness.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, in pairAuth.CreateUserInput) (pairAuth.UserRecord, error) {
	const op = "mongostore/CreateUser"

	doc := userDoc{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		// Mongo dates have millisecond precision.
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return pairAuth.UserRecord{}, pairAuth.ErrAccountExists
		}
		return pairAuth.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.record(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (pairAuth.UserRecord, error) {
	return s.findOne(ctx, "mongostore/GetUserByEmail", bson.D{{Key: "email", Value: normalizeEmail(email)}})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (pairAuth.UserRecord, error) {
	if id == "" {
		return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
	}
	return s.findOne(ctx, "mongostore/GetUserByID", bson.D{{Key: "_id", Value: id}})
}

func (s *Store) UpdateUserName(ctx context.Context, id, name string) (pairAuth.UserRecord, error) {
	const op = "mongostore/UpdateUserName"

	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: name}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
		}
		return pairAuth.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.record(), nil
}

// UpdatePasswordHash replaces the stored hash; Login calls it to upgrade stale hashes.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "mongostore/UpdatePasswordHash"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "password_hash", Value: hash}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return pairAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, op string, filter bson.D) (pairAuth.UserRecord, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return pairAuth.UserRecord{}, pairAuth.ErrUserNotFound
		}
		return pairAuth.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.record(), nil
}

func (d userDoc) record() pairAuth.UserRecord {
	return pairAuth.UserRecord{
		UserID:       d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ pairAuth.UserProvider        = (*Store)(nil)
	_ pairAuth.PasswordHashUpdater = (*Store)(nil)
)
