package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted HS256 secret size in bytes.
const MinSecretLength = 32

// Kind selects the signing secret and the expected kind claim of a token.
type Kind uint8

const (
	// KindAccess marks a short-lived access token.
	KindAccess Kind = iota + 1
	// KindRefresh marks a long-lived refresh token.
	KindRefresh
)

// String returns the value stored in the kind claim.
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformed reports a token that cannot be parsed into the expected shape.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature reports a signature that does not verify under the kind-bound secret.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired reports a correctly signed token at or past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrUnknownKind is returned when a caller passes a Kind outside KindAccess/KindRefresh.
	ErrUnknownKind = errors.New("unknown token kind")
	// ErrEmptySubject is returned by Encode when the user id or email is empty.
	ErrEmptySubject = errors.New("token subject is empty")
)

// FailureKind is the explicit decode failure variant.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	FailureMalformed
	FailureInvalidSignature
	FailureExpired
)

// String returns a stable label usable as a log attribute.
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed"
	case FailureInvalidSignature:
		return "invalid_signature"
	case FailureExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Decode to its FailureKind. Errors that did not come
// from Decode are treated as malformed.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrExpired):
		return FailureExpired
	case errors.Is(err, ErrInvalidSignature):
		return FailureInvalidSignature
	default:
		return FailureMalformed
	}
}

// Config holds the immutable signing material for both token kinds.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	// Issuer is written to and, when set, required in the iss claim.
	Issuer string
	// Now overrides the clock used for iat/exp and for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs and verifies tokens. It is immutable after NewManager and safe for
// concurrent use.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	now           func() time.Time
}

// Claims is the payload carried by both token kinds.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and copies the secrets so later mutation of the caller's slices
// has no effect.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < MinSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d bytes", MinSecretLength)
	}
	if len(cfg.RefreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretLength)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		accessSecret:  append([]byte(nil), cfg.AccessSecret...),
		refreshSecret: append([]byte(nil), cfg.RefreshSecret...),
		issuer:        strings.TrimSpace(cfg.Issuer),
		now:           now,
	}, nil
}

// Encode signs {uid, email, kind, iat, exp} with the secret bound to kind and returns the
// token together with its expiry. Output is deterministic for identical inputs and clock.
func (m *Manager) Encode(kind Kind, uid, email string, ttl time.Duration) (string, time.Time, error) {
	return m.EncodeAt(kind, uid, email, m.now(), ttl)
}

// EncodeAt is Encode with an explicit issue time, so that a pair can share one clock reading.
func (m *Manager) EncodeAt(kind Kind, uid, email string, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	secret, err := m.secretFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	if uid == "" || email == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token lifetime must be > 0")
	}

	iat := jwt.NewNumericDate(issuedAt)
	expiresAt := jwt.NewNumericDate(iat.Add(ttl))

	claims := Claims{
		UID:   uid,
		Email: email,
		Kind:  kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  iat,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, expiresAt.Time, nil
}

// Decode verifies tokenStr against the secret bound to kind and checks expiry with an
// inclusive boundary (now >= exp is expired). The returned error always wraps exactly one of
// ErrMalformed, ErrInvalidSignature or ErrExpired.
func (m *Manager) Decode(kind Kind, tokenStr string) (*Claims, error) {
	secret, err := m.secretFor(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tokenStr) == "" {
		return nil, fmt.Errorf("empty %s token: %w", kind, ErrMalformed)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s token: %w", kind, mapParseError(err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("decode %s token: %w", kind, ErrMalformed)
	}
	// Only reachable when both secrets were misconfigured to verify the same bytes.
	if claims.Kind != kind.String() {
		return nil, fmt.Errorf("decode %s token: kind claim %q: %w", kind, claims.Kind, ErrInvalidSignature)
	}
	if claims.UID == "" || claims.Email == "" {
		return nil, fmt.Errorf("decode %s token: missing subject: %w", kind, ErrMalformed)
	}

	return claims, nil
}

// mapParseError relies on golang-jwt verifying the signature before validating claims, so
// an expired token signed with the wrong secret reports ErrInvalidSignature.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func (m *Manager) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return m.accessSecret, nil
	case KindRefresh:
		return m.refreshSecret, nil
	default:
		return nil, ErrUnknownKind
	}
}
