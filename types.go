package pairAuth

import (
	"context"
	"time"
)

// Principal is the authenticated identity carried inside both token kinds.
type Principal struct {
	UserID string
	Email  string
}

// Valid reports whether the principal can be encoded into a token.
func (p Principal) Valid() bool {
	return p.UserID != "" && p.Email != ""
}

// TokenPair is returned by [Engine.IssuePair] at login and registration.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Credentials are the candidate tokens extracted from an inbound request. Empty strings mean
// absent. Bearer takes precedence over AccessCookie; the refresh token is cookie-only.
type Credentials struct {
	Bearer        string
	AccessCookie  string
	RefreshCookie string
}

// Outcome is the terminal state of one authentication decision.
type Outcome uint8

const (
	// OutcomeRejected means the request must be answered with a uniform 401.
	OutcomeRejected Outcome = iota
	// OutcomeAuthenticated means the access token was valid; nothing was rotated.
	OutcomeAuthenticated
	// OutcomeRotated means the principal came from the refresh token and a new access token
	// was minted for the response.
	OutcomeRotated
)

// String returns a stable label usable as a log attribute.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRotated:
		return "rotated"
	default:
		return "rejected"
	}
}

// FailureKind explains a rejection or a rotation. It is meant for logs, metrics and audit
// only and must never reach the client.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	// FailureNoCredentials: neither an access nor a refresh token was presented.
	FailureNoCredentials
	// FailureAccessAbsent: no access token, rotation attempted from the refresh token.
	FailureAccessAbsent
	FailureAccessMalformed
	FailureAccessInvalidSignature
	FailureAccessExpired
	FailureRefreshMalformed
	FailureRefreshInvalidSignature
	FailureRefreshExpired
	// FailureIssue: the refresh token was valid but minting the replacement failed.
	FailureIssue
)

// String returns a stable label usable as a log attribute.
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNoCredentials:
		return "no_credentials"
	case FailureAccessAbsent:
		return "access_absent"
	case FailureAccessMalformed:
		return "access_malformed"
	case FailureAccessInvalidSignature:
		return "access_invalid_signature"
	case FailureAccessExpired:
		return "access_expired"
	case FailureRefreshMalformed:
		return "refresh_malformed"
	case FailureRefreshInvalidSignature:
		return "refresh_invalid_signature"
	case FailureRefreshExpired:
		return "refresh_expired"
	case FailureIssue:
		return "issue_failed"
	default:
		return "unknown"
	}
}

// AuthResult is returned by [Engine.Authenticate].
//
// Exactly one of three shapes is produced:
//   - OutcomeAuthenticated: Principal set.
//   - OutcomeRotated: Principal, AccessToken and AccessExpiresAt set; Reason says why the
//     access token could not be used.
//   - OutcomeRejected: Reason says why.
type AuthResult struct {
	Outcome         Outcome
	Principal       Principal
	AccessToken     string
	AccessExpiresAt time.Time
	Reason          FailureKind
	// FromHeader is true when the access token that was evaluated came from the
	// Authorization header rather than the cookie.
	FromHeader bool
}

// Admitted reports whether downstream handlers may run.
func (r AuthResult) Admitted() bool {
	return r.Outcome == OutcomeAuthenticated || r.Outcome == OutcomeRotated
}

// UserRecord is the persisted account as seen by the engine.
type UserRecord struct {
	UserID       string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Principal returns the token identity for this record.
func (u UserRecord) Principal() Principal {
	return Principal{UserID: u.UserID, Email: u.Email}
}

// CreateUserInput is passed to [UserProvider.CreateUser]. The password is already hashed.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

//go:generate mockgen -destination=internal/mocks/user_provider.go -package=mocks github.com/MrEthical07/pairAuth UserProvider

// UserProvider is the persistence collaborator used by the account operations. The
// authentication path never calls it.
//
// Implementations return [ErrUserNotFound] and [ErrAccountExists] (possibly wrapped).
type UserProvider interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdateUserName(ctx context.Context, userID, name string) (UserRecord, error)
}

// PasswordHasher hashes and verifies account passwords. [password.Argon2] satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// PasswordUpgrader is implemented by hashers that can tell when a stored hash was produced
// with weaker parameters than they currently use. [password.Argon2] satisfies it.
type PasswordUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// PasswordHashUpdater is implemented by user stores that can replace a stored password hash.
// When both it and [PasswordUpgrader] are available, Login re-hashes stale passwords.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// RegisterInput is the account creation request accepted by [Engine.Register].
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AccountResult is returned by [Engine.Register] and [Engine.Login].
type AccountResult struct {
	User   UserRecord
	Tokens TokenPair
}
