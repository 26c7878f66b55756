package flows

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type AccountUserRecord struct {
	UserID       string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type AccountCreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

type AccountRegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type AccountMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	RegisterInvalid   int
	LoginSuccess      int
	LoginFailure      int
	ProfileUpdated    int
}

type AccountEvents struct {
	RegisterSuccess   string
	RegisterFailure   string
	RegisterDuplicate string
	LoginSuccess      string
	LoginFailure      string
	ProfileUpdated    string
}

type AccountErrors struct {
	EngineNotReady     error
	AccountInvalid     error
	AccountExists      error
	PasswordPolicy     error
	InvalidCredentials error
	UserNotFound       error
}

type AccountDeps struct {
	DefaultRole       string
	MinNameLength     int
	MinPasswordLength int
	// DummyHash is verified when the email is unknown so that both login failures cost one
	// password verification.
	DummyHash string

	HashPassword   func(string) (string, error)
	VerifyPassword func(plain, encoded string) (bool, error)
	CreateUser     func(context.Context, AccountCreateUserInput) (AccountUserRecord, error)
	GetUserByEmail func(context.Context, string) (AccountUserRecord, error)
	GetUserByID    func(context.Context, string) (AccountUserRecord, error)
	UpdateUserName func(context.Context, string, string) (AccountUserRecord, error)

	// NeedsRehash and UpdatePasswordHash are optional. With both set, a successful login
	// re-hashes a password stored with outdated parameters.
	NeedsRehash        func(encoded string) bool
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunRegister validates the request, hashes the password and persists the account. Token
// issuance is left to the caller.
func RunRegister(ctx context.Context, req AccountRegisterRequest, deps AccountDeps) (AccountUserRecord, error) {
	normalizeAccountDeps(&deps)

	if deps.HashPassword == nil || deps.CreateUser == nil {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}

	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)

	if utf8.RuneCountInString(name) < deps.MinNameLength {
		return AccountUserRecord{}, registerRejected(ctx, deps, email, "name_too_short", deps.Errors.AccountInvalid)
	}
	if !validEmail(email) {
		return AccountUserRecord{}, registerRejected(ctx, deps, email, "email_invalid", deps.Errors.AccountInvalid)
	}
	if len(req.Password) < deps.MinPasswordLength {
		return AccountUserRecord{}, registerRejected(ctx, deps, email, "password_too_short", deps.Errors.PasswordPolicy)
	}

	passwordHash, err := deps.HashPassword(req.Password)
	if err != nil {
		return AccountUserRecord{}, registerRejected(ctx, deps, email, "hash_policy", errors.Join(deps.Errors.PasswordPolicy, err))
	}

	created, err := deps.CreateUser(ctx, AccountCreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         deps.DefaultRole,
	})
	if err != nil {
		if deps.Errors.AccountExists != nil && errors.Is(err, deps.Errors.AccountExists) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, "", deps.Errors.AccountExists, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return AccountUserRecord{}, deps.Errors.AccountExists
		}
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "provider_create_failed",
			}
		})
		return AccountUserRecord{}, err
	}

	if created.UserID == "" {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}
	if created.Role == "" {
		created.Role = deps.DefaultRole
	}
	if created.Email == "" {
		created.Email = email
	}
	if created.Name == "" {
		created.Name = name
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, created.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": created.Email,
			"role":  created.Role,
		}
	})
	return created, nil
}

// RunLogin returns the account when email and password match. Unknown emails and wrong
// passwords both yield Errors.InvalidCredentials.
func RunLogin(ctx context.Context, email, password string, deps AccountDeps) (AccountUserRecord, error) {
	normalizeAccountDeps(&deps)

	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return AccountUserRecord{}, loginRejected(ctx, deps, "", email, "empty_credentials")
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if deps.Errors.UserNotFound != nil && errors.Is(err, deps.Errors.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			return AccountUserRecord{}, loginRejected(ctx, deps, "", email, "unknown_email")
		}
		return AccountUserRecord{}, err
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return AccountUserRecord{}, loginRejected(ctx, deps, user.UserID, email, "password_mismatch")
	}

	if hash, ok := rehash(ctx, user, password, deps); ok {
		user.PasswordHash = hash
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, nil, nil)
	return user, nil
}

// rehash replaces a stale stored hash after the password was verified. Failures leave the
// old hash in place and never fail the login.
func rehash(ctx context.Context, user AccountUserRecord, password string, deps AccountDeps) (string, bool) {
	if deps.NeedsRehash == nil || deps.UpdatePasswordHash == nil || deps.HashPassword == nil {
		return "", false
	}
	if !deps.NeedsRehash(user.PasswordHash) {
		return "", false
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		return "", false
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		return "", false
	}
	return hash, true
}

// RunProfile loads the account for an authenticated user id.
func RunProfile(ctx context.Context, userID string, deps AccountDeps) (AccountUserRecord, error) {
	normalizeAccountDeps(&deps)

	if deps.GetUserByID == nil {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}
	if userID == "" {
		return AccountUserRecord{}, deps.Errors.UserNotFound
	}
	return deps.GetUserByID(ctx, userID)
}

// RunUpdateProfile applies the optional name change. A nil name returns the current record
// unchanged.
func RunUpdateProfile(ctx context.Context, userID string, name *string, deps AccountDeps) (AccountUserRecord, error) {
	normalizeAccountDeps(&deps)

	if deps.GetUserByID == nil || deps.UpdateUserName == nil {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}
	if userID == "" {
		return AccountUserRecord{}, deps.Errors.UserNotFound
	}
	if name == nil {
		return deps.GetUserByID(ctx, userID)
	}

	trimmed := strings.TrimSpace(*name)
	if utf8.RuneCountInString(trimmed) < deps.MinNameLength {
		return AccountUserRecord{}, deps.Errors.AccountInvalid
	}

	updated, err := deps.UpdateUserName(ctx, userID, trimmed)
	if err != nil {
		return AccountUserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdated)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdated, true, userID, nil, nil)
	return updated, nil
}

func registerRejected(ctx context.Context, deps AccountDeps, email, reason string, err error) error {
	deps.MetricInc(deps.Metrics.RegisterInvalid)
	deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return err
}

func loginRejected(ctx context.Context, deps AccountDeps, userID, email, reason string) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return deps.Errors.InvalidCredentials
}

// validEmail is a shape check only: one @, non-empty local part, a dot in the domain and no
// whitespace. Full address validation belongs to the HTTP layer.
func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MinNameLength <= 0 {
		deps.MinNameLength = 1
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = 1
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}
