package pairAuth

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/pairAuth/internal/flows"
)

// Register creates an account and issues its first token pair.
//
// Returns ErrAccountInvalid for a short name or malformed email, ErrPasswordPolicy for a
// password the hasher rejects, and ErrAccountExists for a duplicate email.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (AccountResult, error) {
	if err := e.accountsReady(); err != nil {
		return AccountResult{}, err
	}

	created, err := e.flows.Register(ctx, flows.AccountRegisterRequest{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		return AccountResult{}, err
	}

	user := fromFlowUser(created)
	tokens, err := e.IssuePair(ctx, user.Principal())
	if err != nil {
		return AccountResult{}, err
	}

	e.logger.InfoContext(ctx, "user_registered", slog.String("op", "register"), slog.String("user_id", user.UserID))
	return AccountResult{User: user, Tokens: tokens}, nil
}

// Login verifies email and password and issues a token pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (AccountResult, error) {
	if err := e.accountsReady(); err != nil {
		return AccountResult{}, err
	}

	found, err := e.flows.Login(ctx, email, password)
	if err != nil {
		return AccountResult{}, err
	}

	user := fromFlowUser(found)
	tokens, err := e.IssuePair(ctx, user.Principal())
	if err != nil {
		return AccountResult{}, err
	}

	e.logger.InfoContext(ctx, "user_logged_in", slog.String("op", "login"), slog.String("user_id", user.UserID))
	return AccountResult{User: user, Tokens: tokens}, nil
}

// Logout records the logout. Tokens are self-contained and stay valid until they expire;
// clearing them is the transport's job.
func (e *Engine) Logout(ctx context.Context, p Principal) {
	if e == nil {
		return
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, p.UserID, "", nil, nil)
}

// Profile loads the account of an authenticated user.
func (e *Engine) Profile(ctx context.Context, userID string) (UserRecord, error) {
	if err := e.accountsReady(); err != nil {
		return UserRecord{}, err
	}

	rec, err := e.flows.Profile(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	return fromFlowUser(rec), nil
}

// UpdateProfile changes the user's display name. A nil name leaves the record unchanged.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, name *string) (UserRecord, error) {
	if err := e.accountsReady(); err != nil {
		return UserRecord{}, err
	}

	rec, err := e.flows.UpdateProfile(ctx, userID, name)
	if err != nil {
		return UserRecord{}, err
	}
	return fromFlowUser(rec), nil
}

func (e *Engine) accountsReady() error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	if e.userProvider == nil || e.passwordHash == nil {
		return ErrAccountsDisabled
	}
	return nil
}

func (e *Engine) buildAccountDeps(dummyHash string) flows.AccountDeps {
	deps := flows.AccountDeps{
		DefaultRole:       e.config.Account.DefaultRole,
		MinNameLength:     e.config.Account.MinNameLength,
		MinPasswordLength: e.config.Password.MinLength,
		DummyHash:         dummyHash,

		HashPassword:   e.passwordHash.Hash,
		VerifyPassword: e.passwordHash.Verify,
		CreateUser: func(ctx context.Context, in flows.AccountCreateUserInput) (flows.AccountUserRecord, error) {
			rec, err := e.userProvider.CreateUser(ctx, CreateUserInput{
				Name:         in.Name,
				Email:        in.Email,
				PasswordHash: in.PasswordHash,
				Role:         in.Role,
			})
			return toFlowUser(rec), err
		},
		GetUserByEmail: func(ctx context.Context, email string) (flows.AccountUserRecord, error) {
			rec, err := e.userProvider.GetUserByEmail(ctx, email)
			return toFlowUser(rec), err
		},
		GetUserByID: func(ctx context.Context, id string) (flows.AccountUserRecord, error) {
			rec, err := e.userProvider.GetUserByID(ctx, id)
			return toFlowUser(rec), err
		},
		UpdateUserName: func(ctx context.Context, id, name string) (flows.AccountUserRecord, error) {
			rec, err := e.userProvider.UpdateUserName(ctx, id, name)
			return toFlowUser(rec), err
		},

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitFlowAudit,

		Metrics: flows.AccountMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			RegisterInvalid:   int(MetricRegisterInvalid),
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			ProfileUpdated:    int(MetricProfileUpdated),
		},
		Events: flows.AccountEvents{
			RegisterSuccess:   auditEventRegisterSuccess,
			RegisterFailure:   auditEventRegisterFailure,
			RegisterDuplicate: auditEventRegisterDuplicate,
			LoginSuccess:      auditEventLoginSuccess,
			LoginFailure:      auditEventLoginFailure,
			ProfileUpdated:    auditEventProfileUpdated,
		},
		Errors: flows.AccountErrors{
			EngineNotReady:     ErrEngineNotReady,
			AccountInvalid:     ErrAccountInvalid,
			AccountExists:      ErrAccountExists,
			PasswordPolicy:     ErrPasswordPolicy,
			InvalidCredentials: ErrInvalidCredentials,
			UserNotFound:       ErrUserNotFound,
		},
	}

	upgrader, canCheck := e.passwordHash.(PasswordUpgrader)
	updater, canUpdate := e.userProvider.(PasswordHashUpdater)
	if canCheck && canUpdate {
		deps.NeedsRehash = func(encoded string) bool {
			stale, err := upgrader.NeedsUpgrade(encoded)
			return err == nil && stale
		}
		deps.UpdatePasswordHash = func(ctx context.Context, userID, hash string) error {
			if err := updater.UpdatePasswordHash(ctx, userID, hash); err != nil {
				e.logger.WarnContext(ctx, "password_rehash_failed",
					slog.String("op", "login"),
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return err
			}
			e.logger.InfoContext(ctx, "password_rehashed", slog.String("op", "login"), slog.String("user_id", userID))
			return nil
		}
	}
	return deps
}

func toFlowUser(u UserRecord) flows.AccountUserRecord {
	return flows.AccountUserRecord{
		UserID:       u.UserID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

func fromFlowUser(u flows.AccountUserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}
