package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.DecodeAccess != nil &&
		s.deps.Authenticate.DecodeRefresh != nil &&
		s.deps.Authenticate.IssueAccess != nil
}

func (s Service) Authenticate(in AuthenticateInput) AuthenticateResult {
	return RunAuthenticate(in, s.deps.Authenticate)
}

func (s Service) Register(ctx context.Context, req AccountRegisterRequest) (AccountUserRecord, error) {
	return RunRegister(ctx, req, s.deps.Account)
}

func (s Service) Login(ctx context.Context, email, password string) (AccountUserRecord, error) {
	return RunLogin(ctx, email, password, s.deps.Account)
}

func (s Service) Profile(ctx context.Context, userID string) (AccountUserRecord, error) {
	return RunProfile(ctx, userID, s.deps.Account)
}

func (s Service) UpdateProfile(ctx context.Context, userID string, name *string) (AccountUserRecord, error) {
	return RunUpdateProfile(ctx, userID, name, s.deps.Account)
}
