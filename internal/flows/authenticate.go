package flows

import (
	"time"

	"github.com/MrEthical07/pairAuth/jwt"
)

// AuthenticateOutcome is the terminal state of one request authentication.
type AuthenticateOutcome int

const (
	AuthenticateRejected AuthenticateOutcome = iota
	AuthenticateAuthenticated
	AuthenticateRotated
)

// AuthenticateFailureKind classifies why the access token was not used or why the request
// was rejected, for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureNoCredentials
	AuthenticateFailureAccessAbsent
	AuthenticateFailureAccessMalformed
	AuthenticateFailureAccessInvalidSignature
	AuthenticateFailureAccessExpired
	AuthenticateFailureRefreshMalformed
	AuthenticateFailureRefreshInvalidSignature
	AuthenticateFailureRefreshExpired
	AuthenticateFailureIssue
)

// Identity is the principal as seen by flows.
type Identity struct {
	UserID string
	Email  string
}

// AuthenticateInput carries the raw credentials of one request. Empty means absent.
type AuthenticateInput struct {
	Bearer        string
	AccessCookie  string
	RefreshCookie string
}

// AuthenticateDeps captures authenticate flow dependencies.
type AuthenticateDeps struct {
	DecodeAccess  func(token string) (Identity, error)
	DecodeRefresh func(token string) (Identity, error)
	IssueAccess   func(Identity) (string, time.Time, error)
}

// AuthenticateResult carries the decision plus the errors that produced it.
type AuthenticateResult struct {
	Outcome         AuthenticateOutcome
	Failure         AuthenticateFailureKind
	Identity        Identity
	AccessToken     string
	AccessExpiresAt time.Time
	FromHeader      bool
	AccessErr       error
	RefreshErr      error
	IssueErr        error
}

// RunAuthenticate decides admission for one request.
//
// The access token is taken from the bearer value, falling back to the cookie. The refresh
// token is consulted only when the access token is absent or fails to decode for any
// reason; a valid refresh token yields a freshly minted access token and never a new
// refresh token.
func RunAuthenticate(in AuthenticateInput, deps AuthenticateDeps) AuthenticateResult {
	access, fromHeader := selectAccess(in)
	refresh := in.RefreshCookie

	if access == "" {
		if refresh == "" {
			return AuthenticateResult{
				Outcome: AuthenticateRejected,
				Failure: AuthenticateFailureNoCredentials,
			}
		}
		return rotate(refresh, AuthenticateFailureAccessAbsent, nil, false, deps)
	}

	id, err := deps.DecodeAccess(access)
	if err == nil {
		return AuthenticateResult{
			Outcome:    AuthenticateAuthenticated,
			Failure:    AuthenticateFailureNone,
			Identity:   id,
			FromHeader: fromHeader,
		}
	}

	accessFailure := accessFailureKind(err)
	if refresh == "" {
		return AuthenticateResult{
			Outcome:    AuthenticateRejected,
			Failure:    accessFailure,
			FromHeader: fromHeader,
			AccessErr:  err,
		}
	}

	return rotate(refresh, accessFailure, err, fromHeader, deps)
}

func rotate(
	refresh string,
	accessFailure AuthenticateFailureKind,
	accessErr error,
	fromHeader bool,
	deps AuthenticateDeps,
) AuthenticateResult {
	id, err := deps.DecodeRefresh(refresh)
	if err != nil {
		return AuthenticateResult{
			Outcome:    AuthenticateRejected,
			Failure:    refreshFailureKind(err),
			FromHeader: fromHeader,
			AccessErr:  accessErr,
			RefreshErr: err,
		}
	}

	token, exp, err := deps.IssueAccess(id)
	if err != nil {
		return AuthenticateResult{
			Outcome:    AuthenticateRejected,
			Failure:    AuthenticateFailureIssue,
			Identity:   id,
			FromHeader: fromHeader,
			AccessErr:  accessErr,
			IssueErr:   err,
		}
	}

	return AuthenticateResult{
		Outcome:         AuthenticateRotated,
		Failure:         accessFailure,
		Identity:        id,
		AccessToken:     token,
		AccessExpiresAt: exp,
		FromHeader:      fromHeader,
		AccessErr:       accessErr,
	}
}

func selectAccess(in AuthenticateInput) (string, bool) {
	if in.Bearer != "" {
		return in.Bearer, true
	}
	return in.AccessCookie, false
}

func accessFailureKind(err error) AuthenticateFailureKind {
	switch jwt.Classify(err) {
	case jwt.FailureExpired:
		return AuthenticateFailureAccessExpired
	case jwt.FailureInvalidSignature:
		return AuthenticateFailureAccessInvalidSignature
	default:
		return AuthenticateFailureAccessMalformed
	}
}

func refreshFailureKind(err error) AuthenticateFailureKind {
	switch jwt.Classify(err) {
	case jwt.FailureExpired:
		return AuthenticateFailureRefreshExpired
	case jwt.FailureInvalidSignature:
		return AuthenticateFailureRefreshInvalidSignature
	default:
		return AuthenticateFailureRefreshMalformed
	}
}
