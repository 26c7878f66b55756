package pairAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/pairAuth/internal/flows"
	"github.com/MrEthical07/pairAuth/jwt"
)

// Engine issues and verifies access/refresh token pairs and runs the account flows. It is
// built once by [Builder.Build] and is safe for concurrent use.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	flows        flows.Service
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash PasswordHasher
	userProvider UserProvider
	logger       *slog.Logger
	now          func() time.Time
}

// Close stops the audit dispatcher, if any, after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type. Types with no drops are
// omitted; drops of foreign event types are reported under "other".
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

// MetricsSnapshot copies the engine counters. Empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// CookiePolicy returns the cookie attributes the HTTP layer must apply. Secure follows
// ProductionMode, and Domain is only set in production.
func (e *Engine) CookiePolicy() CookiePolicy {
	if e == nil {
		return CookiePolicy{}
	}
	policy := CookiePolicy{
		AccessName:  e.config.Cookie.AccessName,
		RefreshName: e.config.Cookie.RefreshName,
		Path:        e.config.Cookie.Path,
		Secure:      e.config.Security.ProductionMode,
		SameSite:    e.config.Cookie.SameSite,
		AccessTTL:   e.config.Token.AccessTTL,
		RefreshTTL:  e.config.Token.RefreshTTL,
	}
	if e.config.Security.ProductionMode {
		policy.Domain = e.config.Cookie.Domain
	}
	return policy
}

// Logger returns the engine's structured logger. Never nil.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return discardLogger()
	}
	return e.logger
}

/*
====================================
CREDENTIAL ISSUER
====================================
*/

// IssuePair mints an access token and a refresh token for p from a single clock reading.
func (e *Engine) IssuePair(ctx context.Context, p Principal) (TokenPair, error) {
	if e == nil || e.jwtManager == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if !p.Valid() {
		return TokenPair{}, ErrInvalidPrincipal
	}

	now := e.now()
	access, accessExp, err := e.jwtManager.EncodeAt(jwt.KindAccess, p.UserID, p.Email, now, e.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, errors.Join(ErrTokenIssue, err)
	}
	refresh, refreshExp, err := e.jwtManager.EncodeAt(jwt.KindRefresh, p.UserID, p.Email, now, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, errors.Join(ErrTokenIssue, err)
	}

	e.metricInc(MetricTokenPairIssued)
	e.emitAudit(ctx, auditEventPairIssued, true, p.UserID, "", nil, nil)

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessOnly mints an access token without touching any refresh token. Rotation uses
// it; the refresh lifetime is never extended.
func (e *Engine) IssueAccessOnly(ctx context.Context, p Principal) (string, error) {
	token, _, err := e.issueAccess(p)
	return token, err
}

func (e *Engine) issueAccess(p Principal) (string, time.Time, error) {
	if e == nil || e.jwtManager == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	if !p.Valid() {
		return "", time.Time{}, ErrInvalidPrincipal
	}
	token, exp, err := e.jwtManager.Encode(jwt.KindAccess, p.UserID, p.Email, e.config.Token.AccessTTL)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenIssue, err)
	}
	return token, exp, nil
}

/*
====================================
REQUEST AUTHENTICATOR
====================================
*/

// Authenticate decides admission for one request. It performs no I/O and never blocks.
//
// A valid access token yields OutcomeAuthenticated. An absent or unusable access token
// falls back to the refresh token; if that verifies, a new access token is minted and
// OutcomeRotated is returned. Everything else is OutcomeRejected. Callers must not reveal
// AuthResult.Reason to the client.
func (e *Engine) Authenticate(ctx context.Context, creds Credentials) AuthResult {
	if e == nil || !e.flows.Initialized() {
		return AuthResult{Outcome: OutcomeRejected, Reason: FailureIssue}
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := e.flows.Authenticate(flows.AuthenticateInput{
		Bearer:        creds.Bearer,
		AccessCookie:  creds.AccessCookie,
		RefreshCookie: creds.RefreshCookie,
	})

	out := AuthResult{
		Outcome:         mapOutcome(res.Outcome),
		Principal:       Principal{UserID: res.Identity.UserID, Email: res.Identity.Email},
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
		Reason:          mapFailure(res.Failure),
		FromHeader:      res.FromHeader,
	}
	if out.Outcome == OutcomeRejected {
		out.Principal = Principal{}
	}

	e.recordAuthenticate(ctx, out, res)

	if !start.IsZero() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	return out
}

func (e *Engine) recordAuthenticate(ctx context.Context, out AuthResult, res flows.AuthenticateResult) {
	e.metricInc(failureMetric(out.Reason))

	switch out.Outcome {
	case OutcomeAuthenticated:
		e.metricInc(MetricAuthAuthenticated)
		e.emitAudit(ctx, auditEventAuthenticated, true, out.Principal.UserID, "", nil, nil)
	case OutcomeRotated:
		e.metricInc(MetricAuthRotated)
		e.logger.InfoContext(ctx, "access_token_rotated",
			slog.String("op", "authenticate"),
			slog.String("user_id", out.Principal.UserID),
			slog.String("reason", out.Reason.String()),
			slog.Bool("from_header", out.FromHeader),
		)
		e.emitAudit(ctx, auditEventRotated, true, out.Principal.UserID, out.Reason.String(), nil, nil)
	default:
		e.metricInc(MetricAuthRejected)
		attrs := []slog.Attr{
			slog.String("op", "authenticate"),
			slog.String("reason", out.Reason.String()),
			slog.Bool("from_header", out.FromHeader),
		}
		if res.AccessErr != nil {
			attrs = append(attrs, slog.String("access_error", res.AccessErr.Error()))
		}
		if res.RefreshErr != nil {
			attrs = append(attrs, slog.String("refresh_error", res.RefreshErr.Error()))
		}
		if res.IssueErr != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "access_token_issue_failed",
				slog.String("op", "authenticate"),
				slog.String("error", res.IssueErr.Error()),
			)
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "auth_rejected", attrs...)
		e.emitAudit(ctx, auditEventRejected, false, "", out.Reason.String(), ErrUnauthorized, nil)
	}
}

func mapOutcome(o flows.AuthenticateOutcome) Outcome {
	switch o {
	case flows.AuthenticateAuthenticated:
		return OutcomeAuthenticated
	case flows.AuthenticateRotated:
		return OutcomeRotated
	default:
		return OutcomeRejected
	}
}

func mapFailure(f flows.AuthenticateFailureKind) FailureKind {
	switch f {
	case flows.AuthenticateFailureNone:
		return FailureNone
	case flows.AuthenticateFailureNoCredentials:
		return FailureNoCredentials
	case flows.AuthenticateFailureAccessAbsent:
		return FailureAccessAbsent
	case flows.AuthenticateFailureAccessMalformed:
		return FailureAccessMalformed
	case flows.AuthenticateFailureAccessInvalidSignature:
		return FailureAccessInvalidSignature
	case flows.AuthenticateFailureAccessExpired:
		return FailureAccessExpired
	case flows.AuthenticateFailureRefreshMalformed:
		return FailureRefreshMalformed
	case flows.AuthenticateFailureRefreshInvalidSignature:
		return FailureRefreshInvalidSignature
	case flows.AuthenticateFailureRefreshExpired:
		return FailureRefreshExpired
	default:
		return FailureIssue
	}
}

// failureMetric returns metricIDCount, which Inc ignores, for kinds without a counter.
func failureMetric(f FailureKind) MetricID {
	switch f {
	case FailureNoCredentials:
		return MetricAuthNoCredentials
	case FailureAccessMalformed:
		return MetricAccessMalformed
	case FailureAccessInvalidSignature:
		return MetricAccessInvalidSignature
	case FailureAccessExpired:
		return MetricAccessExpired
	case FailureRefreshMalformed:
		return MetricRefreshMalformed
	case FailureRefreshInvalidSignature:
		return MetricRefreshInvalidSignature
	case FailureRefreshExpired:
		return MetricRefreshExpired
	case FailureIssue:
		return MetricRotationIssueFailure
	default:
		return metricIDCount
	}
}

func (e *Engine) decodeFlowIdentity(kind jwt.Kind) func(string) (flows.Identity, error) {
	return func(token string) (flows.Identity, error) {
		claims, err := e.jwtManager.Decode(kind, token)
		if err != nil {
			return flows.Identity{}, err
		}
		return flows.Identity{UserID: claims.UID, Email: claims.Email}, nil
	}
}

func (e *Engine) issueFlowAccess(id flows.Identity) (string, time.Time, error) {
	return e.issueAccess(Principal{UserID: id.UserID, Email: id.Email})
}

func (e *Engine) String() string {
	if e == nil {
		return "pairAuth.Engine(nil)"
	}
	return fmt.Sprintf("pairAuth.Engine(production=%t, access_ttl=%s, refresh_ttl=%s)",
		e.config.Security.ProductionMode, e.config.Token.AccessTTL, e.config.Token.RefreshTTL)
}
