package pairAuth

import (
	"net/http"
	"time"
)

// SecurityReport summarizes the security posture of a built Engine. It contains no secret
// material.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	IssuerPinned     bool
	CookieSecure     bool
	CookieSameSite   http.SameSite
	CookieDomain     string
	AccountsEnabled  bool
	Argon2           PasswordConfigReport
	AuditEnabled     bool
	MetricsEnabled   bool
	LintHighFindings int
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	policy := e.CookiePolicy()
	cfg := e.config

	return SecurityReport{
		ProductionMode:   cfg.Security.ProductionMode,
		SigningAlgorithm: "HS256",
		AccessTTL:        cfg.Token.AccessTTL,
		RefreshTTL:       cfg.Token.RefreshTTL,
		IssuerPinned:     cfg.Token.Issuer != "",
		CookieSecure:     policy.Secure,
		CookieSameSite:   policy.SameSite,
		CookieDomain:     policy.Domain,
		AccountsEnabled:  e.userProvider != nil,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		AuditEnabled:     e.audit != nil,
		MetricsEnabled:   e.metrics.Enabled(),
		LintHighFindings: len(cfg.Lint().BySeverity(LintHigh)),
	}
}
