package pairAuth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

// String returns a stable upper-case label.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one non-fatal configuration finding. Code is stable and machine-matchable.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil when there are none.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("%s(%s)", w.Code, w.Severity))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, ", "))
}

// Lint reports settings that pass Validate but are likely mistakes. It never mutates c.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Token.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens live longer than 15m and cannot be revoked")
	}
	if c.Token.RefreshTTL > 7*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 7d and cannot be revoked")
	}
	if !c.Security.ProductionMode {
		add("production_mode_off", LintInfo, "cookies are sent without the Secure attribute")
		if c.Cookie.Domain != "" {
			add("cookie_domain_ignored", LintInfo, "Cookie Domain only applies in ProductionMode")
		}
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode {
		add("cookie_samesite_none", LintHigh, "SameSite=None exposes auth cookies to cross-site requests")
	}
	if c.Token.Issuer == "" {
		add("issuer_unset", LintInfo, "tokens carry no iss claim")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory below 64 MiB")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication decisions are not audited")
	}

	return ws
}
