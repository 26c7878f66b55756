package pairAuth

import (
	"net/http"
	"testing"
)

func TestSecurityReport(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Issuer = "pairauth"
	engine, _ := buildTestEngine(t, testEngineOptions{cfg: &cfg, up: newMockUserProvider()})

	r := engine.SecurityReport()
	if r.SigningAlgorithm != "HS256" || !r.IssuerPinned || !r.AccountsEnabled || !r.MetricsEnabled {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.ProductionMode || r.CookieSecure || r.AuditEnabled {
		t.Fatalf("unexpected development flags: %+v", r)
	}
	if r.CookieSameSite != http.SameSiteLaxMode || r.Argon2.MinLength != 10 {
		t.Fatalf("unexpected cookie or argon2 fields: %+v", r)
	}
	if r.LintHighFindings != 0 {
		t.Fatalf("expected no high findings, got %d", r.LintHighFindings)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var engine *Engine
	if r := engine.SecurityReport(); r != (SecurityReport{}) {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
