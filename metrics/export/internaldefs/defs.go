package internaldefs

import (
	pairAuth "github.com/MrEthical07/pairAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   pairAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   pairAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters; its value comes from
// Engine.AuditDropped.
const (
	AuditDroppedName = "pairauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: pairAuth.MetricAuthAuthenticated, Name: "pairauth_auth_authenticated_total", Help: "Requests admitted on a valid access token."},
	{ID: pairAuth.MetricAuthRotated, Name: "pairauth_auth_rotated_total", Help: "Requests admitted through the refresh token with a new access token."},
	{ID: pairAuth.MetricAuthRejected, Name: "pairauth_auth_rejected_total", Help: "Requests rejected with 401."},
	{ID: pairAuth.MetricAuthNoCredentials, Name: "pairauth_auth_no_credentials_total", Help: "Requests that carried no token at all."},
	{ID: pairAuth.MetricAccessMalformed, Name: "pairauth_access_malformed_total", Help: "Access tokens that could not be parsed."},
	{ID: pairAuth.MetricAccessInvalidSignature, Name: "pairauth_access_invalid_signature_total", Help: "Access tokens with a bad signature."},
	{ID: pairAuth.MetricAccessExpired, Name: "pairauth_access_expired_total", Help: "Expired access tokens."},
	{ID: pairAuth.MetricRefreshMalformed, Name: "pairauth_refresh_malformed_total", Help: "Refresh tokens that could not be parsed."},
	{ID: pairAuth.MetricRefreshInvalidSignature, Name: "pairauth_refresh_invalid_signature_total", Help: "Refresh tokens with a bad signature."},
	{ID: pairAuth.MetricRefreshExpired, Name: "pairauth_refresh_expired_total", Help: "Expired refresh tokens."},
	{ID: pairAuth.MetricRotationIssueFailure, Name: "pairauth_rotation_issue_failure_total", Help: "Valid refresh tokens whose replacement access token could not be signed."},
	{ID: pairAuth.MetricTokenPairIssued, Name: "pairauth_token_pair_issued_total", Help: "Access/refresh pairs issued."},
	{ID: pairAuth.MetricRegisterSuccess, Name: "pairauth_register_success_total", Help: "Successful registrations."},
	{ID: pairAuth.MetricRegisterDuplicate, Name: "pairauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: pairAuth.MetricRegisterInvalid, Name: "pairauth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: pairAuth.MetricLoginSuccess, Name: "pairauth_login_success_total", Help: "Successful logins."},
	{ID: pairAuth.MetricLoginFailure, Name: "pairauth_login_failure_total", Help: "Failed logins."},
	{ID: pairAuth.MetricLogout, Name: "pairauth_logout_total", Help: "Logouts."},
	{ID: pairAuth.MetricProfileUpdated, Name: "pairauth_profile_updated_total", Help: "Profile updates."},
}

var HistogramDefs = []HistogramDef{
	{ID: pairAuth.MetricAuthenticateLatency, Name: "pairauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's microsecond buckets, in seconds.
var HistogramBounds = []string{
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"0.01",
	"+Inf",
}

// HistogramUpperBounds are the finite bounds of HistogramBounds.
var HistogramUpperBounds = []float64{
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.0025,
	0.005,
	0.01,
}

// NormalizeBuckets copies raw into a fixed 8-slot array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
