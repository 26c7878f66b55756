// Package otel publishes pairAuth engine metrics through an OpenTelemetry Meter.
//
// Engine counters are folded into a few instruments whose attributes carry the detail:
// pairauth.auth.requests by outcome, pairauth.auth.token_failures by token and reason,
// pairauth.tokens.issued by kind, pairauth.account.operations by op and result, and
// pairauth.audit.dropped by event. Latency buckets become a gauge keyed by le. A single
// callback reads [pairAuth.Engine.MetricsSnapshot] on each collection cycle.
//
// The package never owns the MeterProvider; internal/telemetry builds one for the server.
package otel
