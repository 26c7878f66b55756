package otel

import (
	"context"
	"errors"
	"fmt"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	RequestsName      = "pairauth.auth.requests"
	TokenFailuresName = "pairauth.auth.token_failures"
	TokensIssuedName  = "pairauth.tokens.issued"
	AccountOpsName    = "pairauth.account.operations"
	LatencyBucketName = "pairauth.auth.latency.bucket"
	LatencyCountName  = "pairauth.auth.latency.count"
	AuditDroppedName  = "pairauth.audit.dropped"
)

type metricsSource interface {
	MetricsSnapshot() pairAuth.MetricsSnapshot
	AuditDroppedByType() map[string]uint64
}

// point is one engine counter published as a data point of a shared instrument.
type point struct {
	id    pairAuth.MetricID
	attrs attribute.Set
}

func at(id pairAuth.MetricID, kv ...attribute.KeyValue) point {
	return point{id: id, attrs: attribute.NewSet(kv...)}
}

var (
	outcome = attribute.Key("outcome")
	token   = attribute.Key("token")
	reason  = attribute.Key("reason")
	kind    = attribute.Key("kind")
	op      = attribute.Key("op")
	result  = attribute.Key("result")
	le      = attribute.Key("le")
	event   = attribute.Key("event")
)

var requestPoints = []point{
	at(pairAuth.MetricAuthAuthenticated, outcome.String("authenticated")),
	at(pairAuth.MetricAuthRotated, outcome.String("rotated")),
	at(pairAuth.MetricAuthRejected, outcome.String("rejected")),
}

// tokenFailurePoints hold the single reason recorded for each rotation or rejection.
var tokenFailurePoints = []point{
	at(pairAuth.MetricAuthNoCredentials, token.String("none"), reason.String("no_credentials")),
	at(pairAuth.MetricAccessMalformed, token.String("access"), reason.String("malformed")),
	at(pairAuth.MetricAccessInvalidSignature, token.String("access"), reason.String("invalid_signature")),
	at(pairAuth.MetricAccessExpired, token.String("access"), reason.String("expired")),
	at(pairAuth.MetricRefreshMalformed, token.String("refresh"), reason.String("malformed")),
	at(pairAuth.MetricRefreshInvalidSignature, token.String("refresh"), reason.String("invalid_signature")),
	at(pairAuth.MetricRefreshExpired, token.String("refresh"), reason.String("expired")),
	at(pairAuth.MetricRotationIssueFailure, token.String("refresh"), reason.String("issue_failure")),
}

// Every rotation mints exactly one access token, so the rotated counter doubles as the
// access-only issue count.
var issuedPoints = []point{
	at(pairAuth.MetricTokenPairIssued, kind.String("pair")),
	at(pairAuth.MetricAuthRotated, kind.String("access")),
}

var accountPoints = []point{
	at(pairAuth.MetricRegisterSuccess, op.String("register"), result.String("success")),
	at(pairAuth.MetricRegisterDuplicate, op.String("register"), result.String("duplicate")),
	at(pairAuth.MetricRegisterInvalid, op.String("register"), result.String("invalid")),
	at(pairAuth.MetricLoginSuccess, op.String("login"), result.String("success")),
	at(pairAuth.MetricLoginFailure, op.String("login"), result.String("failure")),
	at(pairAuth.MetricLogout, op.String("logout"), result.String("success")),
	at(pairAuth.MetricProfileUpdated, op.String("profile_update"), result.String("success")),
}

// Exporter publishes engine counters as a handful of attributed observable instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	requests      metric.Int64ObservableCounter
	tokenFailures metric.Int64ObservableCounter
	issued        metric.Int64ObservableCounter
	accounts      metric.Int64ObservableCounter
	auditDropped  metric.Int64ObservableCounter

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	leSets         []attribute.Set
}

// New registers the instruments on meter with one callback that reads a single engine
// snapshot per collection.
func New(meter metric.Meter, engine *pairAuth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, engine)
}

func NewFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}

	counters := []struct {
		dst  *metric.Int64ObservableCounter
		name string
		desc string
		unit string
	}{
		{&e.requests, RequestsName, "Authenticate decisions by outcome.", "{request}"},
		{&e.tokenFailures, TokenFailuresName, "Reason recorded for each rotation or rejection, by token kind.", "{token}"},
		{&e.issued, TokensIssuedName, "Tokens minted, as full pairs or rotated access tokens.", "{token}"},
		{&e.accounts, AccountOpsName, "Account operations by result.", "{operation}"},
		{&e.auditDropped, AuditDroppedName, "Audit events dropped under backpressure, by event type.", "{event}"},
	}
	observables := make([]metric.Observable, 0, len(counters)+2)
	for _, c := range counters {
		ins, err := meter.Int64ObservableCounter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = ins
		observables = append(observables, ins)
	}

	var err error
	e.latencyBuckets, err = meter.Int64ObservableGauge(LatencyBucketName,
		metric.WithDescription("Cumulative Authenticate latency samples at or below the le bound, in seconds."),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LatencyBucketName, err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Authenticate latency samples."),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LatencyCountName, err)
	}
	observables = append(observables, e.latencyBuckets, e.latencyCount)

	e.leSets = make([]attribute.Set, len(internaldefs.HistogramBounds))
	for i, bound := range internaldefs.HistogramBounds {
		e.leSets[i] = attribute.NewSet(le.String(bound))
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	observePoints(o, e.requests, requestPoints, snapshot.Counters)
	observePoints(o, e.tokenFailures, tokenFailurePoints, snapshot.Counters)
	observePoints(o, e.issued, issuedPoints, snapshot.Counters)
	observePoints(o, e.accounts, accountPoints, snapshot.Counters)

	// absent when latency histograms are off
	if raw, ok := snapshot.Histograms[pairAuth.MetricAuthenticateLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := range e.leSets {
			o.ObserveInt64(e.latencyBuckets, int64(cumulative[i]), metric.WithAttributeSet(e.leSets[i]))
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	}

	for eventType, n := range e.source.AuditDroppedByType() {
		o.ObserveInt64(e.auditDropped, int64(n), metric.WithAttributes(event.String(eventType)))
	}
	return nil
}

func observePoints(o metric.Observer, ins metric.Int64ObservableCounter, points []point, counters map[pairAuth.MetricID]uint64) {
	for _, p := range points {
		value, ok := counters[p.id]
		if !ok {
			continue
		}
		o.ObserveInt64(ins, int64(value), metric.WithAttributeSet(p.attrs))
	}
}

// Close unregisters the callback. The instruments remain on the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
