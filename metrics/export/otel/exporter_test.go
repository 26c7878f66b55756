package otel

import (
	"context"
	"sync"
	"testing"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot pairAuth.MetricsSnapshot
	dropped  map[string]uint64
}

func (f *fakeSource) MetricsSnapshot() pairAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := pairAuth.MetricsSnapshot{
		Counters:   make(map[pairAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[pairAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDroppedByType() map[string]uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]uint64, len(f.dropped))
	for k, v := range f.dropped {
		out[k] = v
	}
	return out
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// value returns the data point of instrument name whose attributes equal kv exactly.
func value(rm metricdata.ResourceMetrics, name string, kv ...attribute.KeyValue) (int64, bool) {
	want := attribute.NewSet(kv...)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, dp := range points {
				if dp.Attributes.Equals(&want) {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterAttributesCarryOutcomeAndReason(t *testing.T) {
	reader, provider := newReaderMeter()

	src := &fakeSource{
		snapshot: pairAuth.MetricsSnapshot{
			Counters: map[pairAuth.MetricID]uint64{
				pairAuth.MetricAuthAuthenticated: 7,
				pairAuth.MetricAuthRotated:       3,
				pairAuth.MetricAuthRejected:      2,
				pairAuth.MetricAccessExpired:     4,
				pairAuth.MetricRefreshExpired:    1,
				pairAuth.MetricAuthNoCredentials: 1,
				pairAuth.MetricTokenPairIssued:   5,
				pairAuth.MetricLoginFailure:      6,
			},
			Histograms: map[pairAuth.MetricID][]uint64{
				pairAuth.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: map[string]uint64{"auth_rejected": 9},
	}

	exp, err := NewFromSource(provider.Meter("pairauth-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	rm := collect(t, reader)

	cases := []struct {
		name string
		kv   []attribute.KeyValue
		want int64
	}{
		{RequestsName, []attribute.KeyValue{outcome.String("authenticated")}, 7},
		{RequestsName, []attribute.KeyValue{outcome.String("rotated")}, 3},
		{RequestsName, []attribute.KeyValue{outcome.String("rejected")}, 2},
		{TokenFailuresName, []attribute.KeyValue{token.String("access"), reason.String("expired")}, 4},
		{TokenFailuresName, []attribute.KeyValue{token.String("refresh"), reason.String("expired")}, 1},
		{TokenFailuresName, []attribute.KeyValue{token.String("none"), reason.String("no_credentials")}, 1},
		{TokensIssuedName, []attribute.KeyValue{kind.String("pair")}, 5},
		{TokensIssuedName, []attribute.KeyValue{kind.String("access")}, 3},
		{AccountOpsName, []attribute.KeyValue{op.String("login"), result.String("failure")}, 6},
		{LatencyBucketName, []attribute.KeyValue{le.String("0.0001")}, 1},
		{LatencyBucketName, []attribute.KeyValue{le.String("+Inf")}, 8},
		{LatencyCountName, nil, 8},
		{AuditDroppedName, []attribute.KeyValue{event.String("auth_rejected")}, 9},
	}
	for _, tc := range cases {
		got, ok := value(rm, tc.name, tc.kv...)
		if !ok || got != tc.want {
			t.Fatalf("%s %v: got %d (found=%t), want %d", tc.name, tc.kv, got, ok, tc.want)
		}
	}
}

func TestExporterSkipsLatencyWhenDisabled(t *testing.T) {
	reader, provider := newReaderMeter()

	src := &fakeSource{snapshot: pairAuth.NewMetrics(pairAuth.MetricsConfig{Enabled: true}).Snapshot()}
	exp, err := NewFromSource(provider.Meter("pairauth-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	rm := collect(t, reader)
	if _, ok := value(rm, LatencyCountName); ok {
		t.Fatal("latency count must be absent without histograms")
	}
	if got, ok := value(rm, RequestsName, outcome.String("rejected")); !ok || got != 0 {
		t.Fatalf("zero counters must still be published: got %d (found=%t)", got, ok)
	}
}

func TestEveryCounterHasAPoint(t *testing.T) {
	covered := make(map[pairAuth.MetricID]bool)
	for _, points := range [][]point{requestPoints, tokenFailurePoints, issuedPoints, accountPoints} {
		for _, p := range points {
			covered[p.id] = true
		}
	}
	for _, def := range internaldefs.CounterDefs {
		if !covered[def.ID] {
			t.Fatalf("%s is not published", def.Name)
		}
	}
}

func TestExporterOverEngine(t *testing.T) {
	cfg := pairAuth.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-for-otel-exporter-0123456789")
	cfg.Token.RefreshSecret = []byte("refresh-secret-for-otel-exporter-987654321")
	cfg.Metrics.Enabled = true

	engine, err := pairAuth.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	reader, provider := newReaderMeter()
	exp, err := New(provider.Meter("pairauth-test"), engine)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	engine.Authenticate(context.Background(), pairAuth.Credentials{Bearer: "not-a-jwt"})

	rm := collect(t, reader)
	if got, ok := value(rm, RequestsName, outcome.String("rejected")); !ok || got != 1 {
		t.Fatalf("rejected: got %d (found=%t)", got, ok)
	}
	if got, ok := value(rm, TokenFailuresName, token.String("access"), reason.String("malformed")); !ok || got != 1 {
		t.Fatalf("access malformed: got %d (found=%t)", got, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReaderMeter()

	if _, err := NewFromSource(provider.Meter("pairauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := New(provider.Meter("pairauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for a nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReaderMeter()

	src := &fakeSource{
		snapshot: pairAuth.MetricsSnapshot{
			Counters:   map[pairAuth.MetricID]uint64{pairAuth.MetricAuthAuthenticated: 1},
			Histograms: map[pairAuth.MetricID][]uint64{},
		},
	}

	exp, err := NewFromSource(provider.Meter("pairauth-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[pairAuth.MetricAuthAuthenticated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
