package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	otelexport "github.com/MrEthical07/pairAuth/metrics/export/otel"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newEngine(t *testing.T) *pairAuth.Engine {
	t.Helper()
	cfg := pairAuth.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-for-telemetry-tests-0123456")
	cfg.Token.RefreshSecret = []byte("refresh-secret-for-telemetry-tests-654321")
	cfg.Metrics.Enabled = true

	engine, err := pairAuth.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

type collector struct {
	mu          sync.Mutex
	paths       []string
	contentType string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.contentType = r.Header.Get("Content-Type")
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func TestStartPushesOverOTLPHTTP(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col)
	t.Cleanup(srv.Close)

	engine := newEngine(t)
	engine.Authenticate(context.Background(), pairAuth.Credentials{})

	p, err := Start(context.Background(), Config{
		Endpoint:    strings.TrimPrefix(srv.URL, "http://"),
		Insecure:    true,
		Interval:    time.Hour,
		ServiceName: "pairauth-test",
	}, engine)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.ForceFlush(ctx))
	require.NoError(t, p.Shutdown(ctx))

	col.mu.Lock()
	defer col.mu.Unlock()
	require.NotEmpty(t, col.paths)
	require.Equal(t, "/v1/metrics", col.paths[0])
	require.Equal(t, "application/x-protobuf", col.contentType)
}

func TestStartValidatesConfig(t *testing.T) {
	engine := newEngine(t)

	_, err := Start(context.Background(), Config{Interval: time.Second}, engine)
	require.Error(t, err)

	_, err = Start(context.Background(), Config{Endpoint: "localhost:4318"}, engine)
	require.Error(t, err)
}

func TestProviderPublishesEngineCounters(t *testing.T) {
	engine := newEngine(t)
	reader := sdkmetric.NewManualReader()

	p, err := newProvider(reader, "pairauth-test", engine)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	engine.Authenticate(context.Background(), pairAuth.Credentials{})
	engine.Authenticate(context.Background(), pairAuth.Credentials{})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	name, ok := rm.Resource.Set().Value("service.name")
	require.True(t, ok)
	require.Equal(t, "pairauth-test", name.AsString())

	want := attribute.NewSet(attribute.String("outcome", "rejected"))
	var got int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != otelexport.RequestsName {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if dp.Attributes.Equals(&want) {
					got = dp.Value
				}
			}
		}
	}
	require.Equal(t, int64(2), got)
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	require.NoError(t, p.Shutdown(context.Background()))
}
