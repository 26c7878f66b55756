// Package telemetry pushes engine metrics to an OpenTelemetry collector over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	otelexport "github.com/MrEthical07/pairAuth/metrics/export/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/MrEthical07/pairAuth"

type Config struct {
	// Endpoint is host:port of the collector's OTLP/HTTP receiver.
	Endpoint    string
	Insecure    bool
	Interval    time.Duration
	ServiceName string
}

// Provider owns the MeterProvider and the engine exporter registered on it.
type Provider struct {
	meters   *sdkmetric.MeterProvider
	exporter *otelexport.Exporter
}

// Start builds a periodic OTLP/HTTP pipeline for engine. Nothing is sent until the first
// interval elapses, so an unreachable collector does not fail startup.
func Start(ctx context.Context, cfg Config, engine *pairAuth.Engine) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("telemetry: empty OTLP endpoint")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("telemetry: export interval must be > 0")
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))
	return newProvider(reader, cfg.ServiceName, engine)
}

func newProvider(reader sdkmetric.Reader, serviceName string, engine *pairAuth.Engine) (*Provider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	meters := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	exporter, err := otelexport.New(meters.Meter(meterName), engine)
	if err != nil {
		_ = meters.Shutdown(context.Background())
		return nil, fmt.Errorf("telemetry: engine exporter: %w", err)
	}
	return &Provider{meters: meters, exporter: exporter}, nil
}

// ForceFlush exports the current values immediately.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.meters.ForceFlush(ctx)
}

// Shutdown flushes a final export, then unregisters the engine callback.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	err := p.meters.Shutdown(ctx)
	return errors.Join(err, p.exporter.Close())
}
