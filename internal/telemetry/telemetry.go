package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config controls telemetry initialization.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Providers holds the OpenTelemetry providers for the process. When
// telemetry is disabled the struct is inert: Shutdown is a no-op and
// Meter is nil (callers must use IsEnabled before touching it).
type Providers struct {
	ServiceName string
	Meter       metric.Meter

	meterProvider *sdkmetric.MeterProvider
	enabled       bool
}

// Init sets up the OTel meter provider with a Prometheus exporter.
// With cfg.Enabled false it returns inert providers so callers never
// need nil checks.
func Init(_ context.Context, cfg *Config) (*Providers, error) {
	p := &Providers{ServiceName: cfg.ServiceName, enabled: cfg.Enabled}
	if !cfg.Enabled {
		return p, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	p.meterProvider = provider
	p.Meter = provider.Meter(cfg.ServiceName)
	return p, nil
}

// IsEnabled reports whether telemetry was switched on at boot.
func (p *Providers) IsEnabled() bool {
	return p.enabled
}

// Shutdown flushes and stops the meter provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
