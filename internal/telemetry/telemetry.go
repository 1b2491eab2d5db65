// Package telemetry initializes OpenTelemetry providers for metric and log
// export and records shellpipe's session lifecycle through them.
//
// Enabled by setting at least one of:
//
//	SHELLPIPE_OTEL_METRICS_URL  (default: http://localhost:8428/opentelemetry/api/v1/push)
//	SHELLPIPE_OTEL_LOGS_URL     (default: http://localhost:9428/insert/opentelemetry/v1/logs)
//
// Telemetry is best-effort: initialization errors are returned but do not
// affect sessions. Until Init installs real providers, the Record helpers
// run against the OTel no-op globals.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// EnvMetricsURL is the env var for the OTLP metrics endpoint.
	EnvMetricsURL = "SHELLPIPE_OTEL_METRICS_URL"

	// EnvLogsURL is the env var for the OTLP logs endpoint.
	EnvLogsURL = "SHELLPIPE_OTEL_LOGS_URL"

	// DefaultMetricsURL is VictoriaMetrics' OTLP push endpoint.
	DefaultMetricsURL = "http://localhost:8428/opentelemetry/api/v1/push"

	// DefaultLogsURL is VictoriaLogs' OTLP insert endpoint.
	DefaultLogsURL = "http://localhost:9428/insert/opentelemetry/v1/logs"

	// ExportInterval is how often metrics are pushed.
	ExportInterval = 30 * time.Second
)

var (
	initMu         sync.Mutex
	initDone       bool
	globalProvider *Provider
)

// Provider wraps the OTel SDK providers and their shutdown functions.
type Provider struct {
	shutdowns    []func(context.Context) error
	shutdownMu   sync.Mutex
	shutdownDone bool
}

// Shutdown flushes pending data and stops the providers. Safe to call
// more than once and on a nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.shutdownMu.Lock()
	defer p.shutdownMu.Unlock()
	if p.shutdownDone {
		return nil
	}
	p.shutdownDone = true

	var errs []error
	for _, fn := range p.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// Enabled reports whether either telemetry endpoint is configured.
func Enabled() bool {
	return os.Getenv(EnvMetricsURL) != "" || os.Getenv(EnvLogsURL) != ""
}

// Init installs OTLP metric and log providers as the OTel globals.
//
// Returns (nil, nil) when neither endpoint variable is set. Idempotent:
// later calls return the provider created by the first one.
func Init(ctx context.Context, serviceName, serviceVersion string) (*Provider, error) {
	initMu.Lock()
	defer initMu.Unlock()
	if initDone {
		return globalProvider, nil
	}
	if !Enabled() {
		initDone = true
		return nil, nil
	}

	metricsURL := os.Getenv(EnvMetricsURL)
	if metricsURL == "" {
		metricsURL = DefaultMetricsURL
	}
	logsURL := os.Getenv(EnvLogsURL)
	if logsURL == "" {
		logsURL = DefaultLogsURL
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithHost(),
		resource.WithOS(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTel resource: %w", err)
	}

	p := &Provider{}

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(metricsURL))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(ExportInterval)),
		),
	)
	otel.SetMeterProvider(mp)
	p.shutdowns = append(p.shutdowns, mp.Shutdown)
	// Instruments created against the no-op provider must be rebuilt.
	resetInstruments()

	logExp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(logsURL))
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
	)
	global.SetLoggerProvider(lp)
	p.shutdowns = append(p.shutdowns, lp.Shutdown)

	initDone = true
	globalProvider = p
	return p, nil
}

// SessionEnv returns variables that let programs run inside a session
// report to the same OTLP endpoints, labelled with the session name.
// Returns nil when telemetry is not configured.
func SessionEnv(session string) map[string]string {
	if !Enabled() {
		return nil
	}
	env := map[string]string{
		"OTEL_RESOURCE_ATTRIBUTES": "shellpipe.session=" + session,
	}
	if v := os.Getenv(EnvMetricsURL); v != "" {
		env["OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"] = v
	}
	if v := os.Getenv(EnvLogsURL); v != "" {
		env["OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"] = v
	}
	return env
}
