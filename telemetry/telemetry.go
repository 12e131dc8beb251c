// Package telemetry wires OpenTelemetry instruments for tool calls and server
// lifecycle. Metrics are kept in-process behind a manual reader so the HTTP
// transport can report call counts.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentationName = "github.com/slighter12/vault-mcp-go"

type Telemetry struct {
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider

	Calls     *CallObserver
	Lifecycle *LifecycleObserver
}

type Option func(*options)

type options struct {
	spanProcessors []sdktrace.SpanProcessor
}

// WithSpanProcessor attaches a span processor, e.g. one feeding an exporter.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.spanProcessors = append(o.spanProcessors, p)
	}
}

// Setup builds meter and tracer providers for service and the observers
// bound to them.
func Setup(service, version string, opts ...Option) (*Telemetry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, p := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	meter := mp.Meter(instrumentationName)
	calls, err := NewCallObserver(meter, tp.Tracer(instrumentationName))
	if err != nil {
		return nil, err
	}
	lc, err := NewLifecycleObserver(meter)
	if err != nil {
		return nil, err
	}
	return &Telemetry{
		reader:         reader,
		meterProvider:  mp,
		tracerProvider: tp,
		Calls:          calls,
		Lifecycle:      lc,
	}, nil
}

// CallCounts returns the number of calls per tool since startup.
func (t *Telemetry) CallCounts(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != MetricCalls {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				tool, _ := dp.Attributes.Value("tool_name")
				counts[tool.AsString()] += dp.Value
			}
		}
	}
	return counts, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.meterProvider.Shutdown(ctx),
		t.tracerProvider.Shutdown(ctx),
	)
}
