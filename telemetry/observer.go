package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/lifecycle"
)

const (
	MetricCalls       = "vaultmcp.tool.calls"
	MetricFailures    = "vaultmcp.tool.failures"
	MetricLatency     = "vaultmcp.tool.latency"
	MetricTransitions = "vaultmcp.server.transitions"
)

// CallObserver records dispatched tool calls into OpenTelemetry.
type CallObserver struct {
	tracer trace.Tracer

	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func NewCallObserver(meter metric.Meter, tracer trace.Tracer) (*CallObserver, error) {
	calls, err := meter.Int64Counter(
		MetricCalls,
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Number of tool calls that returned an error"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &CallObserver{
		tracer:   tracer,
		calls:    calls,
		failures: failures,
		latency:  latency,
	}, nil
}

// Observe records one finished call. The span is back-dated to the call's
// start.
func (o *CallObserver) Observe(ctx context.Context, obs dispatch.Observation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.Tool),
		attribute.String("outcome", string(obs.Outcome)),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", obs.ErrorKind))
	}

	options := metric.WithAttributes(attrs...)
	o.calls.Add(ctx, 1, options)
	if obs.Outcome != dispatch.OutcomeSuccess {
		o.failures.Add(ctx, 1, options)
	}
	o.latency.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	end := time.Now()
	_, span := o.tracer.Start(ctx, "tool.call",
		trace.WithTimestamp(end.Add(-obs.Duration)),
		trace.WithAttributes(attrs...),
	)
	if obs.Outcome == dispatch.OutcomeSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(obs.Outcome))
	}
	span.End(trace.WithTimestamp(end))
}

var _ dispatch.Observer = (*CallObserver)(nil)

// LifecycleObserver counts server state transitions.
type LifecycleObserver struct {
	transitions metric.Int64Counter
}

func NewLifecycleObserver(meter metric.Meter) (*LifecycleObserver, error) {
	transitions, err := meter.Int64Counter(
		MetricTransitions,
		metric.WithDescription("Number of server lifecycle transitions"),
	)
	if err != nil {
		return nil, err
	}
	return &LifecycleObserver{transitions: transitions}, nil
}

// OnStateChange matches lifecycle.Options.OnStateChange.
func (o *LifecycleObserver) OnStateChange(from, to lifecycle.State) {
	if o == nil {
		return
	}
	o.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}
