// Package observe records OpenTelemetry spans and metrics for governed sends.
package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// InstrumentationName identifies this library to tracer and meter providers.
const InstrumentationName = "github.com/fivetwenty-io/hubwire"

// Wait kinds.
const (
	WaitRateLimit = "ratelimit"
	WaitAbuse     = "abuse"
)

// Attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeAbuse       = "abuse"
	OutcomeHTTPError   = "http_error"
	OutcomeTransport   = "transport_error"
)

// Telemetry is safe for concurrent use.
type Telemetry struct {
	tracer     trace.Tracer
	requests   metric.Int64Counter
	rateWaits  metric.Int64Counter
	abuseWaits metric.Int64Counter
	waitHist   metric.Float64Histogram
}

// New creates Telemetry from the given providers. Nil providers fall back to
// the otel globals.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(InstrumentationName)

	requests, err := meter.Int64Counter(
		"hubwire.requests",
		metric.WithDescription("HTTP exchanges attempted by the retry governor"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating requests counter: %w", err)
	}

	rateWaits, err := meter.Int64Counter(
		"hubwire.ratelimit.waits",
		metric.WithDescription("Waits for a primary rate-limit reset"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rate-limit wait counter: %w", err)
	}

	abuseWaits, err := meter.Int64Counter(
		"hubwire.abuse.waits",
		metric.WithDescription("Waits after a secondary rate limit"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating abuse wait counter: %w", err)
	}

	waitHist, err := meter.Float64Histogram(
		"hubwire.wait.duration_ms",
		metric.WithDescription("Governor wait duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wait histogram: %w", err)
	}

	return &Telemetry{
		tracer:     tp.Tracer(InstrumentationName),
		requests:   requests,
		rateWaits:  rateWaits,
		abuseWaits: abuseWaits,
		waitHist:   waitHist,
	}, nil
}

// Noop returns Telemetry that records nothing.
func Noop() *Telemetry {
	t, _ := New(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())

	return t
}

// StartSend starts the span covering every attempt of one governed send.
func (t *Telemetry) StartSend(ctx context.Context, req *hub.Request) (context.Context, trace.Span) {
	u := req.URL()

	return t.tracer.Start(ctx, "hubwire "+req.Method(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method()),
			attribute.String("server.address", u.Host),
			attribute.String("url.path", u.Path),
			attribute.String("hubwire.resource", hub.ResourceForRequest(req)),
		),
	)
}

// RecordAttempt counts one exchange and adds an event to span.
func (t *Telemetry) RecordAttempt(ctx context.Context, span trace.Span, req *hub.Request, attempt, status int, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", req.Method()),
		attribute.String("hubwire.resource", hub.ResourceForRequest(req)),
		attribute.String("hubwire.outcome", outcome),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}

	t.requests.Add(ctx, 1, metric.WithAttributes(attrs...))

	span.AddEvent("attempt", trace.WithAttributes(
		append(attrs, attribute.Int("hubwire.attempt", attempt))...,
	))
}

// RecordWait counts a governor wait of kind and adds an event to span.
func (t *Telemetry) RecordWait(ctx context.Context, span trace.Span, kind string, wait time.Duration, preemptive bool) {
	opt := metric.WithAttributes(
		attribute.String("hubwire.wait.kind", kind),
		attribute.Bool("hubwire.wait.preemptive", preemptive),
	)

	switch kind {
	case WaitAbuse:
		t.abuseWaits.Add(ctx, 1, opt)
	default:
		t.rateWaits.Add(ctx, 1, opt)
	}

	t.waitHist.Record(ctx, float64(wait.Milliseconds()), opt)

	span.AddEvent("wait", trace.WithAttributes(
		attribute.String("hubwire.wait.kind", kind),
		attribute.Int64("hubwire.wait.ms", wait.Milliseconds()),
		attribute.Bool("hubwire.wait.preemptive", preemptive),
	))
}

// EndSend ends span, recording err if present.
func (t *Telemetry) EndSend(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
