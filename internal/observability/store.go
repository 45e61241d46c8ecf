package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"linkgate/internal/store"
)

// InstrumentedStore wraps a store.Store with a span, a latency sample and an
// error count per call. Keys are reduced to their namespace ("rl", "ch",
// "pass", "fp") before they become attributes so client addresses and nonces
// never reach the telemetry backend.
type InstrumentedStore struct {
	inner    store.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ store.Store = (*InstrumentedStore)(nil)

func newInstrumentedStore(inner store.Store, tracer trace.Tracer, meter metric.Meter) (*InstrumentedStore, error) {
	duration, err := meter.Float64Histogram(
		"store.operation.duration",
		metric.WithDescription("Duration of store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"store.operation.errors",
		metric.WithDescription("Number of store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

// keyNamespace returns the part of a key before the first colon.
func keyNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("store.operation", operation)}
	if key != "" {
		attrs = append(attrs, attribute.String("store.namespace", keyNamespace(key)))
	}
	return s.tracer.Start(ctx, "store."+operation, trace.WithAttributes(attrs...))
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	// A missing key is an answer, not a failure.
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	ctx, span := s.startSpan(ctx, "Incr", key)
	start := time.Now()
	count, resetAt, err := s.inner.Incr(ctx, key, window)
	s.record(ctx, span, "Incr", start, err)
	return count, resetAt, err
}

func (s *InstrumentedStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, span := s.startSpan(ctx, "PutIfAbsent", key)
	start := time.Now()
	stored, err := s.inner.PutIfAbsent(ctx, key, value, ttl)
	span.SetAttributes(attribute.Bool("store.stored", stored))
	s.record(ctx, span, "PutIfAbsent", start, err)
	return stored, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (string, error) {
	ctx, span := s.startSpan(ctx, "Get", key)
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.record(ctx, span, "Get", start, err)
	return value, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := s.startSpan(ctx, "Set", key)
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.record(ctx, span, "Set", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping", "")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
