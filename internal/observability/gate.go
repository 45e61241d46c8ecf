package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics counts gate decisions and records proof scores.
type GateMetrics struct {
	decisions metric.Int64Counter
	scores    metric.Int64Histogram
}

func newGateMetrics(meter metric.Meter) (*GateMetrics, error) {
	decisions, err := meter.Int64Counter(
		"gate.decisions",
		metric.WithDescription("Gate outcomes by kind"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	scores, err := meter.Int64Histogram(
		"gate.proof.score",
		metric.WithDescription("Proof scores of evaluated submissions"),
		metric.WithUnit("{point}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{decisions: decisions, scores: scores}, nil
}

// RecordDecision counts one outcome.
func (m *GateMetrics) RecordDecision(ctx context.Context, outcome string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordScore records the score of one evaluated submission.
func (m *GateMetrics) RecordScore(ctx context.Context, score int, fallback bool) {
	m.scores.Record(ctx, int64(score), metric.WithAttributes(attribute.Bool("fallback", fallback)))
}
