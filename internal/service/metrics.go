package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dukerupert/frisfocus/internal/service"

type metrics struct {
	toggles      metric.Int64Counter
	competitions metric.Int64Counter
	awards       metric.Int64Counter
	badges       metric.Int64Counter
}

// newMetrics registers counters on the global meter provider, which is a
// no-op unless the embedding process installs an SDK.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}
	m.toggles, _ = meter.Int64Counter("frisfocus.completions.toggled",
		metric.WithDescription("Task completions toggled"))
	m.competitions, _ = meter.Int64Counter("frisfocus.competitions.completed",
		metric.WithDescription("Competitions that reached a result"))
	m.awards, _ = meter.Int64Counter("frisfocus.awards.won",
		metric.WithDescription("Award instances won"))
	m.badges, _ = meter.Int64Counter("frisfocus.badges.earned",
		metric.WithDescription("Badges earned"))
	return m
}

func (m *metrics) toggled(ctx context.Context, completed bool) {
	m.toggles.Add(ctx, 1, metric.WithAttributes(attribute.Bool("completed", completed)))
}

func (m *metrics) competitionCompleted(ctx context.Context, kind string) {
	m.competitions.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *metrics) awardWon(ctx context.Context, kind string) {
	m.awards.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *metrics) badgeEarned(ctx context.Context) {
	m.badges.Add(ctx, 1)
}
