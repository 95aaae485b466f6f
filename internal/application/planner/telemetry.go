package planner

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	rolledOver     metric.Int64Counter
	migrated       metric.Int64Counter
	forked         metric.Int64Counter
	materialized   metric.Int64Counter
	remoteFailures metric.Int64Counter
}

func newMetrics(meter metric.Meter, logger *slog.Logger) *metrics {
	counter := func(name, description, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
		if err != nil {
			logger.Warn("failed to create counter, using no-op", "name", name, "error", err)
			c, _ = noop.Meter{}.Int64Counter(name)
		}
		return c
	}

	return &metrics{
		rolledOver:     counter("weekplan.tasks.rolled_over", "Tasks carried forward by rollover", "{task}"),
		migrated:       counter("weekplan.tasks.migrated", "Tasks moved to the calendar week by migration", "{task}"),
		forked:         counter("weekplan.tasks.forked", "In-progress tasks forked by migration", "{task}"),
		materialized:   counter("weekplan.recurring.materialized", "Tasks materialized from recurring templates", "{task}"),
		remoteFailures: counter("weekplan.remote.failures", "Storage writes that did not commit", "{write}"),
	}
}
