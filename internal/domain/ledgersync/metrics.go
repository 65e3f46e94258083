package ledgersync

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncTracer      = otel.Tracer("ledgersync/sync")
	syncMeter       = otel.Meter("ledgersync/sync")
	passDuration, _ = syncMeter.Float64Histogram("ledgersync.pass.duration", metric.WithDescription("Reconciliation pass duration in seconds"), metric.WithUnit("s"))
	passTotal, _    = syncMeter.Int64Counter("ledgersync.pass.total", metric.WithDescription("Reconciliation passes by status"))
	rowsApplied, _  = syncMeter.Int64Counter("ledgersync.rows.applied", metric.WithDescription("Rows affected by phase"))
	rowsSkipped, _  = syncMeter.Int64Counter("ledgersync.rows.skipped", metric.WithDescription("Rows skipped by phase"))
	pagesFetched, _ = syncMeter.Int64Counter("ledgersync.pages.fetched", metric.WithDescription("Delta feed pages fetched"))
)
