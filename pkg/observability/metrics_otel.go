package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics records import job metrics through the OpenTelemetry meter.
// The batch job has no scrape endpoint, so it pushes over OTLP instead of
// exposing Prometheus collectors.
type OTelMetrics struct {
	importRows         metric.Int64Counter
	importDuration     metric.Float64Histogram
	attachmentFailures metric.Int64Counter
}

// NewOTelMetrics creates the instruments on provider, or on the global
// provider when nil
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("github.com/platinummonkey/sims")

	m := &OTelMetrics{}
	var err error

	m.importRows, err = meter.Int64Counter(
		"sims.import.rows",
		metric.WithDescription("Spreadsheet rows processed by the import job"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create import rows counter: %w", err)
	}

	m.importDuration, err = meter.Float64Histogram(
		"sims.import.duration",
		metric.WithDescription("Import stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create import duration histogram: %w", err)
	}

	m.attachmentFailures, err = meter.Int64Counter(
		"sims.import.attachment_failures",
		metric.WithDescription("Attachments that could not be copied to object storage"),
		metric.WithUnit("{attachment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment failures counter: %w", err)
	}

	return m, nil
}

// RecordImportRows adds n rows with the given outcome
func (m *OTelMetrics) RecordImportRows(ctx context.Context, sheetType, stage, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.importRows.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("sheet_type", sheetType),
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// RecordImportDuration observes how long a stage ran
func (m *OTelMetrics) RecordImportDuration(ctx context.Context, sheetType, stage string, d time.Duration) {
	m.importDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("sheet_type", sheetType),
		attribute.String("stage", stage),
	))
}

// RecordAttachmentFailure counts one attachment that was not copied
func (m *OTelMetrics) RecordAttachmentFailure(ctx context.Context, sheetType string) {
	m.attachmentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sheet_type", sheetType)))
}
