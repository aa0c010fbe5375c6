package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.Int("floor", 3),
		attribute.String("room_id", "456"),
		attribute.String("outcome", "applied"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("floor"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestRecordApplyAndAssignments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "dormitory-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordApply(ctx, 3, "applied", 20*time.Millisecond)
	m.RecordAssignmentChanges(ctx, 3, 2, 1)
	m.RecordPreview(ctx, 3, map[string]int{"capacity exceeded": 1, "ignored": 0})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), totals["dormitory_allocation_applies_total"])
	assert.Equal(t, int64(3), totals["dormitory_assignment_changes_total"])
	assert.Equal(t, int64(1), totals["dormitory_allocation_previews_total"])
	assert.Equal(t, int64(1), totals["dormitory_allocation_preview_warnings_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordApply(context.Background(), 1, "failed", 0)
	m.RecordAssignmentChanges(context.Background(), 1, 1, 1)
	m.RecordPreview(context.Background(), 1, nil)
}
