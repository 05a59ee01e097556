package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a business metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("cecsync_test")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "cecsync_test")
	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestBusinessMetrics_RecordOperation(t *testing.T) {
	provider, err := NewProvider("cecsync_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "cecsync_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "webhook", "ingest", "queued")
	bm.RecordOperation(ctx, "webhook", "ingest", "queued")
	bm.RecordOperation(ctx, "webhook", "ingest", "rejected")
	bm.RecordOperation(ctx, "action", "contentitem_deleted", "retry")

	output := scrape(t, provider)
	assertBizMetricLine(t, output, `cecsync_test_operations_total`,
		`domain="webhook".*operation="ingest".*status="queued"`, `2`)
	assertBizMetricLine(t, output, `cecsync_test_operations_total`,
		`domain="webhook".*operation="ingest".*status="rejected"`, `1`)
	assertBizMetricLine(t, output, `cecsync_test_operations_total`,
		`domain="action".*operation="contentitem_deleted".*status="retry"`, `1`)
}

func TestBusinessMetrics_RecordDuration(t *testing.T) {
	provider, err := NewProvider("cecsync_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "cecsync_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordDuration(ctx, "dispatcher", "contentitem_created", 1500*time.Millisecond, "success")
	bm.RecordDuration(ctx, "dispatcher", "contentitem_created", 500*time.Millisecond, "success")
	bm.RecordDuration(ctx, "dispatcher", "channel_assetpublished", 100*time.Millisecond, "failure")

	output := scrape(t, provider)
	assertBizMetricLine(t, output, `cecsync_test_operation_duration_seconds_count`,
		`domain="dispatcher".*operation="contentitem_created".*status="success"`, `2`)
	assertBizMetricLine(t, output, `cecsync_test_operation_duration_seconds_sum`,
		`domain="dispatcher".*operation="contentitem_created".*status="success"`, `2`)
	assertBizMetricLine(t, output, `cecsync_test_operation_duration_seconds_count`,
		`domain="dispatcher".*operation="channel_assetpublished".*status="failure"`, `1`)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()
	assert.IsType(t, &NoOpBusinessMetrics{}, noOpMetrics)

	assert.NotPanics(t, func() {
		noOpMetrics.RecordOperation(context.Background(), "webhook", "ingest", "queued")
		noOpMetrics.RecordDuration(context.Background(), "action", "contentitem_created", time.Second, "success")
	})
}
