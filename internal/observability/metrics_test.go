package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/healthz", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/sql", 200, 0.050)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/sql", 401, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/sql", 502, 0.005)
}

func TestRecordSubmissionMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordSubmission(ctx, "", 0.12)
	metrics.RecordSubmission(ctx, "remote_unavailable", 10.0)
	metrics.RecordSubmission(ctx, "remote_rejected", 0.3)
	metrics.RecordCacheHit(ctx)
	metrics.RecordCacheMiss(ctx)
	metrics.RecordLaunch(ctx)
}

func TestRecordNotifierMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordNotifierDelivered(ctx, 0.05)
	metrics.RecordNotifierFailed(ctx)
	metrics.RecordNotifierDropped(ctx)
	metrics.RecordNotifierRequeued(ctx)
	metrics.RecordNotifierQueueSize(ctx, 3)
}
