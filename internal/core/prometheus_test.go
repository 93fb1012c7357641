package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("build recorder: %v", err)
	}

	ctx := context.Background()
	rec.Observe(ctx, "start_process", true, 10*time.Millisecond)
	rec.Observe(ctx, "start_process", true, 20*time.Millisecond)
	rec.Observe(ctx, "start_process", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	success := testutil.ToFloat64(rec.results.WithLabelValues("start_process", "success"))
	if success != 2 {
		t.Fatalf("expected 2 successes, got %v", success)
	}
	failure := testutil.ToFloat64(rec.results.WithLabelValues("start_process", "error"))
	if failure != 1 {
		t.Fatalf("expected 1 error, got %v", failure)
	}
}

func TestPrometheusRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
