package metrics

import (
	"strings"
	"testing"
)

func TestRenderExposesPipelineCounters(t *testing.T) {
	before := analysisStartedTotal.Load()

	IncAnalysisStarted()
	IncAnalysisCompleted()
	IncAnalysisFailed()
	ObserveAnalysisDurationMs(1500)
	ObserveAnalysisDurationMs(-5) // clamped to zero

	out := Render()
	for _, metric := range []string{
		"analysis_started_total",
		"analysis_completed_total",
		"analysis_failed_total",
		"analysis_duration_ms_bucket{le=\"+Inf\"}",
		"analysis_duration_ms_sum",
		"analysis_duration_ms_count",
	} {
		if !strings.Contains(out, metric) {
			t.Fatalf("render output missing %s:\n%s", metric, out)
		}
	}

	if analysisStartedTotal.Load() != before+1 {
		t.Fatalf("expected started counter to advance by 1")
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(5000)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 2 {
		t.Fatalf("unexpected per-bucket counts %v", snap.counts)
	}
	if snap.sum != 5055 {
		t.Fatalf("expected sum 5055, got %v", snap.sum)
	}
}
