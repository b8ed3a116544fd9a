package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumelab/api/internal/mutation"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAnalysis(t *testing.T) {
	m := New()
	m.RecordAnalysis(ResultHit)
	m.RecordAnalysis(ResultHit)
	m.RecordAnalysis(ResultMiss)

	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(ResultHit)); got != 2 {
		t.Errorf("hits = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(ResultMiss)); got != 1 {
		t.Errorf("misses = %f, want 1", got)
	}
}

func TestRecordReport(t *testing.T) {
	m := New()
	m.RecordReport(mutation.Report{Outcomes: []mutation.Outcome{
		{Kind: mutation.KindAppendToList, Applied: true},
		{Kind: mutation.KindFindAndReplace, Applied: false, Reason: mutation.ReasonAnchorNotFound},
		{Kind: mutation.KindFindAndReplace, Applied: true},
	}})

	if got := testutil.ToFloat64(m.EditsTotal.WithLabelValues("find_and_replace", "skipped")); got != 1 {
		t.Errorf("skipped replaces = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.EditsTotal.WithLabelValues("append_to_list", "applied")); got != 1 {
		t.Errorf("applied appends = %f, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordAnalysis(ResultHit)
	m.ObserveEvaluator(time.Second)
	m.RecordReport(mutation.Report{Outcomes: []mutation.Outcome{{Kind: mutation.KindAppendToList}}})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveEvaluator(1500 * time.Millisecond)
	m.RecordAnalysis(ResultUncached)
	m.RecordReport(mutation.Report{Outcomes: []mutation.Outcome{{Kind: mutation.KindAppendToList, Applied: true}}})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{"resumelab_evaluator_duration_seconds_count 1", `resumelab_analyses_total{result="uncached"} 1`, `resumelab_edits_total{kind="append_to_list",outcome="applied"} 1`, "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
