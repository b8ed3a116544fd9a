package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const analysisJSON = `{
  "overall_score": "81.6",
  "summary": "Solid match",
  "analysis_breakdown": {
    "tailoring": {"score": 80, "feedback": "ok", "details": [{"criterion": "keywords", "passed": true, "comment": ""}]},
    "content": {"score": 70},
    "format": {"score": 90},
    "sections": {"score": 60},
    "style": {"score": 85}
  }
}`

func TestEvaluatePostsRequest(t *testing.T) {
	var got EvaluateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(analysisJSON))
	}))
	defer srv.Close()

	previous := 70
	analysis, err := NewEvaluator(srv.URL, time.Second).Evaluate(context.Background(), EvaluateRequest{
		DocumentText:  "resume",
		JobText:       "job",
		PreviousScore: &previous,
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.DocumentText != "resume" || got.JobText != "job" || got.PreviousScore == nil || *got.PreviousScore != 70 {
		t.Fatalf("request = %+v", got)
	}
	if analysis.OverallScore != 82 || analysis.Summary != "Solid match" {
		t.Fatalf("analysis = %+v", analysis)
	}
	if analysis.Breakdown.Tailoring == nil || len(analysis.Breakdown.Tailoring.Details) != 1 {
		t.Fatalf("tailoring = %+v", analysis.Breakdown.Tailoring)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusBadGateway, `upstream down`},
		{"not json", http.StatusOK, `<html>`},
		{"no categories", http.StatusOK, `{"overall_score": 50, "analysis_breakdown": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			_, err := NewEvaluator(srv.URL, time.Second).Evaluate(context.Background(), EvaluateRequest{JobText: "job"})
			if !errors.Is(err, ErrEvaluator) {
				t.Fatalf("expected ErrEvaluator, got %v", err)
			}
		})
	}
}

func TestEvaluateHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewEvaluator(srv.URL, 5*time.Second).Evaluate(ctx, EvaluateRequest{}); !errors.Is(err, ErrEvaluator) {
		t.Fatalf("expected ErrEvaluator on cancellation, got %v", err)
	}
}
