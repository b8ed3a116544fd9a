// Package collab talks to the external service that scores a résumé
// against a job description.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"resumelab/api/internal/scoring"
)

// ErrEvaluator indicates the evaluator answered with an unusable response.
var ErrEvaluator = errors.New("evaluator failed")

const maxErrorBody = 512

// EvaluateRequest is the evaluator's input.
type EvaluateRequest struct {
	DocumentText  string `json:"documentText"`
	JobText       string `json:"jobText"`
	PreviousScore *int   `json:"previousScore,omitempty"`
}

// Evaluator posts documents to an HTTP scoring endpoint.
type Evaluator struct {
	url    string
	client *http.Client
}

func NewEvaluator(url string, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return NewEvaluatorWithClient(url, &http.Client{Timeout: timeout, Transport: transport})
}

func NewEvaluatorWithClient(url string, client *http.Client) *Evaluator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Evaluator{url: url, client: client}
}

// Evaluate returns the evaluator's analysis. The overall score it reports is
// kept as-is; callers recompute it with Finalize.
func (e *Evaluator) Evaluate(ctx context.Context, in EvaluateRequest) (scoring.Analysis, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("encode evaluate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("build evaluate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("%w: %v", ErrEvaluator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return scoring.Analysis{}, fmt.Errorf("%w: status %d: %s", ErrEvaluator, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("%w: read response: %v", ErrEvaluator, err)
	}
	analysis, err := scoring.Decode(payload)
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("%w: %v", ErrEvaluator, err)
	}
	return analysis, nil
}
