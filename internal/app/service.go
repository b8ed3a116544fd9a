package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"resumelab/api/internal/artifact"
	"resumelab/api/internal/collab"
	"resumelab/api/internal/document"
	"resumelab/api/internal/export"
	"resumelab/api/internal/fingerprint"
	"resumelab/api/internal/metrics"
	"resumelab/api/internal/mutation"
	"resumelab/api/internal/revision"
	"resumelab/api/internal/scoring"
	"resumelab/api/internal/store"

	"golang.org/x/sync/singleflight"
)

// AnalysisStore is implemented by every analysis record backend.
type AnalysisStore interface {
	LookupAnalysis(context.Context, fingerprint.Key) (store.AnalysisRecord, bool, error)
	UpsertAnalysis(context.Context, store.AnalysisUpsert) (store.AnalysisRecord, error)
	Ping(context.Context) error
}

// ArtifactStore keeps original uploads.
type ArtifactStore interface {
	Save(context.Context, string, io.Reader) (string, error)
	Open(context.Context, string) (io.ReadCloser, error)
}

type evaluator interface {
	Evaluate(context.Context, collab.EvaluateRequest) (scoring.Analysis, error)
}

type revisionService interface {
	EnsureBaseline(string, document.Document) error
	Record(string, document.Document, string) (revision.Commit, error)
	History(string, int) ([]revision.Commit, error)
	Document(string, string) (document.Document, error)
}

type renderFunc func(context.Context, document.Document, export.Format, string) (*export.Result, error)

// defaultFlightTimeout bounds a shared evaluation once it no longer follows
// any single caller's context.
const defaultFlightTimeout = 2 * time.Minute

type Service struct {
	store         AnalysisStore
	artifacts     ArtifactStore
	evaluator     evaluator
	revisions     revisionService
	render        renderFunc
	metrics       *metrics.Metrics
	inflight      singleflight.Group
	flightTimeout time.Duration
}

func New(analyses AnalysisStore, artifacts ArtifactStore, eval evaluator, revisions revisionService) *Service {
	return &Service{
		store:     analyses,
		artifacts: artifacts,
		evaluator: eval,
		revisions: revisions,
		render:    export.Render,

		flightTimeout: defaultFlightTimeout,
	}
}

// WithMetrics enables instrumentation.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithExportPage prints paged exports on sheet.
func (s *Service) WithExportPage(sheet export.Page) *Service {
	s.render = export.Renderer{Page: sheet}.Render
	return s
}

// WithFlightTimeout caps how long a shared evaluation may run.
func (s *Service) WithFlightTimeout(d time.Duration) *Service {
	if d > 0 {
		s.flightTimeout = d
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type AnalyzeInput struct {
	Filename      string
	File          []byte
	JobText       string
	PreviousScore *int
}

type AnalyzeResult struct {
	Key          fingerprint.Key
	ArtifactID   string
	Analysis     scoring.Analysis
	Cached       bool
	ScoreHistory []int
	InitialScore int
}

// Analyze returns the cached analysis for the upload and job text, or
// evaluates and records a new one.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeResult, error) {
	if strings.TrimSpace(in.JobText) == "" {
		return AnalyzeResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "job description text is required", nil)
	}
	if len(in.File) == 0 {
		return AnalyzeResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "resume file is required", nil)
	}

	key, err := fingerprint.NewKey(bytes.NewReader(in.File), in.JobText)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("fingerprint upload: %w", err)
	}

	if cached, ok := s.cached(ctx, key); ok {
		s.metrics.RecordAnalysis(metrics.ResultHit)
		return cached, nil
	}

	// Identical uploads racing on a miss share one evaluation. The flight is
	// detached from the caller that started it, so a disconnect only ends
	// that caller's wait.
	flight := s.inflight.DoChan(key.String(), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()
		if cached, ok := s.cached(flightCtx, key); ok {
			return cached, nil
		}
		return s.evaluate(flightCtx, key, in)
	})
	select {
	case <-ctx.Done():
		return AnalyzeResult{}, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return AnalyzeResult{}, res.Err
		}
		result := res.Val.(AnalyzeResult)
		result.ScoreHistory = append([]int(nil), result.ScoreHistory...)
		return result, nil
	}
}

func (s *Service) cached(ctx context.Context, key fingerprint.Key) (AnalyzeResult, bool) {
	record, found, err := s.store.LookupAnalysis(ctx, key)
	if err != nil {
		log.Printf("analyze: lookup %s failed, evaluating uncached: %v", key, err)
		return AnalyzeResult{}, false
	}
	if !found {
		return AnalyzeResult{}, false
	}
	analysis, err := scoring.Decode(record.LatestAnalysis)
	if err != nil {
		log.Printf("analyze: stored analysis for %s unreadable, re-evaluating: %v", key, err)
		return AnalyzeResult{}, false
	}
	return resultFromRecord(record, analysis, true), true
}

func (s *Service) evaluate(ctx context.Context, key fingerprint.Key, in AnalyzeInput) (AnalyzeResult, error) {
	started := time.Now()
	analysis, err := s.evaluator.Evaluate(ctx, collab.EvaluateRequest{
		DocumentText:  extractText(in.File),
		JobText:       in.JobText,
		PreviousScore: in.PreviousScore,
	})
	s.metrics.ObserveEvaluator(time.Since(started))
	if err != nil {
		return AnalyzeResult{}, err
	}
	score := analysis.Finalize()

	fresh := AnalyzeResult{Key: key, Analysis: analysis, ScoreHistory: []int{score}, InitialScore: score}
	if in.PreviousScore != nil {
		fresh.InitialScore = *in.PreviousScore
	}

	artifactID, err := s.artifacts.Save(ctx, in.Filename, bytes.NewReader(in.File))
	if err != nil {
		log.Printf("analyze: saving artifact for %s failed, result not cached: %v", key, err)
		s.metrics.RecordAnalysis(metrics.ResultUncached)
		return fresh, nil
	}
	fresh.ArtifactID = artifactID

	payload, err := json.Marshal(analysis)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("encode analysis: %w", err)
	}
	stored, err := s.store.UpsertAnalysis(ctx, store.AnalysisUpsert{
		Key:                  key,
		Score:                score,
		Analysis:             payload,
		ArtifactID:           artifactID,
		FallbackInitialScore: fresh.InitialScore,
	})
	if err != nil {
		log.Printf("analyze: recording %s failed, result not cached: %v", key, err)
		s.metrics.RecordAnalysis(metrics.ResultUncached)
		return fresh, nil
	}
	s.metrics.RecordAnalysis(metrics.ResultMiss)
	return resultFromRecord(stored, analysis, false), nil
}

func resultFromRecord(record store.AnalysisRecord, analysis scoring.Analysis, cached bool) AnalyzeResult {
	return AnalyzeResult{
		Key:          record.Key,
		ArtifactID:   record.ArtifactID,
		Analysis:     analysis,
		Cached:       cached,
		ScoreHistory: record.ScoreHistory,
		InitialScore: record.InitialScore,
	}
}

// extractText reads structured uploads as documents and everything else as
// plain text.
func extractText(data []byte) string {
	if doc, err := document.Decode(bytes.NewReader(data)); err == nil {
		return doc.Text()
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

// Record returns the stored analysis for a key given in hex.
func (s *Service) Record(ctx context.Context, fileHash, textHash string) (store.AnalysisRecord, error) {
	key, err := fingerprint.ParseKey(fileHash, textHash)
	if err != nil {
		return store.AnalysisRecord{}, domainError(http.StatusBadRequest, "INVALID_KEY", "file and text hashes must be 64 hex characters", nil)
	}
	record, found, err := s.store.LookupAnalysis(ctx, key)
	if err != nil {
		return store.AnalysisRecord{}, err
	}
	if !found {
		return store.AnalysisRecord{}, domainError(http.StatusNotFound, "NOT_FOUND", "analysis not found", nil)
	}
	return record, nil
}

type OptimizeInput struct {
	ArtifactID string
	Operations []mutation.Operation
	Proposal   *mutation.Proposal
	Format     export.Format
	Title      string
}

type OptimizeResult struct {
	Document document.Document
	Report   mutation.Report
	Revision revision.Commit
	Export   *export.Result
}

// Optimize applies edits to a stored document upload, records the result as
// a revision and renders it. Explicit operations run before proposal edits.
func (s *Service) Optimize(ctx context.Context, in OptimizeInput) (OptimizeResult, error) {
	if err := artifact.CheckID(in.ArtifactID); err != nil {
		return OptimizeResult{}, err
	}
	ops := append([]mutation.Operation(nil), in.Operations...)
	if in.Proposal != nil {
		ops = append(ops, in.Proposal.Operations()...)
	}
	if len(ops) == 0 {
		return OptimizeResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "at least one edit operation is required", nil)
	}
	format := in.Format
	if format == "" {
		format = export.FormatJSON
	}

	original, err := s.loadDocument(ctx, in.ArtifactID)
	if err != nil {
		return OptimizeResult{}, err
	}

	updated, report := mutation.ApplyBatch(original, ops)
	s.metrics.RecordReport(report)
	for _, outcome := range report.Skipped() {
		log.Printf("optimize: %s skipped operation %d (%s): %s", in.ArtifactID, outcome.Index, outcome.Kind, outcome.Reason)
	}

	if err := s.revisions.EnsureBaseline(in.ArtifactID, original); err != nil {
		return OptimizeResult{}, fmt.Errorf("record baseline: %w", err)
	}
	message := fmt.Sprintf("Apply %d of %d edits", report.Applied(), len(report.Outcomes))
	commit, err := s.revisions.Record(in.ArtifactID, updated, message)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("record revision: %w", err)
	}

	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = "optimized resume"
	}
	rendered, err := s.render(ctx, updated, format, title)
	if err != nil {
		return OptimizeResult{}, err
	}

	return OptimizeResult{Document: updated, Report: report, Revision: commit, Export: rendered}, nil
}

func (s *Service) loadDocument(ctx context.Context, artifactID string) (document.Document, error) {
	rc, err := s.artifacts.Open(ctx, artifactID)
	if err != nil {
		return document.Document{}, err
	}
	defer rc.Close()

	doc, err := document.Decode(rc)
	if err != nil {
		return document.Document{}, domainError(http.StatusUnprocessableEntity, "UNSUPPORTED_DOCUMENT", "artifact is not a structured document", nil)
	}
	return doc, nil
}

// Revisions lists the optimisation history of an artifact, newest first.
func (s *Service) Revisions(ctx context.Context, artifactID string, limit int) ([]revision.Commit, error) {
	if err := artifact.CheckID(artifactID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commits, err := s.revisions.History(artifactID, limit)
	if errors.Is(err, revision.ErrNoHistory) {
		return []revision.Commit{}, nil
	}
	return commits, err
}

var revisionHashPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)

// RevisionExport renders the document recorded at one revision of an artifact.
func (s *Service) RevisionExport(ctx context.Context, artifactID, hash string, format export.Format, title string) (*export.Result, error) {
	if err := artifact.CheckID(artifactID); err != nil {
		return nil, err
	}
	if !revisionHashPattern.MatchString(hash) {
		return nil, domainError(http.StatusBadRequest, "INVALID_REVISION", "revision must be a hexadecimal commit hash", map[string]any{"revision": hash})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.revisions.Document(artifactID, hash)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = export.FormatJSON
	}
	if strings.TrimSpace(title) == "" {
		title = "resume revision " + hash
	}
	return s.render(ctx, doc, format, title)
}
