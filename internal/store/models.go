package store

import (
	"encoding/json"
	"errors"
	"time"

	"resumelab/api/internal/fingerprint"
)

// ErrUnavailable wraps every persistence-layer failure. After a failed
// upsert callers must not assume the record exists.
var ErrUnavailable = errors.New("store unavailable")

// AnalysisRecord is the cached evaluation for one (file, job text) key.
type AnalysisRecord struct {
	Key            fingerprint.Key
	LatestScore    int
	LatestAnalysis json.RawMessage
	ScoreHistory   []int
	InitialScore   int
	ArtifactID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AnalysisUpsert is one completed evaluation to record.
type AnalysisUpsert struct {
	Key      fingerprint.Key
	Score    int
	Analysis json.RawMessage
	// ArtifactID replaces the stored reference on every write.
	ArtifactID string
	// FallbackInitialScore is used only when the record is created.
	FallbackInitialScore int
}

// Clone copies r so callers cannot alias a store's internal slices.
func (r AnalysisRecord) Clone() AnalysisRecord {
	out := r
	out.ScoreHistory = append([]int(nil), r.ScoreHistory...)
	out.LatestAnalysis = append(json.RawMessage(nil), r.LatestAnalysis...)
	return out
}
