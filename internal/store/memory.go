package store

import (
	"context"
	"sync"
	"time"

	"resumelab/api/internal/fingerprint"
)

// MemoryStore keeps analysis records in process. Each key has its own lock
// so writers to different keys never contend.
type MemoryStore struct {
	mu      sync.Mutex
	records map[fingerprint.Key]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	mu     sync.Mutex
	record *AnalysisRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[fingerprint.Key]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) entry(key fingerprint.Key) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[key]
	if !ok {
		e = &memoryEntry{}
		s.records[key] = e
	}
	return e
}

func (s *MemoryStore) LookupAnalysis(ctx context.Context, key fingerprint.Key) (AnalysisRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRecord{}, false, err
	}
	s.mu.Lock()
	e, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		return AnalysisRecord{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return AnalysisRecord{}, false, nil
	}
	return e.record.Clone(), true, nil
}

func (s *MemoryStore) UpsertAnalysis(ctx context.Context, in AnalysisUpsert) (AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRecord{}, err
	}
	e := s.entry(in.Key)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if e.record == nil {
		e.record = &AnalysisRecord{
			Key:          in.Key,
			InitialScore: in.FallbackInitialScore,
			CreatedAt:    now,
		}
	}
	e.record.LatestScore = in.Score
	e.record.LatestAnalysis = append([]byte(nil), in.Analysis...)
	e.record.ArtifactID = in.ArtifactID
	e.record.ScoreHistory = append(e.record.ScoreHistory, in.Score)
	e.record.UpdatedAt = now
	return e.record.Clone(), nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	entries := make([]*memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.record != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
