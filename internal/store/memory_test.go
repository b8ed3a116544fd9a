package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"resumelab/api/internal/fingerprint"
)

func testKey(name string) fingerprint.Key {
	return fingerprint.Key{File: fingerprint.Text("file:" + name), Text: fingerprint.Text("jd:" + name)}
}

func TestMemoryStoreUpsertSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := testKey("resume")

	if _, found, err := s.LookupAnalysis(ctx, key); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	first, err := s.UpsertAnalysis(ctx, AnalysisUpsert{Key: key, Score: 70, Analysis: json.RawMessage(`{"a":1}`), ArtifactID: "F1", FallbackInitialScore: 70})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.InitialScore != 70 || first.LatestScore != 70 || len(first.ScoreHistory) != 1 || first.ScoreHistory[0] != 70 {
		t.Fatalf("first record = %+v", first)
	}

	second, err := s.UpsertAnalysis(ctx, AnalysisUpsert{Key: key, Score: 85, Analysis: json.RawMessage(`{"a":2}`), ArtifactID: "F2", FallbackInitialScore: 999})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.InitialScore != 70 {
		t.Fatalf("initial score rewritten to %d", second.InitialScore)
	}
	if second.LatestScore != 85 || second.ArtifactID != "F2" || string(second.LatestAnalysis) != `{"a":2}` {
		t.Fatalf("latest fields not replaced: %+v", second)
	}
	if len(second.ScoreHistory) != 2 || second.ScoreHistory[0] != 70 || second.ScoreHistory[1] != 85 {
		t.Fatalf("history = %v, want [70 85]", second.ScoreHistory)
	}

	found, ok, err := s.LookupAnalysis(ctx, key)
	if err != nil || !ok {
		t.Fatalf("lookup after upsert: found=%v err=%v", ok, err)
	}
	if found.LatestScore != 85 || found.CreatedAt.IsZero() || found.UpdatedAt.Before(found.CreatedAt) {
		t.Fatalf("lookup record = %+v", found)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := testKey("copy")
	record, _ := s.UpsertAnalysis(ctx, AnalysisUpsert{Key: key, Score: 50, FallbackInitialScore: 50})
	record.ScoreHistory[0] = 1

	again, _, _ := s.LookupAnalysis(ctx, key)
	if again.ScoreHistory[0] != 50 {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestMemoryStoreConcurrentFirstWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := testKey("race")
	const writers = 64

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			if _, err := s.UpsertAnalysis(ctx, AnalysisUpsert{Key: key, Score: score, FallbackInitialScore: score}); err != nil {
				t.Errorf("upsert %d: %v", score, err)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Fatalf("records = %d, want 1", s.Len())
	}
	record, _, _ := s.LookupAnalysis(ctx, key)
	if len(record.ScoreHistory) != writers {
		t.Fatalf("history length = %d, want %d", len(record.ScoreHistory), writers)
	}
	if record.InitialScore != record.ScoreHistory[0] {
		t.Fatalf("initial score %d does not match the first committed score %d", record.InitialScore, record.ScoreHistory[0])
	}
	if record.LatestScore != record.ScoreHistory[writers-1] {
		t.Fatalf("latest score %d is not the last committed score", record.LatestScore)
	}

	sorted := append([]int(nil), record.ScoreHistory...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("history lost or duplicated entries: %v", record.ScoreHistory)
		}
	}
}

func TestMemoryStoreKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := testKey("a")
	b := fingerprint.Key{File: a.File, Text: fingerprint.Text("another job")}

	_, _ = s.UpsertAnalysis(ctx, AnalysisUpsert{Key: a, Score: 10, FallbackInitialScore: 10})
	_, _ = s.UpsertAnalysis(ctx, AnalysisUpsert{Key: b, Score: 20, FallbackInitialScore: 20})

	ra, _, _ := s.LookupAnalysis(ctx, a)
	rb, _, _ := s.LookupAnalysis(ctx, b)
	if ra.LatestScore != 10 || rb.LatestScore != 20 || s.Len() != 2 {
		t.Fatalf("keys sharing a file hash collided: %+v %+v", ra, rb)
	}
}
