// Package redisstore keeps analysis records in Redis.
//
// Each record is a hash (latest fields plus the set-once initial score) and a
// list (score history). Writes run in one MULTI/EXEC block: HSETNX covers the
// create-only fields and RPUSH appends history, so concurrent first writes
// for a key cannot both create, and history follows commit order.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"resumelab/api/internal/fingerprint"
	"resumelab/api/internal/store"

	"github.com/redis/go-redis/v9"
)

const (
	fieldLatestScore    = "latest_score"
	fieldLatestAnalysis = "latest_analysis"
	fieldInitialScore   = "initial_score"
	fieldArtifactID     = "artifact_id"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
)

// Store implements analysis record storage using Redis
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New connects to redisURL and verifies the connection
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a store from an existing Redis client
func NewWithClient(client *redis.Client) *Store {
	return &Store{
		client: client,
		prefix: "analysis:",
		now:    time.Now,
	}
}

func (s *Store) recordKey(key fingerprint.Key) string {
	return s.prefix + key.String()
}

func (s *Store) historyKey(key fingerprint.Key) string {
	return s.prefix + key.String() + ":history"
}

// LookupAnalysis reads the hash and history in one transaction so both halves
// come from the same commit.
func (s *Store) LookupAnalysis(ctx context.Context, key fingerprint.Key) (store.AnalysisRecord, bool, error) {
	var (
		fields  *redis.MapStringStringCmd
		history *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.recordKey(key))
		history = pipe.LRange(ctx, s.historyKey(key), 0, -1)
		return nil
	})
	if err != nil {
		return store.AnalysisRecord{}, false, fmt.Errorf("%w: lookup analysis: %v", store.ErrUnavailable, err)
	}
	if len(fields.Val()) == 0 {
		return store.AnalysisRecord{}, false, nil
	}

	record, err := decodeRecord(key, fields.Val(), history.Val())
	if err != nil {
		return store.AnalysisRecord{}, false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return record, true, nil
}

// UpsertAnalysis writes and reads back the record atomically.
func (s *Store) UpsertAnalysis(ctx context.Context, in store.AnalysisUpsert) (store.AnalysisRecord, error) {
	now := s.now().UTC().Format(time.RFC3339Nano)
	recordKey := s.recordKey(in.Key)
	historyKey := s.historyKey(in.Key)

	analysis := in.Analysis
	if len(analysis) == 0 {
		analysis = json.RawMessage("null")
	}

	var (
		fields  *redis.MapStringStringCmd
		history *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, recordKey, fieldInitialScore, in.FallbackInitialScore)
		pipe.HSetNX(ctx, recordKey, fieldCreatedAt, now)
		pipe.HSet(ctx, recordKey,
			fieldLatestScore, in.Score,
			fieldLatestAnalysis, string(analysis),
			fieldArtifactID, in.ArtifactID,
			fieldUpdatedAt, now,
		)
		pipe.RPush(ctx, historyKey, in.Score)
		fields = pipe.HGetAll(ctx, recordKey)
		history = pipe.LRange(ctx, historyKey, 0, -1)
		return nil
	})
	if err != nil {
		return store.AnalysisRecord{}, fmt.Errorf("%w: upsert analysis: %v", store.ErrUnavailable, err)
	}

	record, err := decodeRecord(in.Key, fields.Val(), history.Val())
	if err != nil {
		return store.AnalysisRecord{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return record, nil
}

func decodeRecord(key fingerprint.Key, fields map[string]string, history []string) (store.AnalysisRecord, error) {
	record := store.AnalysisRecord{
		Key:            key,
		LatestAnalysis: json.RawMessage(fields[fieldLatestAnalysis]),
		ArtifactID:     fields[fieldArtifactID],
		ScoreHistory:   make([]int, 0, len(history)),
	}

	var err error
	if record.LatestScore, err = strconv.Atoi(fields[fieldLatestScore]); err != nil {
		return store.AnalysisRecord{}, fmt.Errorf("decode latest score: %w", err)
	}
	if record.InitialScore, err = strconv.Atoi(fields[fieldInitialScore]); err != nil {
		return store.AnalysisRecord{}, fmt.Errorf("decode initial score: %w", err)
	}
	for _, raw := range history {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return store.AnalysisRecord{}, fmt.Errorf("decode score history: %w", err)
		}
		record.ScoreHistory = append(record.ScoreHistory, score)
	}
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	return record, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping redis: %v", store.ErrUnavailable, err)
	}
	return nil
}
