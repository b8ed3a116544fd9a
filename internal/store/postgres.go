package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"resumelab/api/internal/fingerprint"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

const analysisColumns = `file_hash, text_hash, latest_score, latest_analysis, score_history, initial_score, artifact_id, created_at, updated_at`

func (s *PostgresStore) LookupAnalysis(ctx context.Context, key fingerprint.Key) (AnalysisRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE file_hash=$1 AND text_hash=$2
	`, key.File.String(), key.Text.String())

	record, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisRecord{}, false, nil
	}
	if err != nil {
		return AnalysisRecord{}, false, fmt.Errorf("%w: lookup analysis: %v", ErrUnavailable, err)
	}
	return record, true, nil
}

// UpsertAnalysis creates or extends the record in one statement. Postgres
// serialises conflicting inserts on the primary key, so concurrent first
// writes resolve to one insert and N-1 updates, and history order follows
// commit order.
func (s *PostgresStore) UpsertAnalysis(ctx context.Context, in AnalysisUpsert) (AnalysisRecord, error) {
	analysis := in.Analysis
	if len(analysis) == 0 {
		analysis = json.RawMessage("null")
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO analyses (file_hash, text_hash, latest_score, latest_analysis, score_history, initial_score, artifact_id)
		VALUES ($1, $2, $3, $4::jsonb, jsonb_build_array($3::int), $5, $6)
		ON CONFLICT (file_hash, text_hash) DO UPDATE SET
			latest_score = EXCLUDED.latest_score,
			latest_analysis = EXCLUDED.latest_analysis,
			artifact_id = EXCLUDED.artifact_id,
			score_history = analyses.score_history || jsonb_build_array(EXCLUDED.latest_score),
			updated_at = NOW()
		RETURNING `+analysisColumns+`
	`, in.Key.File.String(), in.Key.Text.String(), in.Score, string(analysis), in.FallbackInitialScore, in.ArtifactID)

	record, err := scanAnalysis(row)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("%w: upsert analysis: %v", ErrUnavailable, err)
	}
	return record, nil
}

func scanAnalysis(row *sql.Row) (AnalysisRecord, error) {
	var (
		record     AnalysisRecord
		fileHash   string
		textHash   string
		historyRaw []byte
		analysis   []byte
	)
	if err := row.Scan(
		&fileHash,
		&textHash,
		&record.LatestScore,
		&analysis,
		&historyRaw,
		&record.InitialScore,
		&record.ArtifactID,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return AnalysisRecord{}, err
	}

	key, err := fingerprint.ParseKey(fileHash, textHash)
	if err != nil {
		return AnalysisRecord{}, err
	}
	record.Key = key
	record.LatestAnalysis = json.RawMessage(analysis)
	if err := json.Unmarshal(historyRaw, &record.ScoreHistory); err != nil {
		return AnalysisRecord{}, fmt.Errorf("decode score history: %w", err)
	}
	return record, nil
}
