package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkallio/vigil-platform/internal/behavior/types"
	"github.com/pkallio/vigil-platform/pkg/postgres"
)

// Archive persists behavior results to Postgres for long-term analysis,
// beyond the 24-hour Redis horizon
type Archive struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewArchive creates a Postgres-backed behavior archive
func NewArchive(db postgres.Client, logger *slog.Logger) *Archive {
	return &Archive{db: db, logger: logger}
}

// EnsureSchema creates the archive table if it does not exist yet
func (a *Archive) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS behavior_results (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			behavior TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			duration_sec INTEGER NOT NULL,
			ongoing BOOLEAN NOT NULL,
			detected_patterns JSONB,
			contributing_factors JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_behavior_results_timestamp
			ON behavior_results (timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_behavior_results_behavior
			ON behavior_results (behavior, timestamp DESC)`

	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create behavior archive schema: %w", err)
	}
	return nil
}

// Insert archives one behavior result
func (a *Archive) Insert(ctx context.Context, result types.Result) error {
	patternsJSON, err := json.Marshal(result.DetectedPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal detected patterns: %w", err)
	}
	factorsJSON, err := json.Marshal(result.ContributingFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal contributing factors: %w", err)
	}

	const query = `
		INSERT INTO behavior_results
			(id, timestamp, start_time, behavior, confidence, duration_sec, ongoing,
			 detected_patterns, contributing_factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err = a.db.Exec(ctx, query,
		result.ID, result.Timestamp, result.StartTime,
		string(result.Behavior), result.Confidence, result.DurationSec, result.Ongoing,
		patternsJSON, factorsJSON)
	if err != nil {
		return fmt.Errorf("failed to archive behavior result: %w", err)
	}

	a.logger.Debug("Behavior result archived", "id", result.ID)
	return nil
}

// Recent returns up to limit archived results, newest first
func (a *Archive) Recent(ctx context.Context, limit int) ([]types.Result, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, timestamp, start_time, behavior, confidence, duration_sec, ongoing,
		       detected_patterns, contributing_factors
		FROM behavior_results
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := a.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior archive: %w", err)
	}
	defer rows.Close()

	var results []types.Result
	for rows.Next() {
		var result types.Result
		var behavior string
		var patternsJSON, factorsJSON []byte

		if err := rows.Scan(&result.ID, &result.Timestamp, &result.StartTime,
			&behavior, &result.Confidence, &result.DurationSec, &result.Ongoing,
			&patternsJSON, &factorsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan archived result: %w", err)
		}
		result.Behavior = types.BehaviorType(behavior)

		if len(patternsJSON) > 0 {
			if err := json.Unmarshal(patternsJSON, &result.DetectedPatterns); err != nil {
				a.logger.Warn("Malformed detected patterns in archive", "id", result.ID, "error", err)
			}
		}
		if len(factorsJSON) > 0 {
			if err := json.Unmarshal(factorsJSON, &result.ContributingFactors); err != nil {
				a.logger.Warn("Malformed contributing factors in archive", "id", result.ID, "error", err)
			}
		}

		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavior archive: %w", err)
	}
	return results, nil
}
