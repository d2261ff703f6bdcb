package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkallio/vigil-platform/internal/behavior/types"
	"github.com/pkallio/vigil-platform/internal/fusion"
	"github.com/pkallio/vigil-platform/pkg/redis"
)

const (
	stateTTL        = 24 * time.Hour
	historyCapacity = 100
)

// Storage keeps the hot behavior state in Redis: the latest result, a bounded
// result history and the current fused activity snapshot
type Storage struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewStorage creates a Redis-backed behavior state store
func NewStorage(client redis.Client, logger *slog.Logger) *Storage {
	return &Storage{redis: client, logger: logger}
}

// StoreResult writes the result as the latest state and prepends it to the
// capped history list
func (s *Storage) StoreResult(ctx context.Context, result types.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior result: %w", err)
	}

	if err := s.redis.Set(ctx, redis.BehaviorLatestKey(), data, stateTTL); err != nil {
		return fmt.Errorf("failed to store latest behavior: %w", err)
	}

	historyKey := redis.BehaviorHistoryKey()
	if err := s.redis.LPush(ctx, historyKey, data); err != nil {
		return fmt.Errorf("failed to push behavior history: %w", err)
	}
	if err := s.redis.LTrim(ctx, historyKey, 0, historyCapacity-1); err != nil {
		return fmt.Errorf("failed to trim behavior history: %w", err)
	}
	if err := s.redis.Expire(ctx, historyKey, stateTTL); err != nil {
		return fmt.Errorf("failed to expire behavior history: %w", err)
	}

	s.logger.Debug("Behavior result stored", "id", result.ID, "behavior", result.Behavior)
	return nil
}

// StoreActivity writes the latest fused activity snapshot
func (s *Storage) StoreActivity(ctx context.Context, snapshot fusion.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal activity snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, redis.ActivityStateKey(), data, stateTTL); err != nil {
		return fmt.Errorf("failed to store activity state: %w", err)
	}
	return nil
}

// LatestResult reads back the most recent behavior result
func (s *Storage) LatestResult(ctx context.Context) (types.Result, error) {
	data, err := s.redis.Get(ctx, redis.BehaviorLatestKey())
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to get latest behavior: %w", err)
	}

	var result types.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return types.Result{}, fmt.Errorf("failed to unmarshal behavior result: %w", err)
	}
	return result, nil
}

// ResultHistory reads up to limit results from the history list, newest first
func (s *Storage) ResultHistory(ctx context.Context, limit int) ([]types.Result, error) {
	if limit <= 0 || limit > historyCapacity {
		limit = historyCapacity
	}

	entries, err := s.redis.LRange(ctx, redis.BehaviorHistoryKey(), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read behavior history: %w", err)
	}

	results := make([]types.Result, 0, len(entries))
	for _, entry := range entries {
		var result types.Result
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			s.logger.Warn("Skipping malformed history entry", "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
