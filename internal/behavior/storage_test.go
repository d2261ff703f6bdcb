package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
	"github.com/pkallio/vigil-platform/internal/fusion"
	"github.com/pkallio/vigil-platform/pkg/redis"
)

// fakeRedis is an in-memory stand-in for the Redis client
type fakeRedis struct {
	strings map[string]string
	lists   map[string][]string
	ttls    map[string]time.Duration
	failSet bool
	pingErr error
	closed  bool
}

var _ redis.Client = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.failSet {
		return fmt.Errorf("connection refused")
	}
	f.strings[key] = fmt.Sprintf("%s", value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := f.strings[key]
	if !ok {
		return "", fmt.Errorf("key %s does not exist", key)
	}
	return v, nil
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...interface{}) error {
	for _, v := range values {
		f.lists[key] = append([]string{fmt.Sprintf("%s", v)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) LTrim(_ context.Context, key string, start, stop int64) error {
	list := f.lists[key]
	if int64(len(list)) > stop+1 {
		f.lists[key] = list[start : stop+1]
	}
	return nil
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	list := f.lists[key]
	if start >= int64(len(list)) {
		return nil, nil
	}
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	return list[start : stop+1], nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func sampleResult(id string) types.Result {
	return types.Result{
		ID:         id,
		Timestamp:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		StartTime:  time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
		Behavior:   types.EatingPattern,
		Confidence: 0.82,
		DetectedPatterns: map[string]float64{
			"lunch": 0.82,
		},
		DurationSec: 3600,
	}
}

func TestStoreResult(t *testing.T) {
	fake := newFakeRedis()
	storage := NewStorage(fake, slog.Default())
	ctx := context.Background()

	require.NoError(t, storage.StoreResult(ctx, sampleResult("r1")))

	var stored types.Result
	require.NoError(t, json.Unmarshal([]byte(fake.strings[redis.BehaviorLatestKey()]), &stored))
	assert.Equal(t, "r1", stored.ID)
	assert.Equal(t, types.EatingPattern, stored.Behavior)

	assert.Len(t, fake.lists[redis.BehaviorHistoryKey()], 1)
	assert.Equal(t, stateTTL, fake.ttls[redis.BehaviorLatestKey()])
	assert.Equal(t, stateTTL, fake.ttls[redis.BehaviorHistoryKey()])
}

func TestStoreResultRedisDown(t *testing.T) {
	fake := newFakeRedis()
	fake.failSet = true
	storage := NewStorage(fake, slog.Default())

	err := storage.StoreResult(context.Background(), sampleResult("r1"))
	assert.Error(t, err)
}

func TestLatestResultRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	storage := NewStorage(fake, slog.Default())
	ctx := context.Background()

	require.NoError(t, storage.StoreResult(ctx, sampleResult("r1")))
	require.NoError(t, storage.StoreResult(ctx, sampleResult("r2")))

	latest, err := storage.LatestResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)
}

func TestLatestResultMissing(t *testing.T) {
	storage := NewStorage(newFakeRedis(), slog.Default())

	_, err := storage.LatestResult(context.Background())
	assert.Error(t, err)
}

func TestResultHistoryNewestFirst(t *testing.T) {
	fake := newFakeRedis()
	storage := NewStorage(fake, slog.Default())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, storage.StoreResult(ctx, sampleResult(fmt.Sprintf("r%d", i))))
	}

	history, err := storage.ResultHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r3", history[0].ID)
	assert.Equal(t, "r2", history[1].ID)
}

func TestResultHistorySkipsMalformed(t *testing.T) {
	fake := newFakeRedis()
	storage := NewStorage(fake, slog.Default())
	ctx := context.Background()

	require.NoError(t, storage.StoreResult(ctx, sampleResult("r1")))
	require.NoError(t, fake.LPush(ctx, redis.BehaviorHistoryKey(), "{broken"))

	history, err := storage.ResultHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "r1", history[0].ID)
}

func TestStoreActivity(t *testing.T) {
	fake := newFakeRedis()
	storage := NewStorage(fake, slog.Default())

	snap := fusion.Snapshot{
		Timestamp:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Activity:      activity.Reading,
		Confidence:    0.9,
		PersonPresent: true,
	}
	require.NoError(t, storage.StoreActivity(context.Background(), snap))

	var stored fusion.Snapshot
	require.NoError(t, json.Unmarshal([]byte(fake.strings[redis.ActivityStateKey()]), &stored))
	assert.Equal(t, activity.Reading, stored.Activity)
	assert.Equal(t, stateTTL, fake.ttls[redis.ActivityStateKey()])
}
