package patterns

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

const validCatalog = `
- id: morning-routine
  behavior: morning_routine
  name: Morning routine
  activity_sequence: [sleeping, eating, reading]
  min_duration_sec: 1800
  max_duration_sec: 10800
  strict_order: true
  baseline_score: 0.7
  typical_hours: [6, 7, 8, 9]
  transitions:
    - from: sleeping
      to: eating
      probability: 0.8
      typical_duration_sec: 600
- id: tv-evening
  behavior: leisure_pattern
  name: Evening TV
  activity_sequence: [eating, watching_tv]
  strict_order: false
  baseline_score: 0.6
  typical_hours: [18, 19, 20, 21]
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	store := NewStore(writeCatalog(t, validCatalog), slog.Default())

	count, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	p, ok := store.Get("morning-routine")
	require.True(t, ok)
	assert.Equal(t, types.MorningRoutine, p.Behavior)
	assert.True(t, p.StrictOrder)
	assert.Equal(t, []activity.Type{activity.Sleeping, activity.Eating, activity.Reading}, p.ActivitySequence)
	require.NotNil(t, p.MinDurationSec)
	assert.Equal(t, 1800, *p.MinDurationSec)
	require.Len(t, p.Transitions, 1)
	assert.Equal(t, activity.Sleeping, p.Transitions[0].From)
}

func TestReloadIsAtomic(t *testing.T) {
	path := writeCatalog(t, validCatalog)
	store := NewStore(path, slog.Default())

	_, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 2, store.Count())

	// Overwrite with garbage: reload must fail and keep the old catalog
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err = store.Reload()
	require.Error(t, err)

	assert.Equal(t, 2, store.Count())
	_, ok := store.Get("tv-evening")
	assert.True(t, ok)
}

func TestReloadRejectsInvalidPatterns(t *testing.T) {
	path := writeCatalog(t, validCatalog)
	store := NewStore(path, slog.Default())
	_, err := store.Load()
	require.NoError(t, err)

	invalid := []string{
		"- id: \"\"\n  activity_sequence: [eating]\n",
		"- id: no-sequence\n  activity_sequence: []\n",
		"- id: bad-hour\n  activity_sequence: [eating]\n  typical_hours: [25]\n",
		"- id: dup\n  activity_sequence: [eating]\n- id: dup\n  activity_sequence: [reading]\n",
		"- id: bad-duration\n  activity_sequence: [eating]\n  min_duration_sec: 100\n  max_duration_sec: 50\n",
	}

	for _, catalog := range invalid {
		require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))
		_, err := store.Reload()
		assert.Error(t, err, "catalog should be rejected: %s", catalog)
		assert.Equal(t, 2, store.Count(), "previous catalog must survive")
	}
}

func TestSaveAndDelete(t *testing.T) {
	store := NewStore("unused.yaml", slog.Default())

	err := store.Save(types.Pattern{
		ID:               "nap",
		Behavior:         types.RestingPattern,
		ActivitySequence: []activity.Type{activity.Sleeping},
		BaselineScore:    0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	assert.True(t, store.Delete("nap"))
	assert.False(t, store.Delete("nap"))
	assert.Equal(t, 0, store.Count())
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := NewStore("unused.yaml", slog.Default())

	err := store.Save(types.Pattern{ID: "empty-seq"})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.yaml"), slog.Default())

	_, err := store.Load()
	assert.Error(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestAllSortedByID(t *testing.T) {
	store := NewStore(writeCatalog(t, validCatalog), slog.Default())
	_, err := store.Load()
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "morning-routine", all[0].ID)
	assert.Equal(t, "tv-evening", all[1].ID)
}
