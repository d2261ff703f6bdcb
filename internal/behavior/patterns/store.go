package patterns

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

// Store holds the catalog of known behavior patterns, keyed by pattern ID.
// The catalog is read-mostly; reloads are all-or-nothing so a malformed file
// never replaces a working catalog.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]types.Pattern
	path   string
	logger *slog.Logger
}

// NewStore creates an empty pattern store bound to a catalog file
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		byID:   make(map[string]types.Pattern),
		path:   path,
		logger: logger,
	}
}

// Load reads the catalog file into the store. On any parse or validation
// error the current catalog is left untouched.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read pattern catalog: %w", err)
	}
	return s.loadBytes(data)
}

// Reload re-reads the catalog file, replacing the catalog only on success
func (s *Store) Reload() (int, error) {
	count, err := s.Load()
	if err != nil {
		s.logger.Error("Pattern reload failed, keeping previous catalog",
			"path", s.path, "error", err)
		return 0, err
	}
	s.logger.Info("Pattern catalog reloaded", "path", s.path, "patterns", count)
	return count, nil
}

// loadBytes parses and validates a catalog, swapping it in atomically
func (s *Store) loadBytes(data []byte) (int, error) {
	var loaded []types.Pattern
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return 0, fmt.Errorf("failed to parse pattern catalog: %w", err)
	}

	fresh := make(map[string]types.Pattern, len(loaded))
	for i, p := range loaded {
		if err := validatePattern(p); err != nil {
			return 0, fmt.Errorf("pattern %d (%s): %w", i, p.ID, err)
		}
		if _, dup := fresh[p.ID]; dup {
			return 0, fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		fresh[p.ID] = p
	}

	s.mu.Lock()
	s.byID = fresh
	s.mu.Unlock()

	return len(fresh), nil
}

// validatePattern checks the structural invariants of a single pattern
func validatePattern(p types.Pattern) error {
	if p.ID == "" {
		return fmt.Errorf("pattern id is required")
	}
	if len(p.ActivitySequence) == 0 {
		return fmt.Errorf("activity sequence must not be empty")
	}
	if p.BaselineScore < 0 || p.BaselineScore > 1 {
		return fmt.Errorf("baseline score must be between 0.0 and 1.0")
	}
	if p.MinDurationSec != nil && p.MaxDurationSec != nil && *p.MinDurationSec > *p.MaxDurationSec {
		return fmt.Errorf("min duration exceeds max duration")
	}
	for _, hour := range p.TypicalHours {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("typical hour %d out of range", hour)
		}
	}
	for _, tr := range p.Transitions {
		if tr.Probability < 0 || tr.Probability > 1 {
			return fmt.Errorf("transition %s->%s probability out of range", tr.From, tr.To)
		}
	}
	return nil
}

// All returns every pattern in the catalog, sorted by ID for stable iteration
func (s *Store) All() []types.Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]types.Pattern, 0, len(s.byID))
	for _, p := range s.byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Get returns the pattern with the given ID
func (s *Store) Get(id string) (types.Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	return p, ok
}

// Save adds or replaces a pattern in the catalog
func (s *Store) Save(p types.Pattern) error {
	if err := validatePattern(p); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	s.mu.Lock()
	s.byID[p.ID] = p
	s.mu.Unlock()

	s.logger.Info("Pattern saved", "id", p.ID, "behavior", p.Behavior)
	return nil
}

// Delete removes a pattern from the catalog, reporting whether it existed
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	return true
}

// Path returns the catalog file path the store is bound to
func (s *Store) Path() string {
	return s.path
}

// Count returns the number of patterns in the catalog
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
