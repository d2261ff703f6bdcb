package behavior

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/patterns"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
	"github.com/pkallio/vigil-platform/pkg/config"
)

// Confidence assigned to fallback results that match no pattern
const (
	anomalyConfidence = 0.8
	normalConfidence  = 0.7
)

// Analyzer maintains the sliding activity window and turns it into behavior
// results by scoring it against the pattern catalog. Safe for concurrent use.
type Analyzer struct {
	mu      sync.Mutex
	window  []*types.Observation
	history []types.Result

	store   *patterns.Store
	matcher *Matcher
	anomaly *AnomalyScorer

	timeWindow       time.Duration
	analysisInterval time.Duration
	minActivities    int
	confidenceThresh float64
	historySize      int
	continuous       bool
	anomalyDetection bool

	lastAnalysis time.Time
	logger       *slog.Logger
	now          func() time.Time
}

// NewAnalyzer creates a behavior analyzer backed by the given pattern store
func NewAnalyzer(cfg *config.Config, store *patterns.Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		store:            store,
		matcher:          NewMatcher(),
		anomaly:          NewAnomalyScorer(DefaultBaselines(), cfg.AnomalyThreshold),
		timeWindow:       cfg.TimeWindow(),
		analysisInterval: cfg.AnalysisInterval(),
		minActivities:    cfg.MinActivities,
		confidenceThresh: cfg.ConfidenceThreshold,
		historySize:      cfg.BehaviorHistorySize,
		continuous:       cfg.ContinuousAnalysis,
		anomalyDetection: cfg.AnomalyDetection,
		logger:           logger,
		now:              time.Now,
	}
}

// Ingest records one activity assertion in the sliding window. A type change
// closes the open observation and starts a new one; the same type extends the
// open observation, so the window holds at most one ongoing entry.
func (a *Analyzer) Ingest(act activity.Type, confidence float64, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.window); n > 0 {
		tail := a.window[n-1]
		if tail.Ongoing() {
			if tail.Activity == act {
				tail.Confidence = confidence
				a.pruneLocked(at)
				return
			}
			end := at
			tail.EndTime = &end
		}
	}

	a.window = append(a.window, &types.Observation{
		Activity:   act,
		StartTime:  at,
		Confidence: confidence,
	})

	a.pruneLocked(at)

	a.logger.Debug("Activity observed",
		"activity", act,
		"confidence", confidence,
		"window_size", len(a.window))
}

// pruneLocked drops closed observations that started before the window
// cutoff. Ongoing observations are kept regardless of age. Caller must
// hold a.mu.
func (a *Analyzer) pruneLocked(at time.Time) {
	cutoff := at.Add(-a.timeWindow)

	kept := a.window[:0]
	for _, obs := range a.window {
		if obs.Ongoing() || obs.StartTime.After(cutoff) {
			kept = append(kept, obs)
		}
	}
	a.window = kept
}

// IngestAndMaybeAnalyze records an observation and runs an analysis if the
// minimum interval has passed
func (a *Analyzer) IngestAndMaybeAnalyze(act activity.Type, confidence float64, at time.Time) (types.Result, bool) {
	a.Ingest(act, confidence, at)
	return a.TryAnalyze()
}

// TryAnalyze runs an analysis if the trigger condition holds: continuous
// analysis enabled, enough observations in the window, and the minimum
// interval elapsed since the last run. The interval check-and-set happens
// atomically so concurrent callers cannot double-trigger. Returns the result
// and whether an analysis actually ran.
func (a *Analyzer) TryAnalyze() (types.Result, bool) {
	a.mu.Lock()
	if !a.continuous || len(a.window) < a.minActivities ||
		a.now().Sub(a.lastAnalysis) < a.analysisInterval {
		a.mu.Unlock()
		return types.Result{}, false
	}
	a.lastAnalysis = a.now()
	a.mu.Unlock()

	return a.Analyze(), true
}

// Analyze scores the current window against the catalog and always produces
// a result: the best pattern match above the confidence threshold, otherwise
// an anomaly or plain normal/unknown verdict.
func (a *Analyzer) Analyze() types.Result {
	a.mu.Lock()
	observations := make([]types.Observation, len(a.window))
	for i, obs := range a.window {
		observations[i] = *obs
	}
	a.mu.Unlock()

	result := a.evaluate(observations)

	a.mu.Lock()
	a.history = append(a.history, result)
	for len(a.history) > a.historySize {
		a.history = a.history[1:]
	}
	a.mu.Unlock()

	a.logger.Info("Behavior analysis completed",
		"behavior", result.Behavior,
		"confidence", result.Confidence,
		"observations", len(observations),
		"patterns", len(result.DetectedPatterns))

	return result
}

// evaluate scores a snapshot of the window without holding the lock
func (a *Analyzer) evaluate(observations []types.Observation) types.Result {
	now := a.now()

	if len(observations) < a.minActivities {
		return types.Result{
			ID:        uuid.New().String(),
			Timestamp: now,
			StartTime: now,
			Behavior:  types.UnknownBehavior,
		}
	}

	start := observations[0].StartTime
	ongoing := false
	end := start
	for _, obs := range observations {
		if obs.StartTime.Before(start) {
			start = obs.StartTime
		}
		if obs.Ongoing() {
			ongoing = true
		} else if obs.EndTime.After(end) {
			end = *obs.EndTime
		}
	}
	if ongoing {
		end = now
	}

	detected := make(map[string]float64)
	bestScore := 0.0
	var bestPattern types.Pattern
	for _, pattern := range a.store.All() {
		score := a.matcher.Score(observations, pattern)
		if score >= a.confidenceThresh {
			detected[pattern.ID] = score
		}
		if score > bestScore {
			bestScore = score
			bestPattern = pattern
		}
	}

	result := types.Result{
		ID:              uuid.New().String(),
		Timestamp:       now,
		StartTime:       start,
		ActivityHistory: observations,
		DurationSec:     int(end.Sub(start).Seconds()),
		Ongoing:         ongoing,
	}

	if bestScore >= a.confidenceThresh {
		result.Behavior = bestPattern.Behavior
		result.Confidence = bestScore
		result.DetectedPatterns = detected
		return result
	}

	if a.anomalyDetection && a.anomaly.IsAnomaly(observations) {
		result.Behavior = types.Unusual
		result.Confidence = anomalyConfidence
		result.ContributingFactors = a.anomaly.Factors(observations)
		return result
	}

	result.Behavior = types.Normal
	result.Confidence = normalConfidence
	return result
}

// Latest returns the most recent result, if any analysis has run
func (a *Analyzer) Latest() (types.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) == 0 {
		return types.Result{}, false
	}
	return a.history[len(a.history)-1], true
}

// Recent returns up to limit results, newest first
func (a *Analyzer) Recent(limit int) []types.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 || limit > len(a.history) {
		limit = len(a.history)
	}

	recent := make([]types.Result, limit)
	for i := 0; i < limit; i++ {
		recent[i] = a.history[len(a.history)-1-i]
	}
	return recent
}

// ByType returns all recorded results with the given behavior, newest first
func (a *Analyzer) ByType(behavior types.BehaviorType) []types.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	matched := make([]types.Result, 0)
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].Behavior == behavior {
			matched = append(matched, a.history[i])
		}
	}
	return matched
}

// WindowSize returns the number of observations currently in the window
func (a *Analyzer) WindowSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.window)
}
