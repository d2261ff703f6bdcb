package behavior

import (
	"math"
	"sort"
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

// Anomaly factor names, attached to unusual behavior results
const (
	FactorUnusualTime     = "unusual_activity_for_time"
	FactorUnusualDuration = "unusual_activity_duration"
	FactorRapidTransition = "rapid_activity_transitions"
	FactorRepetitive      = "repetitive_activities"
)

// rapidTransitionGap is the inter-activity gap below which a type change
// counts as rapid
const rapidTransitionGap = 120 * time.Second

// defaultHourPrior is the prior probability assigned to activities not
// listed for an hour bucket
const defaultHourPrior = 0.05

// DurationRange is the typical [min,max] duration of one activity in seconds
type DurationRange struct {
	MinSec int
	MaxSec int
}

// Baselines holds the static reference data the anomaly scorer compares
// observations against. Built once at startup and passed in; never mutated.
type Baselines struct {
	// HourlyPriors maps hour-of-day to expected activity probabilities
	HourlyPriors map[int]map[activity.Type]float64
	// TypicalDurations maps activity type to its usual duration range
	TypicalDurations map[activity.Type]DurationRange
}

// DefaultBaselines returns hand-specified priors over six day segments and
// per-activity typical duration ranges
func DefaultBaselines() Baselines {
	priors := make(map[int]map[activity.Type]float64, 24)
	for hour := 0; hour < 24; hour++ {
		switch {
		case hour >= 22 || hour < 6: // night
			priors[hour] = map[activity.Type]float64{
				activity.Sleeping:        0.7,
				activity.PresentInactive: 0.1,
				activity.Reading:         0.1,
				activity.WatchingTV:      0.05,
				activity.Eating:          0.05,
			}
		case hour < 10: // morning
			priors[hour] = map[activity.Type]float64{
				activity.Eating:          0.4,
				activity.PresentInactive: 0.2,
				activity.Cleaning:        0.1,
				activity.Reading:         0.1,
				activity.Sleeping:        0.2,
			}
		case hour < 12: // late morning
			priors[hour] = map[activity.Type]float64{
				activity.Cleaning:        0.3,
				activity.Reading:         0.3,
				activity.PresentInactive: 0.2,
				activity.WatchingTV:      0.1,
				activity.Knitting:        0.1,
			}
		case hour < 14: // midday
			priors[hour] = map[activity.Type]float64{
				activity.Eating:          0.5,
				activity.WatchingTV:      0.2,
				activity.PresentInactive: 0.2,
				activity.Talking:         0.1,
			}
		case hour < 18: // afternoon
			priors[hour] = map[activity.Type]float64{
				activity.WatchingTV:      0.3,
				activity.Reading:         0.2,
				activity.PresentInactive: 0.2,
				activity.Knitting:        0.1,
				activity.Cleaning:        0.1,
				activity.Talking:         0.1,
			}
		default: // evening, 18-22
			priors[hour] = map[activity.Type]float64{
				activity.Eating:          0.3,
				activity.WatchingTV:      0.3,
				activity.PresentInactive: 0.1,
				activity.Talking:         0.1,
				activity.Reading:         0.1,
				activity.Calling:         0.1,
			}
		}
	}

	durations := map[activity.Type]DurationRange{
		activity.Sleeping:        {3600, 28800}, // 1h-8h
		activity.Eating:          {900, 3600},   // 15min-1h
		activity.Reading:         {600, 7200},   // 10min-2h
		activity.Cleaning:        {300, 3600},   // 5min-1h
		activity.WatchingTV:      {900, 10800},  // 15min-3h
		activity.Calling:         {60, 1800},    // 1min-30min
		activity.Knitting:        {600, 7200},   // 10min-2h
		activity.Talking:         {60, 3600},    // 1min-1h
		activity.Playing:         {600, 7200},   // 10min-2h
		activity.PresentInactive: {60, 1800},    // 1min-30min
	}

	return Baselines{HourlyPriors: priors, TypicalDurations: durations}
}

// AnomalyScorer rates how unusual an observed activity sequence is without
// reference to any pattern
type AnomalyScorer struct {
	baselines Baselines
	threshold float64
}

// NewAnomalyScorer creates a scorer with the given reference data and
// aggregate threshold
func NewAnomalyScorer(baselines Baselines, threshold float64) *AnomalyScorer {
	return &AnomalyScorer{baselines: baselines, threshold: threshold}
}

// IsAnomaly reports whether the aggregate anomaly score exceeds the
// configured threshold
func (a *AnomalyScorer) IsAnomaly(observations []types.Observation) bool {
	if len(observations) == 0 {
		return false
	}
	return a.Aggregate(observations) > a.threshold
}

// Aggregate returns the unweighted mean of the four anomaly factors
func (a *AnomalyScorer) Aggregate(observations []types.Observation) float64 {
	factors := a.Factors(observations)
	if len(factors) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range factors {
		sum += score
	}
	return sum / float64(len(factors))
}

// Factors returns the per-factor anomaly breakdown. Factors that cannot be
// computed from the available observations contribute 0: absence of
// evidence is not evidence of anomaly.
func (a *AnomalyScorer) Factors(observations []types.Observation) map[string]float64 {
	return map[string]float64{
		FactorUnusualTime:     a.timeFactor(observations),
		FactorUnusualDuration: a.durationFactor(observations),
		FactorRapidTransition: a.transitionFactor(observations),
		FactorRepetitive:      a.repetitionFactor(observations),
	}
}

// timeFactor scores activities against the hourly priors: the rarer an
// activity is for its hour, the higher the anomaly
func (a *AnomalyScorer) timeFactor(observations []types.Observation) float64 {
	byHour := make(map[int][]types.Observation)
	for _, obs := range observations {
		hour := obs.StartTime.Hour()
		byHour[hour] = append(byHour[hour], obs)
	}

	totalScore := 0.0
	hourCount := 0
	for hour, hourObs := range byHour {
		priors, ok := a.baselines.HourlyPriors[hour]
		if !ok {
			continue
		}

		hourScore := 0.0
		for _, obs := range hourObs {
			prior, listed := priors[obs.Activity]
			if !listed {
				prior = defaultHourPrior
			}
			hourScore += 1.0 - prior
		}

		totalScore += hourScore / float64(len(hourObs))
		hourCount++
	}

	if hourCount == 0 {
		return 0.0
	}
	return totalScore / float64(hourCount)
}

// durationFactor scores closed observations against the typical duration
// range for their activity type; ongoing observations are skipped
func (a *AnomalyScorer) durationFactor(observations []types.Observation) float64 {
	totalScore := 0.0
	count := 0

	for _, obs := range observations {
		if obs.Ongoing() {
			continue
		}

		rng, ok := a.baselines.TypicalDurations[obs.Activity]
		if !ok {
			continue
		}

		duration := float64(obs.DurationSec())
		minDur := float64(rng.MinSec)
		maxDur := float64(rng.MaxSec)

		var score float64
		switch {
		case duration < minDur:
			ratio := duration / minDur
			if ratio < 0 {
				ratio = 0
			}
			score = 1.0 - ratio
		case duration > maxDur:
			score = math.Min(1.0, (duration-maxDur)/maxDur)
		default:
			score = 0.0
		}

		totalScore += score
		count++
	}

	if count == 0 {
		return 0.0
	}
	return totalScore / float64(count)
}

// transitionFactor scores the fraction of type changes that happen with less
// than the rapid-transition gap between the earlier activity's close and the
// next activity's start
func (a *AnomalyScorer) transitionFactor(observations []types.Observation) float64 {
	if len(observations) < 2 {
		return 0.0
	}

	sorted := make([]types.Observation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	rapid := 0
	total := 0
	for i := 0; i < len(sorted)-1; i++ {
		current, next := sorted[i], sorted[i+1]
		if current.Activity == next.Activity {
			continue
		}
		total++

		endTime := next.StartTime
		if current.EndTime != nil {
			endTime = *current.EndTime
		}
		if next.StartTime.Sub(endTime) < rapidTransitionGap {
			rapid++
		}
	}

	if total == 0 {
		return 0.0
	}
	return float64(rapid) / float64(total)
}

// repetitionFactor combines an A-B-A alternation score with a normalized
// entropy score over the activity type distribution
func (a *AnomalyScorer) repetitionFactor(observations []types.Observation) float64 {
	if len(observations) < 3 {
		return 0.0
	}

	sorted := make([]types.Observation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	sequence := make([]activity.Type, len(sorted))
	counts := make(map[activity.Type]int)
	for i, obs := range sorted {
		sequence[i] = obs.Activity
		counts[obs.Activity]++
	}

	alternations := 0
	for i := 0; i < len(sequence)-2; i++ {
		if sequence[i] == sequence[i+2] && sequence[i] != sequence[i+1] {
			alternations++
		}
	}
	alternationScore := float64(alternations) / float64(len(sequence)-2)

	// Low entropy over the type distribution means a repetitive window.
	// A single distinct type carries no repetition signal (log(1) == 0).
	entropyScore := 0.0
	if len(counts) > 1 {
		total := float64(len(sequence))
		entropy := 0.0
		for _, count := range counts {
			p := float64(count) / total
			entropy -= p * math.Log(p)
		}
		entropyScore = 1.0 - entropy/math.Log(float64(len(counts)))
	}

	return math.Max(alternationScore, entropyScore)
}
