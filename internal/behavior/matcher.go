package behavior

import (
	"sort"
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

// Sub-score weights for pattern matching
const (
	orderWeight      = 0.5
	durationWeight   = 0.2
	transitionWeight = 0.2
	timeOfDayWeight  = 0.1
)

// neutralScore is used when a sub-score cannot be computed from the
// available data (no duration bounds, no transitions defined, ...)
const neutralScore = 0.5

// Matcher scores observed activity sequences against behavior patterns
type Matcher struct {
	now func() time.Time
}

// NewMatcher creates a sequence matcher
func NewMatcher() *Matcher {
	return &Matcher{now: time.Now}
}

// Score computes the 0-1 match score between an observed sequence and a
// pattern as a weighted sum of order, duration, transition and time-of-day
// sub-scores.
func (m *Matcher) Score(observations []types.Observation, pattern types.Pattern) float64 {
	if len(observations) == 0 || len(pattern.ActivitySequence) == 0 {
		return 0.0
	}

	observed := make([]activity.Type, len(observations))
	for i, obs := range observations {
		observed[i] = obs.Activity
	}

	return orderWeight*m.orderScore(observed, pattern) +
		durationWeight*m.durationScore(observations, pattern) +
		transitionWeight*m.transitionScore(observed, pattern) +
		timeOfDayWeight*m.timeOfDayScore(observations, pattern)
}

// orderScore measures how well the observed types match the pattern's
// sequence: LCS ratio when order is strict, set overlap otherwise
func (m *Matcher) orderScore(observed []activity.Type, pattern types.Pattern) float64 {
	if pattern.StrictOrder {
		lcs := longestCommonSubsequence(observed, pattern.ActivitySequence)
		return float64(lcs) / float64(len(pattern.ActivitySequence))
	}

	patternSet := make(map[activity.Type]bool, len(pattern.ActivitySequence))
	for _, act := range pattern.ActivitySequence {
		patternSet[act] = true
	}

	seen := make(map[activity.Type]bool, len(observed))
	common := 0
	for _, act := range observed {
		if patternSet[act] && !seen[act] {
			seen[act] = true
			common++
		}
	}

	return float64(common) / float64(len(patternSet))
}

// longestCommonSubsequence computes the classic O(n*m) LCS length over
// activity-type equality
func longestCommonSubsequence(a, b []activity.Type) int {
	n, m := len(a), len(b)

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	return dp[n][m]
}

// durationScore compares the total elapsed window span against the
// pattern's duration bounds
func (m *Matcher) durationScore(observations []types.Observation, pattern types.Pattern) float64 {
	if pattern.MinDurationSec == nil || pattern.MaxDurationSec == nil {
		return neutralScore
	}

	start := observations[0].StartTime
	var end time.Time
	ongoing := false
	for _, obs := range observations {
		if obs.StartTime.Before(start) {
			start = obs.StartTime
		}
		if obs.EndTime == nil {
			ongoing = true
		} else if obs.EndTime.After(end) {
			end = *obs.EndTime
		}
	}
	if ongoing || end.IsZero() {
		end = m.now()
	}

	elapsed := end.Sub(start).Seconds()
	minDur := float64(*pattern.MinDurationSec)
	maxDur := float64(*pattern.MaxDurationSec)

	switch {
	case elapsed < minDur:
		if elapsed < 0 {
			return 0.0
		}
		return elapsed / minDur
	case elapsed > maxDur:
		score := 1.0 - (elapsed-maxDur)/maxDur
		if score < 0 {
			return 0.0
		}
		return score
	default:
		return 1.0
	}
}

// transitionScore measures how many observed type changes follow edges the
// pattern defines
func (m *Matcher) transitionScore(observed []activity.Type, pattern types.Pattern) float64 {
	if len(pattern.Transitions) == 0 {
		return neutralScore
	}

	type edge struct{ from, to activity.Type }
	defined := make(map[edge]bool, len(pattern.Transitions))
	for _, tr := range pattern.Transitions {
		defined[edge{tr.From, tr.To}] = true
	}

	matches := 0
	total := 0
	for i := 0; i < len(observed)-1; i++ {
		if observed[i] == observed[i+1] {
			continue
		}
		total++
		if defined[edge{observed[i], observed[i+1]}] {
			matches++
		}
	}

	if total == 0 {
		return neutralScore
	}
	return float64(matches) / float64(total)
}

// timeOfDayScore compares the median observation hour against the pattern's
// typical hours, with circular distance over the 24-hour clock
func (m *Matcher) timeOfDayScore(observations []types.Observation, pattern types.Pattern) float64 {
	if len(pattern.TypicalHours) == 0 {
		return neutralScore
	}

	hours := make([]int, len(observations))
	for i, obs := range observations {
		hours[i] = obs.StartTime.Hour()
	}
	sort.Ints(hours)
	median := hours[len(hours)/2]

	minDistance := 12
	for _, hour := range pattern.TypicalHours {
		if hour == median {
			return 1.0
		}
		d := circularHourDistance(hour, median)
		if d < minDistance {
			minDistance = d
		}
	}

	score := 1.0 - float64(minDistance)/12.0
	if score < 0 {
		return 0.0
	}
	return score
}

// circularHourDistance returns the wraparound distance between two hours on
// a 24-hour clock; 12 is maximal disagreement
func circularHourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if 24-d < d {
		d = 24 - d
	}
	return d
}
