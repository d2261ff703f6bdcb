package types

import (
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
)

// BehaviorType is a higher-level interpretation of an activity sequence
type BehaviorType string

const (
	Normal              BehaviorType = "normal"
	Unusual             BehaviorType = "unusual"
	MorningRoutine      BehaviorType = "morning_routine"
	EveningRoutine      BehaviorType = "evening_routine"
	EatingPattern       BehaviorType = "eating_pattern"
	RestingPattern      BehaviorType = "resting_pattern"
	LeisurePattern      BehaviorType = "leisure_pattern"
	SocialPattern       BehaviorType = "social_pattern"
	HousekeepingPattern BehaviorType = "housekeeping_pattern"
	Agitated            BehaviorType = "agitated"
	Calm                BehaviorType = "calm"
	UnknownBehavior     BehaviorType = "unknown"
)

// Observation is one timestamped activity assertion in the sliding window.
// EndTime is nil while the activity is still ongoing.
type Observation struct {
	Activity   activity.Type `json:"activity"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Ongoing reports whether the observation has not been closed yet
func (o *Observation) Ongoing() bool {
	return o.EndTime == nil
}

// DurationSec returns the observed duration in seconds, 0 while ongoing
func (o *Observation) DurationSec() int {
	if o.EndTime == nil {
		return 0
	}
	return int(o.EndTime.Sub(o.StartTime).Seconds())
}

// Transition describes one edge of a pattern's expected transition graph
type Transition struct {
	From               activity.Type `json:"from" yaml:"from"`
	To                 activity.Type `json:"to" yaml:"to"`
	Probability        float64       `json:"probability" yaml:"probability"`
	TypicalDurationSec int           `json:"typical_duration_sec" yaml:"typical_duration_sec"`
}

// Pattern is a reference template an observed activity sequence is scored
// against. Patterns are immutable once loaded and identified by ID; the ID
// string is the map key everywhere, never the struct itself.
type Pattern struct {
	ID               string          `json:"id" yaml:"id"`
	Behavior         BehaviorType    `json:"behavior" yaml:"behavior"`
	Name             string          `json:"name" yaml:"name"`
	Description      string          `json:"description" yaml:"description"`
	ActivitySequence []activity.Type `json:"activity_sequence" yaml:"activity_sequence"`
	MinDurationSec   *int            `json:"min_duration_sec,omitempty" yaml:"min_duration_sec,omitempty"`
	MaxDurationSec   *int            `json:"max_duration_sec,omitempty" yaml:"max_duration_sec,omitempty"`
	StrictOrder      bool            `json:"strict_order" yaml:"strict_order"`
	BaselineScore    float64         `json:"baseline_score" yaml:"baseline_score"`
	Transitions      []Transition    `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	TypicalHours     []int           `json:"typical_hours,omitempty" yaml:"typical_hours,omitempty"`
}

// Result is one behavior analysis outcome, immutable after creation
type Result struct {
	ID                  string             `json:"id"`
	Timestamp           time.Time          `json:"timestamp"`
	StartTime           time.Time          `json:"start_time"`
	Behavior            BehaviorType       `json:"behavior"`
	Confidence          float64            `json:"confidence"`
	DetectedPatterns    map[string]float64 `json:"detected_patterns,omitempty"`
	ActivityHistory     []Observation      `json:"activity_history,omitempty"`
	DurationSec         int                `json:"duration_sec"`
	Ongoing             bool               `json:"ongoing"`
	ContributingFactors map[string]float64 `json:"contributing_factors,omitempty"`
}
