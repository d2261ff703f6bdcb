package behavior

import (
	"math"
	"testing"
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

func newTestScorer() *AnomalyScorer {
	return NewAnomalyScorer(DefaultBaselines(), 0.6)
}

func TestAnomalyEmptyObservations(t *testing.T) {
	scorer := newTestScorer()

	if scorer.IsAnomaly(nil) {
		t.Error("no observations must not be anomalous")
	}
}

func TestAnomalyNightSleepIsNormal(t *testing.T) {
	// A six-hour sleep starting at 03:00 is exactly what the priors expect:
	// only the time factor is nonzero (1 - 0.7) and the aggregate stays low.
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	obs := []types.Observation{obsAt(activity.Sleeping, start, 6*3600)}

	aggregate := scorer.Aggregate(obs)
	if aggregate >= 0.3 {
		t.Errorf("expected low aggregate for night sleep, got %f", aggregate)
	}
	if math.Abs(aggregate-0.075) > 1e-9 {
		t.Errorf("expected aggregate 0.075, got %f", aggregate)
	}
	if scorer.IsAnomaly(obs) {
		t.Error("night sleep flagged as anomaly")
	}
}

func TestAnomalyRapidAlternation(t *testing.T) {
	// Five alternating activities crammed into four minutes trip every
	// factor: rare for the hour, far too short, rapid transitions, and a
	// perfectly repetitive A-B-A-B-A shape.
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	sequence := []activity.Type{
		activity.Eating, activity.Cleaning, activity.Eating,
		activity.Cleaning, activity.Eating,
	}
	obs := make([]types.Observation, len(sequence))
	for i, act := range sequence {
		obs[i] = obsAt(act, start.Add(time.Duration(i*48)*time.Second), 40)
	}

	aggregate := scorer.Aggregate(obs)
	if aggregate <= 0.6 {
		t.Errorf("expected high aggregate for rapid alternation, got %f", aggregate)
	}
	if !scorer.IsAnomaly(obs) {
		t.Error("rapid alternation not flagged as anomaly")
	}

	factors := scorer.Factors(obs)
	if factors[FactorRapidTransition] != 1.0 {
		t.Errorf("expected every transition rapid, got %f", factors[FactorRapidTransition])
	}
	if factors[FactorRepetitive] != 1.0 {
		t.Errorf("expected full alternation score, got %f", factors[FactorRepetitive])
	}
}

func TestTimeFactorUsesDefaultPrior(t *testing.T) {
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	// Cleaning is not listed for night hours, so the default prior applies
	obs := []types.Observation{obsAt(activity.Cleaning, start, 600)}

	got := scorer.timeFactor(obs)
	if math.Abs(got-0.95) > 1e-9 {
		t.Errorf("expected 1 - default prior = 0.95, got %f", got)
	}

	// Unclassifiable stretches carry the same default prior: sustained
	// unknown activity pushes the time factor up instead of vanishing
	obs = []types.Observation{obsAt(activity.Unknown, start, 600)}
	got = scorer.timeFactor(obs)
	if math.Abs(got-0.95) > 1e-9 {
		t.Errorf("expected 0.95 for unknown activity, got %f", got)
	}
}

func TestDurationFactor(t *testing.T) {
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		obs  types.Observation
		want float64
	}{
		{"within range", obsAt(activity.Eating, start, 1800), 0.0},
		{"half of min", obsAt(activity.Sleeping, start, 1800), 0.5},
		{"double the max", obsAt(activity.Eating, start, 7200), 1.0},
	}

	for _, tc := range cases {
		got := scorer.durationFactor([]types.Observation{tc.obs})
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", tc.name, tc.want, got)
		}
	}
}

func TestDurationFactorSkipsOngoing(t *testing.T) {
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	obs := []types.Observation{{Activity: activity.Eating, StartTime: start}}

	if got := scorer.durationFactor(obs); got != 0.0 {
		t.Errorf("expected 0.0 with only ongoing observations, got %f", got)
	}
}

func TestTransitionFactorRespectsGap(t *testing.T) {
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Ten minutes pass between eating's close and reading; TV starts only
	// 30 seconds after reading closes
	eating := obsAt(activity.Eating, start, 1200)
	reading := obsAt(activity.Reading, start.Add(30*time.Minute), 60)
	tv := obsAt(activity.WatchingTV, start.Add(31*time.Minute).Add(30*time.Second), 1200)

	got := scorer.transitionFactor([]types.Observation{eating, reading, tv})
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 1 of 2 transitions rapid, got %f", got)
	}
}

func TestRepetitionFactorSingleType(t *testing.T) {
	// One distinct type is sustained activity, not repetition
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	obs := []types.Observation{
		obsAt(activity.Reading, start, 600),
		obsAt(activity.Reading, start.Add(10*time.Minute), 600),
		obsAt(activity.Reading, start.Add(20*time.Minute), 600),
	}

	if got := scorer.repetitionFactor(obs); got != 0.0 {
		t.Errorf("expected 0.0 for a single distinct type, got %f", got)
	}
}

func TestAggregateRange(t *testing.T) {
	scorer := newTestScorer()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	sequences := [][]types.Observation{
		{obsAt(activity.Playing, start.Add(2*time.Hour), 10)},
		{
			obsAt(activity.Eating, start.Add(12*time.Hour), 1800),
			obsAt(activity.WatchingTV, start.Add(13*time.Hour), 3600),
		},
		{
			obsAt(activity.Calling, start, 5),
			obsAt(activity.Talking, start.Add(10*time.Second), 5),
			obsAt(activity.Calling, start.Add(20*time.Second), 5),
		},
	}

	for i, obs := range sequences {
		got := scorer.Aggregate(obs)
		if got < 0.0 || got > 1.0 {
			t.Errorf("sequence %d: aggregate out of range: %f", i, got)
		}
	}
}
