package fusion

import (
	"log/slog"
	"math"
	"testing"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/pkg/config"
)

func newTestFuser() *Fuser {
	cfg := config.NewConfig()
	return NewFuser(cfg, slog.Default())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFuseAbsentShortCircuit(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(map[activity.Type]float64{activity.Reading: 0.9}, nil, false)

	if snap.Activity != activity.Absent {
		t.Errorf("expected absent, got %s", snap.Activity)
	}
	if snap.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", snap.Confidence)
	}
	if snap.PersonPresent {
		t.Error("expected PersonPresent false")
	}
	if len(f.history) != 0 {
		t.Errorf("expected smoothing history untouched, got %d entries", len(f.history))
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(nil, nil, true)

	if snap.Activity != activity.Unknown {
		t.Errorf("expected unknown, got %s", snap.Activity)
	}
	if snap.Confidence != 0.5 {
		t.Errorf("expected neutral confidence 0.5, got %f", snap.Confidence)
	}
}

func TestFuseSpeechWeighting(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(
		map[activity.Type]float64{activity.Talking: 0.6},
		map[activity.Type]float64{activity.Talking: 0.9},
		true,
	)

	// talking: audio 0.7, video 0.3
	expected := 0.9*0.7 + 0.6*0.3
	if snap.Activity != activity.Talking {
		t.Errorf("expected talking, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, expected) {
		t.Errorf("expected confidence %f, got %f", expected, snap.Confidence)
	}
}

func TestFuseVisualWeighting(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(
		map[activity.Type]float64{activity.Reading: 0.9},
		map[activity.Type]float64{activity.Reading: 0.3},
		true,
	)

	// reading: video 0.8, audio 0.2
	expected := 0.3*0.2 + 0.9*0.8
	if snap.Activity != activity.Reading {
		t.Errorf("expected reading, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, expected) {
		t.Errorf("expected confidence %f, got %f", expected, snap.Confidence)
	}
}

func TestFuseAudioOnlyPenalty(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(
		nil,
		map[activity.Type]float64{activity.Calling: 1.0},
		true,
	)

	if snap.Activity != activity.Calling {
		t.Errorf("expected calling, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, 0.6) {
		t.Errorf("expected penalized confidence 0.6, got %f", snap.Confidence)
	}
}

func TestFuseBelowThreshold(t *testing.T) {
	f := newTestFuser()

	snap := f.Fuse(
		map[activity.Type]float64{activity.Eating: 0.4, activity.Reading: 0.3},
		nil,
		true,
	)

	if snap.Activity != activity.Unknown {
		t.Errorf("expected unknown below threshold, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, 0.6) {
		t.Errorf("expected confidence at threshold 0.6, got %f", snap.Confidence)
	}
}

func TestSmoothingStableSequence(t *testing.T) {
	// Feeding the same activity five times must yield that activity with the
	// per-frame confidence: the majority equals the current frame, so no
	// override fires.
	f := newTestFuser()

	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = f.Fuse(map[activity.Type]float64{activity.Sleeping: 0.85}, nil, true)
	}

	if snap.Activity != activity.Sleeping {
		t.Errorf("expected sleeping, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, 0.85) {
		t.Errorf("expected confidence 0.85, got %f", snap.Confidence)
	}
}

func TestSmoothingOverridesFlicker(t *testing.T) {
	f := newTestFuser()

	for i := 0; i < 3; i++ {
		f.Fuse(map[activity.Type]float64{activity.Sleeping: 0.9}, nil, true)
	}

	// Single disagreeing frame: majority (3 of 4) wins
	snap := f.Fuse(map[activity.Type]float64{activity.Eating: 0.95}, nil, true)

	if snap.Activity != activity.Sleeping {
		t.Errorf("expected flicker suppressed to sleeping, got %s", snap.Activity)
	}
	if !almostEqual(snap.Confidence, 0.9) {
		t.Errorf("expected mean majority confidence 0.9, got %f", snap.Confidence)
	}
}

func TestSmoothingHistoryBounded(t *testing.T) {
	f := newTestFuser()

	for i := 0; i < 12; i++ {
		f.Fuse(map[activity.Type]float64{activity.Reading: 0.8}, nil, true)
	}

	if len(f.history) != f.historySize {
		t.Errorf("expected history capped at %d, got %d", f.historySize, len(f.history))
	}
}

func TestFuseConfidenceRange(t *testing.T) {
	f := newTestFuser()

	inputs := []struct {
		video map[activity.Type]float64
		audio map[activity.Type]float64
	}{
		{map[activity.Type]float64{activity.Talking: 1.0}, map[activity.Type]float64{activity.Talking: 1.0}},
		{nil, map[activity.Type]float64{activity.Playing: 0.99}},
		{map[activity.Type]float64{activity.Cleaning: 0.01}, nil},
		{nil, nil},
	}

	for _, in := range inputs {
		snap := f.Fuse(in.video, in.audio, true)
		if snap.Confidence < 0.0 || snap.Confidence > 1.0 {
			t.Errorf("confidence out of range: %f for %s", snap.Confidence, snap.Activity)
		}
	}
}
