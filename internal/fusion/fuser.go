package fusion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/pkg/config"
)

// Snapshot is the fused per-frame activity observation
type Snapshot struct {
	Timestamp     time.Time     `json:"timestamp"`
	Activity      activity.Type `json:"activity"`
	Confidence    float64       `json:"confidence"`
	PersonPresent bool          `json:"person_present"`
}

// Fuser combines per-frame video and audio activity scores into one activity
// snapshot and applies temporal smoothing over a short result history.
// Safe for concurrent use.
type Fuser struct {
	mu          sync.Mutex
	history     []Snapshot
	historySize int
	threshold   float64
	logger      *slog.Logger
	now         func() time.Time
}

// NewFuser creates a fuser with the configured smoothing window and
// activity confidence threshold
func NewFuser(cfg *config.Config, logger *slog.Logger) *Fuser {
	return &Fuser{
		historySize: cfg.SmoothingHistorySize,
		threshold:   cfg.ActivityThreshold,
		logger:      logger,
		now:         time.Now,
	}
}

// Fuse combines the video and audio score maps into one smoothed snapshot.
// When no person is detected upstream the fixed absent result is returned
// and the smoothing history is left untouched.
func (f *Fuser) Fuse(videoScores, audioScores map[activity.Type]float64, personPresent bool) Snapshot {
	if !personPresent {
		return Snapshot{
			Timestamp:     f.now(),
			Activity:      activity.Absent,
			Confidence:    1.0,
			PersonPresent: false,
		}
	}

	current := f.classify(videoScores, audioScores)

	f.mu.Lock()
	defer f.mu.Unlock()

	smoothed := f.smooth(current)

	f.logger.Debug("Fused activity snapshot",
		"activity", smoothed.Activity,
		"confidence", smoothed.Confidence,
		"raw_activity", current.Activity)

	return smoothed
}

// classify computes the fused score map and picks the winning activity
func (f *Fuser) classify(videoScores, audioScores map[activity.Type]float64) Snapshot {
	if len(videoScores) == 0 && len(audioScores) == 0 {
		// No evidence from either modality
		return Snapshot{
			Timestamp:     f.now(),
			Activity:      activity.Unknown,
			Confidence:    0.5,
			PersonPresent: true,
		}
	}

	fused := make(map[activity.Type]float64, len(videoScores)+len(audioScores))
	for act, score := range videoScores {
		fused[act] = score
	}

	for act, audioScore := range audioScores {
		videoScore, inVideo := videoScores[act]
		if !inVideo {
			// Single-source evidence carries a penalty
			fused[act] = audioScore * 0.6
			continue
		}

		audioWeight, videoWeight := modalityWeights(act)
		fused[act] = audioScore*audioWeight + videoScore*videoWeight
	}

	best := activity.Unknown
	maxScore := f.threshold
	for act, score := range fused {
		if score > maxScore {
			maxScore = score
			best = act
		}
	}

	return Snapshot{
		Timestamp:     f.now(),
		Activity:      best,
		Confidence:    maxScore,
		PersonPresent: best != activity.Absent,
	}
}

// modalityWeights returns the (audio, video) weights for combining scores
// when both modalities report the same activity
func modalityWeights(act activity.Type) (float64, float64) {
	switch act {
	case activity.Talking, activity.Calling:
		// Speech is heard before it is seen
		return 0.7, 0.3
	case activity.Sleeping, activity.Reading, activity.Knitting:
		// Visually dominant, near-silent activities
		return 0.2, 0.8
	case activity.WatchingTV, activity.Eating:
		return 0.5, 0.5
	default:
		return 0.5, 0.5
	}
}

// smooth appends the snapshot to the bounded history and overrides it with
// the majority activity when the current frame disagrees with a clear
// majority. Caller must hold f.mu.
func (f *Fuser) smooth(current Snapshot) Snapshot {
	f.history = append(f.history, current)
	for len(f.history) > f.historySize {
		f.history = f.history[1:]
	}

	if len(f.history) < 3 {
		return current
	}

	counts := make(map[activity.Type]int)
	confidenceSums := make(map[activity.Type]float64)
	for _, snap := range f.history {
		counts[snap.Activity]++
		confidenceSums[snap.Activity] += snap.Confidence
	}

	var majority activity.Type
	maxCount := 0
	for act, count := range counts {
		if count > maxCount {
			maxCount = count
			majority = act
		}
	}

	if majority != current.Activity && maxCount > len(f.history)/2 {
		return Snapshot{
			Timestamp:     current.Timestamp,
			Activity:      majority,
			Confidence:    confidenceSums[majority] / float64(maxCount),
			PersonPresent: majority != activity.Absent,
		}
	}

	return current
}
