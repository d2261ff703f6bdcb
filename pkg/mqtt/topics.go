package mqtt

// Topic constants for the monitoring pipeline
const (
	// Frame-level activity scores published by the inference stages (input)
	TopicFrameScores = "care/analysis/frames"

	// Fused activity state after multimodal fusion (output)
	TopicActivityState = "care/activity/state"

	// Behavior analysis results (output)
	TopicBehaviorResult = "care/behavior/result"

	// Command topic: re-read the behavior pattern catalog from disk
	TopicPatternReload = "care/behavior/patterns/reload"
)
