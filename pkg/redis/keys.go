package redis

// Key construction helpers for behavior engine state

// BehaviorLatestKey returns the key holding the most recent behavior result (string)
func BehaviorLatestKey() string {
	return "behavior:latest"
}

// BehaviorHistoryKey returns the key holding the bounded result history (list, newest first)
func BehaviorHistoryKey() string {
	return "behavior:history"
}

// ActivityStateKey returns the key holding the latest fused activity snapshot (string)
func ActivityStateKey() string {
	return "activity:current"
}
