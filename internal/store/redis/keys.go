package redis

const (
	// KeyPrefixSession is the prefix for session snapshot keys
	KeyPrefixSession = "untold:session:"
	// KeyAllSessions is the key for the set of all snapshotted diary IDs
	KeyAllSessions = "untold:sessions:all"
	// KeyPrefixWidget is the prefix for widget keys
	KeyPrefixWidget = "untold:widget:"
	// KeyAllWidgets is the key for the set of all widget names
	KeyAllWidgets = "untold:widgets:all"
	// KeyFailedFeedback is the capped list of undelivered feedback
	KeyFailedFeedback = "untold:feedback:failed"
)

// SessionKey returns the Redis key for a diary session snapshot
func SessionKey(diaryID string) string {
	return KeyPrefixSession + diaryID
}

// AllSessionsKey returns the key for the set of all snapshotted sessions
func AllSessionsKey() string {
	return KeyAllSessions
}

// WidgetKey returns the Redis key for a widget by name
func WidgetKey(name string) string {
	return KeyPrefixWidget + name
}

// AllWidgetsKey returns the key for the set of all widget names
func AllWidgetsKey() string {
	return KeyAllWidgets
}

// FailedFeedbackKey returns the key of the failed feedback list
func FailedFeedbackKey() string {
	return KeyFailedFeedback
}
