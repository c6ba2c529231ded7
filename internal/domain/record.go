package domain

import "time"

// LayoutType records which layout a persisted card position came from.
type LayoutType string

const (
	LayoutTypeAI   LayoutType = "ai"
	LayoutTypeUser LayoutType = "user"
)

// Finalization is everything written to durable storage when a diary is
// finalized. It is applied atomically.
type Finalization struct {
	Diary      *Diary
	AILayout   Layout
	UserLayout Layout
	Reward     RewardResult
	Cards      []*Card // positions as rendered
	LayoutType LayoutType
}

// LayoutSave is the grid state written after every suggestion and move,
// so a diary rebuilt from durable storage keeps both layouts.
type LayoutSave struct {
	DiaryID    string
	AILayout   Layout  // nil when never suggested
	UserLayout Layout  // nil when never edited
	Cards      []*Card // positions as rendered
	LayoutType LayoutType
	At         time.Time
}

// StoredDiary is a diary loaded back from durable storage.
type StoredDiary struct {
	Diary      *Diary
	Cards      []*Card // creation order
	AILayout   Layout  // nil when never suggested
	UserLayout Layout  // nil when never edited
	Reward     *RewardResult
}
