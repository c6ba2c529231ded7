package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format of Diary.Date.
const DateLayout = "2006-01-02"

// Status is the persisted lifecycle of a diary.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"

	// statusCompleted is a legacy spelling of StatusFinalized. It is accepted
	// on read and rewritten by the store migration.
	statusCompleted Status = "completed"
)

// ParseStatus parses a stored status, folding the legacy "completed" into
// StatusFinalized.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusDraft, "":
		return StatusDraft, nil
	case StatusFinalized, statusCompleted:
		return StatusFinalized, nil
	}
	return "", Invalid("status", fmt.Sprintf("unknown status %q", raw))
}

// LegacyStatuses lists stored spellings that mean StatusFinalized.
func LegacyStatuses() []string { return []string{string(statusCompleted)} }

// MoodVector is a valence/arousal estimate, each axis in [-1, 1].
type MoodVector struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// NeutralMood is used whenever no sentiment estimate is available.
var NeutralMood = MoodVector{}

// Label-based estimates, used when the sentiment collaborator only
// returns a coarse label.
var (
	moodPositive = MoodVector{Valence: 0.7, Arousal: 0.4}
	moodNegative = MoodVector{Valence: -0.5, Arousal: 0.3}
	moodNeutral  = MoodVector{Valence: 0.1, Arousal: 0.1}
)

// MoodFromLabel maps a sentiment label to a vector. Unknown labels,
// including "error", map to NeutralMood.
func MoodFromLabel(label string) MoodVector {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive":
		return moodPositive
	case "negative":
		return moodNegative
	case "neutral":
		return moodNeutral
	default:
		return NeutralMood
	}
}

// Clamp bounds both axes to [-1, 1].
func (m MoodVector) Clamp() MoodVector {
	return MoodVector{Valence: clamp(m.Valence), Arousal: clamp(m.Arousal)}
}

// Emoji picks the calendar emoji for the vector.
func (m MoodVector) Emoji() string {
	const t = 0.3
	v, a := m.Valence, m.Arousal
	switch {
	case v > t && a > t:
		return "😊"
	case v > t && a < -t:
		return "😌"
	case v < -t && a > t:
		return "😠"
	case v < -t && a < -t:
		return "😔"
	case v > t:
		return "🙂"
	default:
		return "😐"
	}
}

func clamp(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}

// Diary is one user's entry for one calendar day. (UserID, Date) is unique.
type Diary struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Date      string      `json:"date"` // DateLayout
	Status    Status      `json:"status"`
	Mood      *MoodVector `json:"moodVector,omitempty"` // set once finalized
	FinalText string      `json:"finalText,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Finalized reports whether the diary reached its terminal status.
func (d *Diary) Finalized() bool { return d.Status == StatusFinalized }

// ParseDate normalizes a calendar day to DateLayout.
func ParseDate(raw string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", Invalid("date", "expected YYYY-MM-DD")
	}
	return t.Format(DateLayout), nil
}
