package domain

import "unicode/utf8"

// FeedbackType tells the learning collaborator what the user did.
type FeedbackType string

const (
	FeedbackSave       FeedbackType = "save"
	FeedbackRegenerate FeedbackType = "regenerate"
)

// FeedbackDetails is the body of a feedback record.
type FeedbackDetails struct {
	UserID           string       `json:"userId"`
	OriginalLayout   Layout       `json:"originalLayout"`
	UserLayout       Layout       `json:"userLayout"` // null when the user never diverged
	LayoutReward     float64      `json:"layoutReward"`
	LayoutDifference float64      `json:"layoutDifference"`
	RewardDetails    RewardResult `json:"rewardDetails"`
	FinalTextLength  int          `json:"finalTextLength"`
	MoodVector       MoodVector   `json:"moodVector"`
	RelatedCardID    string       `json:"relatedCardId,omitempty"`
}

// Feedback is the record sent to the learning collaborator.
type Feedback struct {
	DiaryID      string          `json:"diaryId"`
	FeedbackType FeedbackType    `json:"feedbackType"`
	Details      FeedbackDetails `json:"details"`
}

// NewSaveFeedback packages a finalized diary. relatedCardID is the first
// card added to the diary, or empty.
func NewSaveFeedback(d *Diary, ai, user Layout, reward RewardResult, relatedCardID string) Feedback {
	mood := NeutralMood
	if d.Mood != nil {
		mood = *d.Mood
	}
	return Feedback{
		DiaryID:      d.ID,
		FeedbackType: FeedbackSave,
		Details: FeedbackDetails{
			UserID:           d.UserID,
			OriginalLayout:   ai.Clone(),
			UserLayout:       user.Clone(),
			LayoutReward:     reward.Reward,
			LayoutDifference: reward.Difference,
			RewardDetails:    reward,
			FinalTextLength:  utf8.RuneCountInString(d.FinalText),
			MoodVector:       mood,
			RelatedCardID:    relatedCardID,
		},
	}
}

// NewRegenerateFeedback reports a suggestion the user threw away by asking
// for a new one. ai and user are the layouts being replaced and reward
// scores them.
func NewRegenerateFeedback(d *Diary, ai, user Layout, reward RewardResult) Feedback {
	return Feedback{
		DiaryID:      d.ID,
		FeedbackType: FeedbackRegenerate,
		Details: FeedbackDetails{
			UserID:           d.UserID,
			OriginalLayout:   ai.Clone(),
			UserLayout:       user.Clone(),
			LayoutReward:     reward.Reward,
			LayoutDifference: reward.Difference,
			RewardDetails:    reward,
			MoodVector:       NeutralMood,
		},
	}
}
