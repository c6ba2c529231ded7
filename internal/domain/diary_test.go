package domain

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "draft", want: StatusDraft},
		{raw: "", want: StatusDraft},
		{raw: "finalized", want: StatusFinalized},
		{raw: "completed", want: StatusFinalized},
		{raw: "COMPLETED", want: StatusFinalized},
		{raw: "archived", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatus() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMoodFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  MoodVector
	}{
		{"positive", MoodVector{Valence: 0.7, Arousal: 0.4}},
		{"negative", MoodVector{Valence: -0.5, Arousal: 0.3}},
		{"neutral", MoodVector{Valence: 0.1, Arousal: 0.1}},
		{"error", NeutralMood},
		{"", NeutralMood},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := MoodFromLabel(tt.label); got != tt.want {
				t.Errorf("MoodFromLabel(%q) = %+v, want %+v", tt.label, got, tt.want)
			}
		})
	}
}

func TestMoodEmoji(t *testing.T) {
	tests := []struct {
		mood MoodVector
		want string
	}{
		{MoodVector{Valence: 0.7, Arousal: 0.4}, "😊"},
		{MoodVector{Valence: 0.5, Arousal: -0.5}, "😌"},
		{MoodVector{Valence: -0.5, Arousal: 0.5}, "😠"},
		{MoodVector{Valence: -0.5, Arousal: -0.5}, "😔"},
		{MoodVector{Valence: 0.5, Arousal: 0}, "🙂"},
		{NeutralMood, "😐"},
	}

	for _, tt := range tests {
		if got := tt.mood.Emoji(); got != tt.want {
			t.Errorf("%+v.Emoji() = %s, want %s", tt.mood, got, tt.want)
		}
	}
}

func TestMoodClamp(t *testing.T) {
	got := MoodVector{Valence: 1.7, Arousal: -3}.Clamp()
	if got != (MoodVector{Valence: 1, Arousal: -1}) {
		t.Errorf("Clamp() = %+v", got)
	}
}

func TestParseDate(t *testing.T) {
	if got, err := ParseDate("2025-03-14"); err != nil || got != "2025-03-14" {
		t.Errorf("ParseDate() = %q, %v", got, err)
	}
	if _, err := ParseDate("14/03/2025"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseDate() error = %v, want validation error", err)
	}
}

func TestNewSaveFeedback(t *testing.T) {
	mood := MoodVector{Valence: 0.7, Arousal: 0.4}
	d := &Diary{ID: "d1", UserID: "u1", FinalText: "오늘은 좋았다", Mood: &mood}
	ai := Layout{"A": {Row: 0, Col: 0}}
	reward := CalculateReward(ai, nil)

	fb := NewSaveFeedback(d, ai, nil, reward, "A")

	if fb.FeedbackType != FeedbackSave {
		t.Errorf("FeedbackType = %s", fb.FeedbackType)
	}
	if fb.Details.FinalTextLength != 7 {
		t.Errorf("FinalTextLength = %d, want 7 runes", fb.Details.FinalTextLength)
	}
	if fb.Details.UserLayout != nil {
		t.Error("UserLayout should stay nil when the user never diverged")
	}
	if fb.Details.LayoutReward != RewardUnmodified {
		t.Errorf("LayoutReward = %v", fb.Details.LayoutReward)
	}
	if fb.Details.RelatedCardID != "A" || fb.Details.MoodVector != mood {
		t.Errorf("details = %+v", fb.Details)
	}
}
