package sqlstore

import (
	"time"

	"gorm.io/datatypes"
)

// diaryRecord is the diaries table. (user_id, date) is unique.
type diaryRecord struct {
	ID               string         `gorm:"primaryKey;size:36"`
	UserID           string         `gorm:"size:128;not null;uniqueIndex:idx_diaries_user_date,priority:1"`
	Date             string         `gorm:"size:10;not null;uniqueIndex:idx_diaries_user_date,priority:2"`
	Status           string         `gorm:"size:16;not null;default:draft;index"`
	MoodValence      *float64       `gorm:"column:mood_valence"`
	MoodArousal      *float64       `gorm:"column:mood_arousal"`
	FinalText        string         `gorm:"type:text"`
	AILayout         datatypes.JSON `gorm:"column:ai_layout"`
	UserLayout       datatypes.JSON `gorm:"column:user_layout"`
	LayoutReward     *float64       `gorm:"column:layout_reward"`
	LayoutDifference *float64       `gorm:"column:layout_difference"`
	RewardDetails    datatypes.JSON `gorm:"column:reward_details"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (diaryRecord) TableName() string { return "diaries" }

// cardRecord is the cards table. Row, Col and OrderIndex are NULL while
// the card is unplaced.
type cardRecord struct {
	ID            string  `gorm:"primaryKey;size:36"`
	DiaryID       string  `gorm:"size:36;not null;index"`
	SourceType    string  `gorm:"size:16;not null"`
	Category      string  `gorm:"size:64"`
	Content       string  `gorm:"type:text"`
	ImageURL      string  `gorm:"column:image_url;type:text"`
	Widget        string  `gorm:"size:64"`
	LayoutType    string  `gorm:"column:layout_type;size:8"`
	Row           *int    `gorm:"column:row"`
	Col           *int    `gorm:"column:col"`
	OrderIndex    *int    `gorm:"column:order_index"`
	TextGenerated string  `gorm:"column:text_generated;type:text"`
	TextFinal     *string `gorm:"column:text_final;type:text"`
	CreatedAt     time.Time
}

func (cardRecord) TableName() string { return "cards" }
