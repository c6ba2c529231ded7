package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

var testNow = time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Driver: DriverSQLite, DSN: ":memory:"}, logger.New("error", false))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCard(t *testing.T, diaryID string, src domain.SourceType, content string) *domain.Card {
	t.Helper()
	c, err := domain.NewCard(diaryID, domain.CardInput{SourceType: src, Content: content}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestUpsertDiaryIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("second upsert created a new diary: %s != %s", first.ID, second.ID)
	}
	if second.Status != domain.StatusDraft {
		t.Errorf("status = %q, want draft", second.Status)
	}

	other, err := s.UpsertDiary(ctx, "u1", "2024-05-02", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("different day reused the same diary")
	}
}

func TestSaveCardRequiresDiary(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveCard(context.Background(), newCard(t, "missing", domain.SourceChrome, "x"))
	if !errors.Is(err, domain.ErrDiaryNotFound) {
		t.Errorf("SaveCard() error = %v, want ErrDiaryNotFound", err)
	}
}

func TestDeleteCard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d, _ := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)
	c := newCard(t, d.ID, domain.SourceChrome, "page")
	if err := s.SaveCard(ctx, c); err != nil {
		t.Fatal(err)
	}

	deletedAt := testNow.Add(time.Minute)
	if err := s.DeleteCard(ctx, d.ID, c.ID, deletedAt); err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	if err := s.DeleteCard(ctx, d.ID, c.ID, deletedAt); !errors.Is(err, domain.ErrCardNotFound) {
		t.Errorf("second DeleteCard() error = %v, want ErrCardNotFound", err)
	}
	got, err := s.GetDiary(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(deletedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, deletedAt)
	}
}

func TestDeleteCardOfFinalizedDiaryIsLocked(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"finalized", string(domain.StatusFinalized)},
		{"legacy completed", "completed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			ctx := context.Background()
			d, _ := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)
			c := newCard(t, d.ID, domain.SourceChrome, "page")
			if err := s.SaveCard(ctx, c); err != nil {
				t.Fatal(err)
			}
			if err := s.db.Model(&diaryRecord{}).Where("id = ?", d.ID).Update("status", tt.status).Error; err != nil {
				t.Fatal(err)
			}

			if err := s.DeleteCard(ctx, d.ID, c.ID, testNow); !errors.Is(err, domain.ErrCardLocked) {
				t.Fatalf("DeleteCard() error = %v, want ErrCardLocked", err)
			}
			stored, err := s.Load(ctx, d.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(stored.Cards) != 1 {
				t.Errorf("cards after refused delete = %d, want 1", len(stored.Cards))
			}
		})
	}
}

func TestSaveLayoutsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d, _ := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)
	a := newCard(t, d.ID, domain.SourceChrome, "a")
	b := newCard(t, d.ID, domain.SourceImage, "")
	b.CreatedAt = testNow.Add(time.Second)
	for _, c := range []*domain.Card{a, b} {
		if err := s.SaveCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	ai := domain.Layout{a.ID: {Row: 0, Col: 0}, b.ID: {Row: 0, Col: 1}}
	user := domain.Layout{a.ID: {Row: 2, Col: 3}}
	a.Position = &domain.Position{Row: 2, Col: 3}
	savedAt := testNow.Add(time.Hour)

	err := s.SaveLayouts(ctx, domain.LayoutSave{
		DiaryID:    d.ID,
		AILayout:   ai,
		UserLayout: user,
		Cards:      []*domain.Card{a, b},
		LayoutType: domain.LayoutTypeUser,
		At:         savedAt,
	})
	if err != nil {
		t.Fatalf("SaveLayouts() error = %v", err)
	}

	got, err := s.Load(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Diary.Finalized() {
		t.Error("saving layouts finalized the diary")
	}
	if !got.Diary.UpdatedAt.Equal(savedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.Diary.UpdatedAt, savedAt)
	}
	if got.AILayout[b.ID] != ai[b.ID] || len(got.UserLayout) != 1 || got.UserLayout[a.ID] != user[a.ID] {
		t.Errorf("layouts = ai %v user %v", got.AILayout, got.UserLayout)
	}
	if got.Cards[0].Position == nil || *got.Cards[0].Position != *a.Position {
		t.Errorf("moved card position = %v", got.Cards[0].Position)
	}
	if got.Cards[1].Position != nil {
		t.Errorf("evicted card position = %v, want unplaced", got.Cards[1].Position)
	}

	var rec cardRecord
	if err := s.db.Where("id = ?", a.ID).First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if rec.LayoutType != string(domain.LayoutTypeUser) || rec.TextFinal != nil {
		t.Errorf("card record = %+v", rec)
	}

	err = s.SaveLayouts(ctx, domain.LayoutSave{DiaryID: "missing", LayoutType: domain.LayoutTypeAI, At: savedAt})
	if !errors.Is(err, domain.ErrDiaryNotFound) {
		t.Errorf("SaveLayouts(missing) error = %v", err)
	}
}

func TestSaveFinalizationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d, _ := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)
	a := newCard(t, d.ID, domain.SourceWidget, "headline")
	b := newCard(t, d.ID, domain.SourceImage, "")
	b.CreatedAt = testNow.Add(time.Second)
	unplaced := newCard(t, d.ID, domain.SourceChrome, "tab")
	unplaced.CreatedAt = testNow.Add(2 * time.Second)
	for _, c := range []*domain.Card{a, b, unplaced} {
		if err := s.SaveCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	ai := domain.Layout{a.ID: {Row: 0, Col: 0}, b.ID: {Row: 0, Col: 1}}
	user := domain.Layout{a.ID: {Row: 2, Col: 3}, b.ID: {Row: 0, Col: 1}}
	reward := domain.CalculateReward(ai, user)

	a.Position = &domain.Position{Row: 2, Col: 3}
	b.Position = &domain.Position{Row: 0, Col: 1}

	final := *d
	final.Status = domain.StatusFinalized
	final.FinalText = "a good day"
	final.Mood = &domain.MoodVector{Valence: 0.7, Arousal: 0.4}
	final.UpdatedAt = testNow.Add(time.Hour)

	err := s.SaveFinalization(ctx, domain.Finalization{
		Diary:      &final,
		AILayout:   ai,
		UserLayout: user,
		Reward:     reward,
		Cards:      []*domain.Card{a, b, unplaced},
		LayoutType: domain.LayoutTypeUser,
	})
	if err != nil {
		t.Fatalf("SaveFinalization() error = %v", err)
	}

	got, err := s.Load(ctx, d.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Diary.Finalized() || got.Diary.FinalText != "a good day" {
		t.Errorf("diary = %+v", got.Diary)
	}
	if got.Diary.Mood == nil || *got.Diary.Mood != *final.Mood {
		t.Errorf("mood = %v, want %v", got.Diary.Mood, final.Mood)
	}
	if len(got.AILayout) != 2 || got.AILayout[a.ID] != ai[a.ID] {
		t.Errorf("ai layout = %v", got.AILayout)
	}
	if got.UserLayout[a.ID] != user[a.ID] {
		t.Errorf("user layout = %v", got.UserLayout)
	}
	if got.Reward == nil || got.Reward.Reward != -50 {
		t.Errorf("reward = %+v, want -50", got.Reward)
	}

	if len(got.Cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(got.Cards))
	}
	if got.Cards[0].ID != a.ID || got.Cards[0].Position == nil || *got.Cards[0].Position != *a.Position {
		t.Errorf("first card = %+v", got.Cards[0])
	}
	if got.Cards[2].Position != nil {
		t.Errorf("unplaced card has position %v", got.Cards[2].Position)
	}

	var rec cardRecord
	if err := s.db.Where("id = ?", a.ID).First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if rec.LayoutType != string(domain.LayoutTypeUser) || rec.TextFinal == nil || *rec.TextFinal != "headline" {
		t.Errorf("card record = %+v", rec)
	}
}

func TestSaveFinalizationUnknownDiary(t *testing.T) {
	s := openTestStore(t)
	d := &domain.Diary{ID: "missing", Status: domain.StatusFinalized, FinalText: "x"}
	err := s.SaveFinalization(context.Background(), domain.Finalization{Diary: d, LayoutType: domain.LayoutTypeAI})
	if !errors.Is(err, domain.ErrDiaryNotFound) {
		t.Errorf("error = %v, want ErrDiaryNotFound", err)
	}
}

func TestLoadWithoutLayouts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d, _ := s.UpsertDiary(ctx, "u1", "2024-05-01", testNow)

	got, err := s.Load(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AILayout != nil || got.UserLayout != nil || got.Reward != nil {
		t.Errorf("fresh diary loaded with layouts: %+v", got)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, domain.ErrDiaryNotFound) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestMigrateRewritesLegacyStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	legacy := diaryRecord{ID: "d-old", UserID: "u1", Date: "2023-12-31", Status: "completed", CreatedAt: testNow, UpdatedAt: testNow}
	if err := s.db.Create(&legacy).Error; err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var rec diaryRecord
	if err := s.db.Where("id = ?", "d-old").First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if rec.Status != string(domain.StatusFinalized) {
		t.Errorf("stored status = %q, want finalized", rec.Status)
	}
}

func TestListDiaries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, day := range []string{"2024-05-03", "2024-05-01", "2024-05-02", "2024-06-01"} {
		if _, err := s.UpsertDiary(ctx, "u1", day, testNow); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.UpsertDiary(ctx, "u2", "2024-05-01", testNow); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"open range", "", "", []string{"2024-05-01", "2024-05-02", "2024-05-03", "2024-06-01"}},
		{"may only", "2024-05-01", "2024-05-31", []string{"2024-05-01", "2024-05-02", "2024-05-03"}},
		{"from only", "2024-05-03", "", []string{"2024-05-03", "2024-06-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListDiaries(ctx, "u1", tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d diaries, want %d", len(got), len(tt.want))
			}
			for i, d := range got {
				if d.Date != tt.want[i] {
					t.Errorf("got[%d].Date = %s, want %s", i, d.Date, tt.want[i])
				}
			}
		})
	}
}
