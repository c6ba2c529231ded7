// Package sqlstore is the durable diary and card store, backed by gorm on
// sqlite or postgres.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures the database.
type Options struct {
	Driver        string // DriverSQLite or DriverPostgres
	DSN           string
	SlowThreshold time.Duration
}

// Store implements the persistence collaborator of a diary session.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open connects to the database and runs migrations.
func Open(opts Options, log logger.Logger) (*Store, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(
			gormWriter{log},
			gormLogger.Config{
				SlowThreshold:             slow,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// A single connection keeps ":memory:" databases shared and
		// serializes writers.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db, logger: log}
	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	log.Info("database ready",
		logger.String("driver", opts.Driver))
	return s, nil
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), nil
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres requires a DSN")
		}
		return postgres.Open(opts.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
}

// gormWriter sends gorm's slow query and error lines to the service logger.
type gormWriter struct {
	logger logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warnf(format, args...)
}

// Migrate creates the tables and rewrites legacy terminal statuses.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&diaryRecord{}, &cardRecord{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	res := db.Model(&diaryRecord{}).
		Where("status IN ?", domain.LegacyStatuses()).
		Update("status", string(domain.StatusFinalized))
	if res.Error != nil {
		return fmt.Errorf("failed to migrate legacy statuses: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("legacy diary statuses rewritten",
			logger.Int64("rows", res.RowsAffected),
			logger.String("status", string(domain.StatusFinalized)))
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertDiary returns the diary of (userID, date), creating a draft when
// none exists.
func (s *Store) UpsertDiary(ctx context.Context, userID, date string, now time.Time) (*domain.Diary, error) {
	var rec diaryRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND date = ?", userID, date).First(&rec).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rec = diaryRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			Date:      date,
			Status:    string(domain.StatusDraft),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert diary: %w", err)
	}
	return rec.toDomain()
}

// GetDiary loads a diary row without its cards.
func (s *Store) GetDiary(ctx context.Context, id string) (*domain.Diary, error) {
	rec, err := s.diary(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// Load returns a diary with its cards and stored layouts.
func (s *Store) Load(ctx context.Context, id string) (*domain.StoredDiary, error) {
	rec, err := s.diary(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	d, err := rec.toDomain()
	if err != nil {
		return nil, err
	}

	var cards []cardRecord
	if err := s.db.WithContext(ctx).
		Where("diary_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}

	out := &domain.StoredDiary{Diary: d, Cards: make([]*domain.Card, 0, len(cards))}
	for i := range cards {
		out.Cards = append(out.Cards, cards[i].toDomain())
	}
	if out.AILayout, err = decodeLayout(rec.AILayout); err != nil {
		return nil, fmt.Errorf("failed to decode ai layout: %w", err)
	}
	if out.UserLayout, err = decodeLayout(rec.UserLayout); err != nil {
		return nil, fmt.Errorf("failed to decode user layout: %w", err)
	}
	if len(rec.RewardDetails) > 0 {
		var r domain.RewardResult
		if err := json.Unmarshal(rec.RewardDetails, &r); err != nil {
			return nil, fmt.Errorf("failed to decode reward: %w", err)
		}
		out.Reward = &r
	}
	return out, nil
}

// ListDiaries returns a user's diaries between two calendar days
// (inclusive), oldest first. Empty bounds are open.
func (s *Store) ListDiaries(ctx context.Context, userID, from, to string) ([]*domain.Diary, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}

	var recs []diaryRecord
	if err := q.Order("date ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list diaries: %w", err)
	}

	out := make([]*domain.Diary, 0, len(recs))
	for i := range recs {
		d, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveCard inserts a new card. The diary must exist; its updated_at moves
// to the card's creation time.
func (s *Store) SaveCard(ctx context.Context, card *domain.Card) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.diary(ctx, tx, card.DiaryID); err != nil {
			return err
		}
		rec := cardFromDomain(card)
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to save card: %w", err)
		}
		return touch(tx, card.DiaryID, card.CreatedAt)
	})
}

// DeleteCard removes a card of a diary. Cards of a finalized diary are
// never deleted.
func (s *Store) DeleteCard(ctx context.Context, diaryID, cardID string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.diary(ctx, tx, diaryID)
		if err != nil {
			return err
		}
		status, err := domain.ParseStatus(rec.Status)
		if err != nil {
			return err
		}
		if status == domain.StatusFinalized {
			return fmt.Errorf("%w: %s", domain.ErrCardLocked, cardID)
		}

		res := tx.Where("id = ? AND diary_id = ?", cardID, diaryID).Delete(&cardRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete card: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
		}
		return touch(tx, diaryID, at)
	})
}

// SaveLayouts writes both layouts of a diary that is still being composed,
// along with the rendered card positions.
func (s *Store) SaveLayouts(ctx context.Context, l domain.LayoutSave) error {
	ai, err := encodeLayout(l.AILayout)
	if err != nil {
		return err
	}
	user, err := encodeLayout(l.UserLayout)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&diaryRecord{}).Where("id = ?", l.DiaryID).Updates(map[string]any{
			"ai_layout":   ai,
			"user_layout": user,
			"updated_at":  l.At,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to save layouts: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrDiaryNotFound, l.DiaryID)
		}
		return savePositions(tx, l.DiaryID, l.LayoutType, l.Cards, false)
	})
}

// SaveFinalization writes the diary row and every card position in one
// transaction.
func (s *Store) SaveFinalization(ctx context.Context, f domain.Finalization) error {
	d := f.Diary
	ai, err := encodeLayout(f.AILayout)
	if err != nil {
		return err
	}
	user, err := encodeLayout(f.UserLayout)
	if err != nil {
		return err
	}
	details, err := json.Marshal(f.Reward)
	if err != nil {
		return fmt.Errorf("failed to marshal reward: %w", err)
	}

	updates := map[string]any{
		"status":            string(d.Status),
		"final_text":        d.FinalText,
		"mood_valence":      nil,
		"mood_arousal":      nil,
		"ai_layout":         ai,
		"user_layout":       user,
		"layout_reward":     f.Reward.Reward,
		"layout_difference": f.Reward.Difference,
		"reward_details":    datatypes.JSON(details),
		"updated_at":        d.UpdatedAt,
	}
	if d.Mood != nil {
		updates["mood_valence"] = d.Mood.Valence
		updates["mood_arousal"] = d.Mood.Arousal
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&diaryRecord{}).Where("id = ?", d.ID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update diary: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrDiaryNotFound, d.ID)
		}

		return savePositions(tx, d.ID, f.LayoutType, f.Cards, true)
	})
}

// savePositions writes the cell of every card. final also records the
// card text as finalized.
func savePositions(tx *gorm.DB, diaryID string, layoutType domain.LayoutType, cards []*domain.Card, final bool) error {
	for _, c := range cards {
		cols := map[string]any{
			"layout_type": string(layoutType),
			"row":         nil,
			"col":         nil,
			"order_index": nil,
		}
		if final {
			cols["text_final"] = c.Content
		}
		if c.Position != nil {
			cols["row"] = c.Position.Row
			cols["col"] = c.Position.Col
			cols["order_index"] = c.Position.OrderIndex
		}
		if err := tx.Model(&cardRecord{}).
			Where("id = ? AND diary_id = ?", c.ID, diaryID).
			Updates(cols).Error; err != nil {
			return fmt.Errorf("failed to update card %s: %w", c.ID, err)
		}
	}
	return nil
}

func touch(tx *gorm.DB, diaryID string, at time.Time) error {
	if err := tx.Model(&diaryRecord{}).Where("id = ?", diaryID).Update("updated_at", at).Error; err != nil {
		return fmt.Errorf("failed to touch diary: %w", err)
	}
	return nil
}

func (s *Store) diary(ctx context.Context, db *gorm.DB, id string) (*diaryRecord, error) {
	var rec diaryRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDiaryNotFound, id)
		}
		return nil, fmt.Errorf("failed to get diary: %w", err)
	}
	return &rec, nil
}

func (r *diaryRecord) toDomain() (*domain.Diary, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("diary %s: %w", r.ID, err)
	}
	d := &domain.Diary{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date,
		Status:    status,
		FinalText: r.FinalText,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.MoodValence != nil && r.MoodArousal != nil {
		d.Mood = &domain.MoodVector{Valence: *r.MoodValence, Arousal: *r.MoodArousal}
	}
	return d, nil
}

func cardFromDomain(c *domain.Card) cardRecord {
	rec := cardRecord{
		ID:            c.ID,
		DiaryID:       c.DiaryID,
		SourceType:    string(c.SourceType),
		Category:      c.Category,
		Content:       c.Content,
		ImageURL:      c.ImageURL,
		Widget:        c.Widget,
		TextGenerated: c.Content,
		CreatedAt:     c.CreatedAt,
	}
	if c.Position != nil {
		row, col, idx := c.Position.Row, c.Position.Col, c.Position.OrderIndex
		rec.Row, rec.Col, rec.OrderIndex = &row, &col, &idx
	}
	return rec
}

func (r *cardRecord) toDomain() *domain.Card {
	c := &domain.Card{
		ID:         r.ID,
		DiaryID:    r.DiaryID,
		SourceType: domain.SourceType(r.SourceType),
		Category:   r.Category,
		Content:    r.Content,
		ImageURL:   r.ImageURL,
		Widget:     r.Widget,
		CreatedAt:  r.CreatedAt,
	}
	if r.Row != nil && r.Col != nil {
		p := domain.Position{Row: *r.Row, Col: *r.Col}
		if r.OrderIndex != nil {
			p.OrderIndex = *r.OrderIndex
		}
		c.Position = &p
	}
	return c
}

func encodeLayout(l domain.Layout) (datatypes.JSON, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal layout: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeLayout(raw datatypes.JSON) (domain.Layout, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var l domain.Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	if l == nil {
		l = domain.Layout{}
	}
	return l, nil
}
