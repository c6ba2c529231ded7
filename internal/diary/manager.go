// Package diary hosts the live diary sessions of the service. It opens and
// resumes sessions, routes operations to them and snapshots them to the
// cache after every change.
package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
)

// Store is the durable store as seen by the manager.
type Store interface {
	session.Store
	UpsertDiary(ctx context.Context, userID, date string, now time.Time) (*domain.Diary, error)
	GetDiary(ctx context.Context, id string) (*domain.Diary, error)
	Load(ctx context.Context, id string) (*domain.StoredDiary, error)
	ListDiaries(ctx context.Context, userID, from, to string) ([]*domain.Diary, error)
}

// SnapshotStore caches session snapshots. It is optional.
type SnapshotStore interface {
	SaveSession(ctx context.Context, snap session.Snapshot) error
	GetSession(ctx context.Context, diaryID string) (*session.Snapshot, error)
}

// Manager owns every live session.
type Manager struct {
	store     Store
	snapshots SnapshotStore
	index     *index.MemoryIndex
	deps      session.Deps
	logger    logger.Logger
	loads     singleflight.Group
}

// NewManager builds a manager. deps.Store is replaced by store; snapshots
// may be nil.
func NewManager(store Store, snapshots SnapshotStore, idx *index.MemoryIndex, deps session.Deps, log logger.Logger) *Manager {
	deps.Store = store
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		store:     store,
		snapshots: snapshots,
		index:     idx,
		deps:      deps,
		logger:    log,
	}
}

// Deps returns the collaborators handed to sessions.
func (m *Manager) Deps() session.Deps { return m.deps }

// Open returns the session of a user's day, creating the diary on first
// use. Opening the same day twice yields the same diary.
func (m *Manager) Open(ctx context.Context, userID, date string) (session.View, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return session.View{}, domain.Invalid("userId", "required")
	}
	day, err := domain.ParseDate(date)
	if err != nil {
		return session.View{}, err
	}

	if id, ok := m.index.LookupDay(userID, day); ok {
		if s, ok := m.index.GetSession(id); ok {
			return s.View(), nil
		}
	}

	d, err := m.store.UpsertDiary(ctx, userID, day, m.deps.Now())
	if err != nil {
		return session.View{}, domain.Unavailable("persistence", "open diary", err)
	}

	s, err := m.session(ctx, d.ID)
	if err != nil {
		return session.View{}, err
	}

	m.logger.Info("diary opened",
		logger.String("diary_id", d.ID),
		logger.String("user_id", userID),
		logger.String("date", day),
		logger.String("state", string(s.State())))

	return s.View(), nil
}

// Get returns the view of a diary session.
func (m *Manager) Get(ctx context.Context, diaryID string) (session.View, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return session.View{}, err
	}
	return s.View(), nil
}

// List returns a user's diaries between two days, for calendar display.
func (m *Manager) List(ctx context.Context, userID, from, to string) ([]*domain.Diary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("userId", "required")
	}
	var err error
	if from != "" {
		if from, err = domain.ParseDate(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if to, err = domain.ParseDate(to); err != nil {
			return nil, err
		}
	}
	diaries, err := m.store.ListDiaries(ctx, userID, from, to)
	if err != nil {
		return nil, domain.Unavailable("persistence", "list diaries", err)
	}
	return diaries, nil
}

// AddCard adds a card to a diary.
func (m *Manager) AddCard(ctx context.Context, diaryID string, in domain.CardInput) (*domain.Card, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	card, err := s.AddCard(ctx, in)
	if err != nil {
		return nil, err
	}
	m.save(ctx, s)
	return card, nil
}

// DeleteCard removes a card from a diary.
func (m *Manager) DeleteCard(ctx context.Context, diaryID, cardID string) error {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return err
	}
	if err := s.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	m.save(ctx, s)
	return nil
}

// Suggest requests an AI layout for a diary.
func (m *Manager) Suggest(ctx context.Context, diaryID string) (domain.Layout, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	layout, err := s.RequestSuggestion(ctx)
	if err != nil {
		return nil, err
	}
	m.save(ctx, s)
	return layout, nil
}

// MoveResult is returned by Move.
type MoveResult struct {
	Layout  domain.Layout `json:"layout"`
	Evicted string        `json:"evictedCardId,omitempty"`
	State   session.State `json:"state"`
}

// Move places a card in the user layout.
func (m *Manager) Move(ctx context.Context, diaryID, cardID string, row, col int) (*MoveResult, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	evicted, err := s.MoveCard(ctx, cardID, row, col)
	if err != nil {
		return nil, err
	}
	m.save(ctx, s)
	return &MoveResult{
		Layout:  s.Layout(domain.WhichUser),
		Evicted: evicted,
		State:   s.State(),
	}, nil
}

// Layout exports one of the layouts of a diary.
func (m *Manager) Layout(ctx context.Context, diaryID string, which domain.Which) (domain.Layout, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	return s.Layout(which), nil
}

// Reward previews the reward of a diary's current layouts.
func (m *Manager) Reward(ctx context.Context, diaryID string) (domain.RewardResult, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return domain.RewardResult{}, err
	}
	return s.Reward(), nil
}

// Finalize finalizes a diary.
func (m *Manager) Finalize(ctx context.Context, diaryID, finalText string) (*session.FinalizeResult, error) {
	s, err := m.session(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	res, err := s.Finalize(ctx, finalText)
	if err != nil {
		return nil, err
	}
	m.save(ctx, s)
	return res, nil
}

// SaveSnapshot writes the snapshot of a live session, if any. It is used
// before a session is evicted from memory.
func (m *Manager) SaveSnapshot(ctx context.Context, diaryID string) {
	if s, ok := m.index.GetSession(diaryID); ok {
		m.save(ctx, s)
	}
}

// session finds a live session, then a cached snapshot, then the durable
// record. Concurrent loads of one diary share a single lookup.
func (m *Manager) session(ctx context.Context, diaryID string) (*session.Session, error) {
	if strings.TrimSpace(diaryID) == "" {
		return nil, domain.Invalid("diaryId", "required")
	}
	if s, ok := m.index.GetSession(diaryID); ok {
		return s, nil
	}

	v, err, _ := m.loads.Do(diaryID, func() (interface{}, error) {
		if s, ok := m.index.GetSession(diaryID); ok {
			return s, nil
		}
		s, err := m.load(ctx, diaryID)
		if err != nil {
			return nil, err
		}
		m.index.PutSession(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (m *Manager) load(ctx context.Context, diaryID string) (*session.Session, error) {
	if m.snapshots != nil {
		snap, err := m.snapshots.GetSession(ctx, diaryID)
		switch {
		case err == nil:
			return m.fromSnapshot(ctx, *snap)
		case !errors.Is(err, domain.ErrDiaryNotFound):
			m.logger.Warn("failed to read session snapshot, falling back to database",
				logger.String("diary_id", diaryID),
				logger.Error(err))
		}
	}
	return m.fromDatabase(ctx, diaryID)
}

// RestoreSnapshot makes a cached snapshot live, unless the durable record
// is newer. Used at startup to warm the index.
func (m *Manager) RestoreSnapshot(ctx context.Context, snap session.Snapshot) error {
	if _, ok := m.index.GetSession(snap.Diary.ID); ok {
		return nil
	}
	s, err := m.fromSnapshot(ctx, snap)
	if err != nil {
		return err
	}
	m.index.PutSession(s)
	return nil
}

// fromSnapshot restores snap when it is at least as recent as the durable
// record. A snapshot written before a finalize or any later write is stale:
// snapshot writes may fail while the database write succeeded.
func (m *Manager) fromSnapshot(ctx context.Context, snap session.Snapshot) (*session.Session, error) {
	id := snap.Diary.ID
	current, err := m.store.GetDiary(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDiaryNotFound) {
			return nil, err
		}
		return nil, domain.Unavailable("persistence", "load diary", fmt.Errorf("diary %s: %w", id, err))
	}

	if stale(snap.Diary, current) {
		m.logger.Info("session snapshot is stale, rebuilding from database",
			logger.String("diary_id", id),
			logger.String("snapshot_status", string(snap.Diary.Status)),
			logger.String("database_status", string(current.Status)),
			logger.Time("snapshot_updated_at", snap.Diary.UpdatedAt),
			logger.Time("database_updated_at", current.UpdatedAt))
		return m.fromDatabase(ctx, id)
	}

	m.logger.Debug("session restored from cache",
		logger.String("diary_id", id))
	return session.Restore(snap, m.deps, m.logger), nil
}

func stale(cached domain.Diary, current *domain.Diary) bool {
	if current.Finalized() && !cached.Finalized() {
		return true
	}
	return current.UpdatedAt.After(cached.UpdatedAt)
}

func (m *Manager) fromDatabase(ctx context.Context, diaryID string) (*session.Session, error) {
	stored, err := m.store.Load(ctx, diaryID)
	if err != nil {
		if errors.Is(err, domain.ErrDiaryNotFound) {
			return nil, err
		}
		return nil, domain.Unavailable("persistence", "load diary", fmt.Errorf("diary %s: %w", diaryID, err))
	}
	return session.Resume(*stored, m.deps, m.logger), nil
}

// save snapshots a session. Cache failures are logged only.
func (m *Manager) save(ctx context.Context, s *session.Session) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveSession(ctx, s.Snapshot()); err != nil {
		m.logger.Warn("failed to snapshot session",
			logger.String("diary_id", s.ID()),
			logger.Error(err))
	}
}
