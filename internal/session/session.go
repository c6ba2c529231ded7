package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

// State is the composition state of a diary session.
type State string

const (
	StateDraft           State = "draft"
	StateLayoutSuggested State = "layout_suggested"
	StateLayoutEdited    State = "layout_edited"
	StateFinalized       State = "finalized"
)

// Session orchestrates one diary: card collection, layout suggestion,
// user edits, finalization and feedback.
//
// Calls are expected one at a time from a single user. The mutex only
// keeps concurrent HTTP requests from corrupting state; it is not a
// conflict resolution mechanism.
type Session struct {
	mu     sync.Mutex
	deps   Deps
	logger logger.Logger

	diary *domain.Diary
	cards []*domain.Card // insertion order
	grid  *domain.Grid
	state State

	// suggestSeq increments on every suggestion request and cardsRev on
	// every card set change; both detect stale suggestion responses.
	suggestSeq uint64
	cardsRev   uint64

	lastReward *domain.RewardResult
}

// New starts a session for a freshly opened diary.
func New(d *domain.Diary, deps Deps, log logger.Logger) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	state := StateDraft
	if d.Finalized() {
		state = StateFinalized
	}
	return &Session{
		deps:   deps,
		logger: log,
		diary:  d,
		grid:   domain.NewGrid(),
		state:  state,
	}
}

// Resume rebuilds a session from durable storage.
func Resume(stored domain.StoredDiary, deps Deps, log logger.Logger) *Session {
	s := New(stored.Diary, deps, log)
	ids := make([]string, 0, len(stored.Cards))
	for _, c := range stored.Cards {
		s.cards = append(s.cards, c)
		ids = append(ids, c.ID)
	}
	s.grid = domain.RestoreGrid(domain.GridState{
		Cards:     ids,
		Suggested: stored.AILayout != nil,
		Edited:    stored.UserLayout != nil,
		AI:        stored.AILayout,
		User:      stored.UserLayout,
	})
	s.lastReward = stored.Reward
	if s.state != StateFinalized {
		s.state = s.layoutState()
	}
	s.syncPositions()
	return s
}

// ID returns the diary id.
func (s *Session) ID() string { return s.diary.ID }

// Diary returns a copy of the diary record.
func (s *Session) Diary() domain.Diary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.diary
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddCard creates a card and persists it before keeping it. A persistence
// failure is returned and the card is dropped; the caller may retry.
func (s *Session) AddCard(ctx context.Context, in domain.CardInput) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolveWidget(&in); err != nil {
		return nil, err
	}
	card, err := domain.NewCard(s.diary.ID, in, s.deps.Now())
	if err != nil {
		return nil, err
	}

	if err := s.deps.Store.SaveCard(ctx, card); err != nil {
		return nil, wrapCollaborator("persistence", "save card", err)
	}

	s.cards = append(s.cards, card)
	s.grid.Track(card.ID)
	s.cardsRev++
	s.diary.UpdatedAt = card.CreatedAt

	s.logger.Debug("card added",
		logger.String("diary_id", s.diary.ID),
		logger.String("card_id", card.ID),
		logger.String("source", string(card.SourceType)))

	return copyCard(card), nil
}

// DeleteCard removes a card from a diary that is not finalized.
func (s *Session) DeleteCard(ctx context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFinalized {
		return domain.ErrCardLocked
	}
	idx := s.cardIndex(cardID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}

	now := s.deps.Now()
	if err := s.deps.Store.DeleteCard(ctx, s.diary.ID, cardID, now); err != nil {
		return wrapCollaborator("persistence", "delete card", err)
	}

	s.cards = append(s.cards[:idx], s.cards[idx+1:]...)
	s.grid.Forget(cardID)
	s.cardsRev++
	s.diary.UpdatedAt = now
	return nil
}

// RequestSuggestion asks the suggestion collaborator for a layout and
// imports it as the AI layout. The lock is released during the call; a
// response that comes back after a newer request started, or after the
// card set changed, is discarded with domain.ErrStaleSuggestion.
//
// Replacing an earlier suggestion queues regenerate feedback scoring the
// layouts being thrown away.
func (s *Session) RequestSuggestion(ctx context.Context) (domain.Layout, error) {
	s.mu.Lock()
	if !s.hasContent() {
		s.mu.Unlock()
		return nil, domain.Invalid("cards", "add at least one card with text or an image before requesting a layout")
	}
	s.suggestSeq++
	seq, rev := s.suggestSeq, s.cardsRev
	req := SuggestRequest{
		DiaryID: s.diary.ID,
		UserID:  s.diary.UserID,
		Cards:   copyCards(s.cards),
	}
	s.mu.Unlock()

	layout, err := s.deps.Suggester.SuggestLayout(ctx, req)
	if err != nil {
		return nil, wrapCollaborator("suggestion", "suggest layout", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.suggestSeq || rev != s.cardsRev {
		s.logger.Warn("discarding stale layout suggestion",
			logger.String("diary_id", s.diary.ID),
			logger.Uint64("request_seq", seq),
			logger.Uint64("current_seq", s.suggestSeq))
		return nil, domain.ErrStaleSuggestion
	}

	prev, prevState := s.grid.State(), s.state
	var regenerate *domain.Feedback
	if s.grid.HasSuggestion() && s.state != StateFinalized {
		var user domain.Layout
		if s.grid.Edited() {
			user = s.grid.Export(domain.WhichUser)
		}
		fb := domain.NewRegenerateFeedback(s.diary, s.grid.Export(domain.WhichAI), user, s.grid.Reward())
		regenerate = &fb
	}

	if err := s.grid.Import(layout); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "suggestion", Op: "suggest layout", Err: err}
	}
	if s.state != StateFinalized {
		s.state = StateLayoutSuggested
	}
	s.syncPositions()
	if err := s.saveLayouts(ctx); err != nil {
		s.rollback(prev, prevState)
		return nil, wrapCollaborator("persistence", "save layout", err)
	}

	if regenerate != nil && s.deps.Feedback != nil {
		s.deps.Feedback.Enqueue(*regenerate)
	}

	s.logger.Info("layout suggestion applied",
		logger.String("diary_id", s.diary.ID),
		logger.Int("placed", len(layout)),
		logger.Int("cards", len(s.cards)))

	return s.grid.Export(domain.WhichAI), nil
}

// MoveCard places a card in the user layout and persists both layouts. It
// returns the id of a card evicted from the target cell, if any. A
// persistence failure undoes the move.
func (s *Session) MoveCard(ctx context.Context, cardID string, row, col int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, prevState := s.grid.State(), s.state
	evicted, err := s.grid.Move(cardID, row, col)
	if err != nil {
		return "", err
	}
	if s.state != StateFinalized {
		s.state = s.layoutState()
	}
	s.syncPositions()
	if err := s.saveLayouts(ctx); err != nil {
		s.rollback(prev, prevState)
		return "", wrapCollaborator("persistence", "save layout", err)
	}
	return evicted, nil
}

// Layout exports the AI or user layout.
func (s *Session) Layout(which domain.Which) domain.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Export(which)
}

// Reward previews the reward of the current layouts.
func (s *Session) Reward() domain.RewardResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Reward()
}

// FinalizeResult is returned by a successful Finalize.
type FinalizeResult struct {
	Diary    domain.Diary        `json:"diary"`
	Reward   domain.RewardResult `json:"reward"`
	Emoji    string              `json:"emoji"`
	Enqueued bool                `json:"feedbackEnqueued"`
}

// Finalize saves the narrative text, estimates the mood, scores the layout,
// persists everything and hands feedback to the dispatcher.
//
// Sentiment failures fall back to domain.NeutralMood. A persistence failure
// is returned and leaves the session as it was. Feedback dispatch never
// affects the result.
func (s *Session) Finalize(ctx context.Context, finalText string) (*FinalizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(finalText) == "" {
		return nil, domain.Invalid("finalText", "must not be empty")
	}

	mood := s.analyze(ctx, finalText)
	reward := s.grid.Reward()

	updated := *s.diary
	updated.Status = domain.StatusFinalized
	updated.FinalText = finalText
	updated.Mood = &mood
	updated.UpdatedAt = s.deps.Now()

	layoutType := domain.LayoutTypeAI
	if s.grid.Edited() {
		layoutType = domain.LayoutTypeUser
	}

	var ai, user domain.Layout
	if s.grid.HasSuggestion() {
		ai = s.grid.Export(domain.WhichAI)
	}
	if s.grid.Edited() {
		user = s.grid.Export(domain.WhichUser)
	}

	err := s.deps.Store.SaveFinalization(ctx, domain.Finalization{
		Diary:      &updated,
		AILayout:   ai,
		UserLayout: user,
		Reward:     reward,
		Cards:      copyCards(s.cards),
		LayoutType: layoutType,
	})
	if err != nil {
		return nil, wrapCollaborator("persistence", "finalize diary", err)
	}

	s.diary = &updated
	s.state = StateFinalized
	s.lastReward = &reward

	var related string
	if len(s.cards) > 0 {
		related = s.cards[0].ID
	}
	enqueued := false
	if s.deps.Feedback != nil {
		enqueued = s.deps.Feedback.Enqueue(domain.NewSaveFeedback(&updated, ai, user, reward, related))
	}

	s.logger.Info("diary finalized",
		logger.String("diary_id", updated.ID),
		logger.String("branch", string(reward.Branch)),
		logger.Float64("reward", reward.Reward),
		logger.Float64("valence", mood.Valence),
		logger.Float64("arousal", mood.Arousal),
		logger.Bool("feedback_enqueued", enqueued))

	return &FinalizeResult{
		Diary:    updated,
		Reward:   reward,
		Emoji:    mood.Emoji(),
		Enqueued: enqueued,
	}, nil
}

// resolveWidget checks a widget card against the installed widgets and
// applies the widget category when the caller gave none.
func (s *Session) resolveWidget(in *domain.CardInput) error {
	if s.deps.Widgets == nil || in.SourceType != domain.SourceWidget || in.Widget == "" {
		return nil
	}
	w, ok := s.deps.Widgets.Widget(in.Widget)
	if !ok || w.Disabled {
		return domain.Invalid("widget", fmt.Sprintf("widget %q is not installed", in.Widget))
	}
	if strings.TrimSpace(in.Category) == "" {
		in.Category = w.Category
	}
	return nil
}

// analyze never fails; any sentiment problem yields the neutral mood.
func (s *Session) analyze(ctx context.Context, text string) domain.MoodVector {
	if s.deps.Sentiment == nil {
		return domain.NeutralMood
	}
	mood, err := s.deps.Sentiment.Analyze(ctx, text)
	if err != nil {
		s.logger.Warn("sentiment analysis failed, using neutral mood",
			logger.String("diary_id", s.diary.ID),
			logger.Error(err))
		return domain.NeutralMood
	}
	return mood.Clamp()
}

// saveLayouts writes both layouts and the rendered card positions.
func (s *Session) saveLayouts(ctx context.Context) error {
	save := domain.LayoutSave{
		DiaryID:    s.diary.ID,
		Cards:      copyCards(s.cards),
		LayoutType: domain.LayoutTypeAI,
		At:         s.deps.Now(),
	}
	if s.grid.HasSuggestion() {
		save.AILayout = s.grid.Export(domain.WhichAI)
	}
	if s.grid.Edited() {
		save.UserLayout = s.grid.Export(domain.WhichUser)
		save.LayoutType = domain.LayoutTypeUser
	}
	if err := s.deps.Store.SaveLayouts(ctx, save); err != nil {
		return err
	}
	s.diary.UpdatedAt = save.At
	return nil
}

func (s *Session) rollback(prev domain.GridState, state State) {
	s.grid = domain.RestoreGrid(prev)
	s.state = state
	s.syncPositions()
}

func (s *Session) hasContent() bool {
	for _, c := range s.cards {
		if c.HasContent() {
			return true
		}
	}
	return false
}

// layoutState derives the non-terminal state from the grid.
func (s *Session) layoutState() State {
	switch {
	case s.grid.Edited() && s.grid.HasSuggestion():
		return StateLayoutEdited
	case s.grid.HasSuggestion():
		return StateLayoutSuggested
	default:
		return StateDraft
	}
}

// syncPositions rewrites card positions from the effective layout.
func (s *Session) syncPositions() {
	for _, c := range s.cards {
		if p, ok := s.grid.PositionOf(c.ID); ok {
			pos := p
			c.Position = &pos
		} else {
			c.Position = nil
		}
	}
}

func (s *Session) cardIndex(id string) int {
	for i, c := range s.cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func wrapCollaborator(collaborator, op string, err error) error {
	if errors.Is(err, domain.ErrCollaboratorUnavailable) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return domain.Unavailable(collaborator, op, err)
}

func copyCard(c *domain.Card) *domain.Card {
	out := *c
	if c.Position != nil {
		p := *c.Position
		out.Position = &p
	}
	return &out
}

func copyCards(cards []*domain.Card) []*domain.Card {
	out := make([]*domain.Card, len(cards))
	for i, c := range cards {
		out[i] = copyCard(c)
	}
	return out
}
