package session

import (
	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

// View is a read-only copy of a session for API responses.
type View struct {
	State      State                `json:"state"`
	Diary      domain.Diary         `json:"diary"`
	Cards      []*domain.Card       `json:"cards"`
	AILayout   domain.Layout        `json:"aiLayout,omitempty"`
	UserLayout domain.Layout        `json:"userLayout,omitempty"`
	Reward     domain.RewardResult  `json:"reward"`
	LastReward *domain.RewardResult `json:"lastFinalizedReward,omitempty"`
	Emoji      string               `json:"emoji,omitempty"`
}

// View copies the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:      s.state,
		Diary:      *s.diary,
		Cards:      copyCards(s.cards),
		Reward:     s.grid.Reward(),
		LastReward: s.lastReward,
	}
	if s.grid.HasSuggestion() {
		v.AILayout = s.grid.Export(domain.WhichAI)
	}
	if s.grid.Edited() {
		v.UserLayout = s.grid.Export(domain.WhichUser)
	}
	if s.diary.Mood != nil {
		v.Emoji = s.diary.Mood.Emoji()
	}
	return v
}

// Snapshot is the cacheable form of a session.
type Snapshot struct {
	State      State                `json:"state"`
	Diary      domain.Diary         `json:"diary"`
	Cards      []*domain.Card       `json:"cards"`
	Grid       domain.GridState     `json:"grid"`
	SuggestSeq uint64               `json:"suggestSeq"`
	CardsRev   uint64               `json:"cardsRev"`
	LastReward *domain.RewardResult `json:"lastReward,omitempty"`
}

// Snapshot captures everything needed to Restore the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state,
		Diary:      *s.diary,
		Cards:      copyCards(s.cards),
		Grid:       s.grid.State(),
		SuggestSeq: s.suggestSeq,
		CardsRev:   s.cardsRev,
		LastReward: s.lastReward,
	}
}

// Restore rebuilds a session from a snapshot.
func Restore(snap Snapshot, deps Deps, log logger.Logger) *Session {
	d := snap.Diary
	s := New(&d, deps, log)
	s.cards = copyCards(snap.Cards)
	s.grid = domain.RestoreGrid(snap.Grid)
	s.state = snap.State
	s.suggestSeq = snap.SuggestSeq
	s.cardsRev = snap.CardsRev
	s.lastReward = snap.LastReward
	s.syncPositions()
	return s
}
