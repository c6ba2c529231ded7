package domain

import (
	"fmt"
	"sort"
)

// Layout maps card ids to grid cells.
type Layout map[string]Position

// Clone returns a deep copy. The clone of a nil layout is nil.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for id, p := range l {
		out[id] = p
	}
	return out
}

// Occupant returns the card placed at (row, col), if any.
func (l Layout) Occupant(row, col int) (string, bool) {
	for id, p := range l {
		if p.Row == row && p.Col == col {
			return id, true
		}
	}
	return "", false
}

// CardIDs returns the placed card ids in sorted order.
func (l Layout) CardIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks bounds and single occupancy. It does not know which
// cards exist; see Grid.Import.
func (l Layout) Validate() error {
	seen := make(map[[2]int]string, len(l))
	for _, id := range l.CardIDs() {
		p := l[id]
		if !p.InBounds() {
			return Invalid("layout", fmt.Sprintf("card %s at (%d,%d) is outside the %dx%d grid", id, p.Row, p.Col, GridRows, GridCols))
		}
		cell := [2]int{p.Row, p.Col}
		if other, taken := seen[cell]; taken {
			return Invalid("layout", fmt.Sprintf("cards %s and %s share cell (%d,%d)", other, id, p.Row, p.Col))
		}
		seen[cell] = id
	}
	return nil
}

// Which selects one of the two layouts of a grid.
type Which string

const (
	WhichAI   Which = "ai"
	WhichUser Which = "user"
)

// ParseWhich parses "ai" or "user". An empty string selects the user layout.
func ParseWhich(raw string) (Which, error) {
	switch Which(raw) {
	case WhichAI:
		return WhichAI, nil
	case WhichUser, "":
		return WhichUser, nil
	}
	return "", Invalid("which", fmt.Sprintf("must be %q or %q", WhichAI, WhichUser))
}

// Grid holds the AI and user layouts of one diary together with the set
// of cards they may reference.
//
// The user layout stays nil until the first move; a nil user layout means
// the user has not diverged from the AI suggestion.
type Grid struct {
	cards map[string]struct{}
	ai    Layout
	user  Layout
}

// NewGrid returns an empty grid.
func NewGrid() *Grid {
	return &Grid{cards: make(map[string]struct{})}
}

// Track registers a card so layouts may reference it.
func (g *Grid) Track(cardID string) {
	g.cards[cardID] = struct{}{}
}

// Forget unregisters a card and removes it from both layouts.
func (g *Grid) Forget(cardID string) {
	delete(g.cards, cardID)
	delete(g.ai, cardID)
	delete(g.user, cardID)
}

// Tracks reports whether cardID belongs to the grid.
func (g *Grid) Tracks(cardID string) bool {
	_, ok := g.cards[cardID]
	return ok
}

// Import replaces the AI layout wholesale and resets the user layout.
// The mapping is rejected as a whole if any entry is unknown, out of
// bounds, or collides with another entry.
func (g *Grid) Import(mapping Layout) error {
	for _, id := range mapping.CardIDs() {
		if !g.Tracks(id) {
			return Invalid("layout", fmt.Sprintf("card %s does not belong to this diary", id))
		}
	}
	if err := mapping.Validate(); err != nil {
		return err
	}

	ai := mapping.Clone()
	if ai == nil {
		ai = Layout{}
	}
	g.ai = ai
	g.user = nil
	return nil
}

// Move places cardID at (row, col) in the user layout. The first move
// starts the user layout as a copy of the AI layout. A card already at the
// target cell is evicted and becomes unplaced in the user layout; its id is
// returned. The AI layout is never touched.
func (g *Grid) Move(cardID string, row, col int) (evicted string, err error) {
	target := Position{Row: row, Col: col}
	if !target.InBounds() {
		return "", Invalid("position", fmt.Sprintf("(%d,%d) is outside the %dx%d grid", row, col, GridRows, GridCols))
	}
	if !g.Tracks(cardID) {
		return "", fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}

	if g.user == nil {
		g.user = g.ai.Clone()
		if g.user == nil {
			g.user = Layout{}
		}
	}

	if occupant, ok := g.user.Occupant(row, col); ok && occupant != cardID {
		delete(g.user, occupant)
		evicted = occupant
	}

	// One card per cell, so orderIndex is always 0 after a move.
	g.user[cardID] = target
	return evicted, nil
}

// Export returns a snapshot of the selected layout. The user layout of a
// grid that has not diverged is a copy of the AI layout.
func (g *Grid) Export(which Which) Layout {
	var src Layout
	switch which {
	case WhichAI:
		src = g.ai
	default:
		src = g.user
		if src == nil {
			src = g.ai
		}
	}
	out := src.Clone()
	if out == nil {
		out = Layout{}
	}
	return out
}

// HasSuggestion reports whether an AI layout was ever imported.
func (g *Grid) HasSuggestion() bool { return g.ai != nil }

// Edited reports whether the user layout diverged from the AI layout.
func (g *Grid) Edited() bool { return g.user != nil }

// PositionOf returns the effective cell of a card, user layout first.
func (g *Grid) PositionOf(cardID string) (Position, bool) {
	src := g.user
	if src == nil {
		src = g.ai
	}
	p, ok := src[cardID]
	return p, ok
}

// Reward scores the current layouts.
func (g *Grid) Reward() RewardResult {
	return CalculateReward(g.ai, g.user)
}

// GridState is the serializable form of a Grid.
type GridState struct {
	Cards     []string `json:"cards"`
	Suggested bool     `json:"suggested"`
	Edited    bool     `json:"edited"`
	AI        Layout   `json:"aiLayout,omitempty"`
	User      Layout   `json:"userLayout,omitempty"`
}

// State snapshots the grid.
func (g *Grid) State() GridState {
	ids := make([]string, 0, len(g.cards))
	for id := range g.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return GridState{
		Cards:     ids,
		Suggested: g.HasSuggestion(),
		Edited:    g.Edited(),
		AI:        g.ai.Clone(),
		User:      g.user.Clone(),
	}
}

// RestoreGrid rebuilds a grid from a snapshot.
func RestoreGrid(st GridState) *Grid {
	g := NewGrid()
	for _, id := range st.Cards {
		g.Track(id)
	}
	if st.Suggested {
		g.ai = st.AI.Clone()
		if g.ai == nil {
			g.ai = Layout{}
		}
	}
	if st.Edited {
		g.user = st.User.Clone()
		if g.user == nil {
			g.user = Layout{}
		}
	}
	return g
}
