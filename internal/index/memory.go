package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/session"
)

// sessionEntry is a live session with its last access time
type sessionEntry struct {
	session  *session.Session
	key      string // userID|date
	lastSeen time.Time
}

// MemoryIndex holds live diary sessions and the installed widget catalog.
// Sessions are looked up by diary ID or by (user, date); widgets by name.
type MemoryIndex struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionEntry  // diary ID -> session
	byDay      map[string]string         // userID|date -> diary ID
	widgets    map[string]*domain.Widget // name -> widget
	lastReload time.Time                 // Timestamp of last widgets reload
	now        func() time.Time
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		sessions: make(map[string]*sessionEntry),
		byDay:    make(map[string]string),
		widgets:  make(map[string]*domain.Widget),
		now:      time.Now,
	}
}

func dayKey(userID, date string) string {
	return userID + "|" + date
}

// ─────────────────────────────────────────────────────────────────
// Session methods
// ─────────────────────────────────────────────────────────────────

// PutSession adds or replaces a session and marks it as just used
func (idx *MemoryIndex) PutSession(s *session.Session) {
	d := s.Diary()
	key := dayKey(d.UserID, d.Date)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.sessions[d.ID] = &sessionEntry{session: s, key: key, lastSeen: idx.now()}
	idx.byDay[key] = d.ID
}

// GetSession retrieves a session by diary ID and refreshes its last access
func (idx *MemoryIndex) GetSession(diaryID string) (*session.Session, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.sessions[diaryID]
	if !ok {
		return nil, false
	}
	e.lastSeen = idx.now()
	return e.session, true
}

// LookupDay returns the diary ID of a user's day, if its session is live
func (idx *MemoryIndex) LookupDay(userID, date string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id, ok := idx.byDay[dayKey(userID, date)]
	return id, ok
}

// DeleteSession removes a session from the index
func (idx *MemoryIndex) DeleteSession(diaryID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.sessions[diaryID]
	if !ok {
		return
	}
	delete(idx.sessions, diaryID)
	if idx.byDay[e.key] == diaryID {
		delete(idx.byDay, e.key)
	}
}

// IdleSessions returns the IDs of sessions not used for at least ttl
func (idx *MemoryIndex) IdleSessions(ttl time.Duration) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	cutoff := idx.now().Add(-ttl)
	var ids []string
	for id, e := range idx.sessions {
		if !e.lastSeen.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// SessionCount returns the number of live sessions
func (idx *MemoryIndex) SessionCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.sessions)
}

// ─────────────────────────────────────────────────────────────────
// Widget methods
// ─────────────────────────────────────────────────────────────────

// UpdateWidgets replaces all widgets in the index
func (idx *MemoryIndex) UpdateWidgets(widgets []*domain.Widget) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear and rebuild
	idx.widgets = make(map[string]*domain.Widget, len(widgets))
	for _, w := range widgets {
		idx.widgets[w.Name] = w
	}
	idx.lastReload = idx.now()
}

// Widget retrieves a widget by name. Disabled widgets are returned too.
func (idx *MemoryIndex) Widget(name string) (domain.Widget, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	w, ok := idx.widgets[name]
	if !ok {
		return domain.Widget{}, false
	}
	return *w, true
}

// GetAllWidgets returns all widgets
func (idx *MemoryIndex) GetAllWidgets() []*domain.Widget {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	widgets := make([]*domain.Widget, 0, len(idx.widgets))
	for _, w := range idx.widgets {
		cp := *w
		widgets = append(widgets, &cp)
	}
	return widgets
}

// DeleteWidget removes a widget from the index
func (idx *MemoryIndex) DeleteWidget(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.widgets, name)
}

// WidgetCount returns the number of widgets in the index
func (idx *MemoryIndex) WidgetCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.widgets)
}

// GetLastReload returns the timestamp of the last widgets reload
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
