package session

import (
	"sync"
	"time"
)

// Session is one shared editing room. All fields are guarded by mu and are
// only reachable through Store methods.
type Session struct {
	id string

	mu sync.Mutex

	content string

	// Participant and cursor tables keep join order for snapshots.
	participants map[string]Participant
	joinOrder    []string
	cursors      map[string]Cursor
	cursorOrder  []string

	version    uint64
	createdAt  time.Time
	updatedAt  time.Time
	emptySince time.Time

	// removed is set once the session has been evicted from the Store.
	removed bool
}

func newSession(id, content string, now time.Time) *Session {
	return &Session{
		id:           id,
		content:      content,
		participants: make(map[string]Participant),
		cursors:      make(map[string]Cursor),
		createdAt:    now,
		updatedAt:    now,
		emptySince:   now,
	}
}

func (s *Session) touchLocked(now time.Time) {
	s.version++
	s.updatedAt = now
}

func (s *Session) addParticipantLocked(p Participant) {
	if _, ok := s.participants[p.ID]; !ok {
		s.joinOrder = append(s.joinOrder, p.ID)
	}
	s.participants[p.ID] = p
	s.emptySince = time.Time{}
}

// removeParticipantLocked drops the participant and its cursor.
func (s *Session) removeParticipantLocked(id string, now time.Time) bool {
	if _, ok := s.participants[id]; !ok {
		return false
	}
	delete(s.participants, id)
	s.joinOrder = removeID(s.joinOrder, id)
	if _, ok := s.cursors[id]; ok {
		delete(s.cursors, id)
		s.cursorOrder = removeID(s.cursorOrder, id)
	}
	if len(s.participants) == 0 {
		s.emptySince = now
	}
	return true
}

// setCursorLocked writes a cursor for an existing participant, copying the
// participant's current name and color into it.
func (s *Session) setCursorLocked(id string, caret Caret) (Cursor, bool) {
	p, ok := s.participants[id]
	if !ok {
		return Cursor{}, false
	}
	c := Cursor{
		UserID:    p.ID,
		UserName:  p.Name,
		UserColor: p.Color,
		Position:  caret.Position,
	}
	if caret.Selection != nil {
		sel := *caret.Selection
		c.Selection = &sel
	}
	if _, exists := s.cursors[id]; !exists {
		s.cursorOrder = append(s.cursorOrder, id)
	}
	s.cursors[id] = c
	return c.clone(), true
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		Content:      s.content,
		Participants: make([]Participant, 0, len(s.joinOrder)),
		Cursors:      make([]Cursor, 0, len(s.cursorOrder)),
		Version:      s.version,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	for _, id := range s.joinOrder {
		snap.Participants = append(snap.Participants, s.participants[id])
	}
	for _, id := range s.cursorOrder {
		snap.Cursors = append(snap.Cursors, s.cursors[id].clone())
	}
	return snap
}

func (s *Session) summaryLocked() Summary {
	return Summary{
		SessionID:     s.id,
		Participants:  len(s.participants),
		Cursors:       len(s.cursors),
		ContentLength: len(s.content),
		Version:       s.version,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
		EmptySince:    s.emptySince,
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
