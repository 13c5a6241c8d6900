package session

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabmd/collabmd/internal/logging"
)

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// WelcomeContent is the content of newly created sessions.
	// Default: DefaultWelcomeContent.
	WelcomeContent string

	// EmptySessionTTL is how long a session with no participants is kept
	// before eviction. Zero keeps empty sessions for the process lifetime.
	// Default: 0.
	EmptySessionTTL time.Duration

	// CleanupInterval is the interval of the eviction loop. It only runs
	// when EmptySessionTTL is positive.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// Notifier receives an Event for every mutation.
	// Default: discards events.
	Notifier Notifier
}

// DefaultStoreConfig returns a StoreConfig with the default values.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		WelcomeContent:  DefaultWelcomeContent,
		EmptySessionTTL: 0,
		CleanupInterval: 30 * time.Second,
		Notifier:        nopNotifier{},
	}
}

// Store is the process-wide registry of sessions.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	// memberships maps a connection id to the sessions it has joined.
	memberships map[string]map[string]struct{}
	memberMu    sync.Mutex

	welcome         string
	emptyTTL        time.Duration
	cleanupInterval time.Duration
	notifier        Notifier

	done        chan struct{}
	cleanupDone chan struct{}
	closed      atomic.Bool

	totalCreated atomic.Uint64
	totalEvicted atomic.Uint64
	peak         int // protected by mu

	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a Store. A nil config uses DefaultStoreConfig.
func NewStore(config *StoreConfig, logger *slog.Logger) *Store {
	defaults := DefaultStoreConfig()
	if config == nil {
		config = defaults
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := &Store{
		sessions:        make(map[string]*Session),
		memberships:     make(map[string]map[string]struct{}),
		welcome:         config.WelcomeContent,
		emptyTTL:        config.EmptySessionTTL,
		cleanupInterval: config.CleanupInterval,
		notifier:        config.Notifier,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		now:             time.Now,
		logger:          logger.With(logging.Component("session_store")),
	}
	if st.welcome == "" {
		st.welcome = defaults.WelcomeContent
	}
	if st.cleanupInterval <= 0 {
		st.cleanupInterval = defaults.CleanupInterval
	}
	if st.notifier == nil {
		st.notifier = nopNotifier{}
	}

	if st.emptyTTL > 0 {
		go st.cleanupLoop()
	} else {
		close(st.cleanupDone)
	}

	return st
}

// GetOrCreate returns the session's current snapshot, creating the session
// with the welcome content if it does not exist.
func (st *Store) GetOrCreate(sessionID string) Snapshot {
	for {
		s := st.getOrCreate(sessionID)
		s.mu.Lock()
		if s.removed {
			s.mu.Unlock()
			st.forget(s)
			continue
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
}

// Get returns a snapshot of an existing session. It never creates one.
func (st *Store) Get(sessionID string) (Snapshot, bool) {
	s := st.lookup(sessionID)
	if s == nil {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return Snapshot{}, false
	}
	return s.snapshotLocked(), true
}

// Snapshot is an alias for Get.
func (st *Store) Snapshot(sessionID string) (Snapshot, bool) {
	return st.Get(sessionID)
}

// Join registers p in the session, creating the session if needed, and
// returns a snapshot that already includes p. Peers are told through a
// ParticipantJoined event.
func (st *Store) Join(sessionID string, p Participant) (Snapshot, error) {
	if sessionID == "" {
		return Snapshot{}, ErrEmptySessionID
	}
	if p.ID == "" {
		return Snapshot{}, ErrEmptyConnID
	}
	if st.closed.Load() {
		return Snapshot{}, ErrClosed
	}

	for {
		s := st.getOrCreate(sessionID)
		s.mu.Lock()
		if s.removed {
			// Evicted between lookup and lock; fetch the replacement.
			s.mu.Unlock()
			st.forget(s)
			continue
		}

		now := st.now()
		s.addParticipantLocked(p)
		st.addMembership(p.ID, sessionID)
		s.touchLocked(now)
		snap := s.snapshotLocked()

		st.notifier.Notify(Event{
			Kind:        ParticipantJoined,
			SessionID:   sessionID,
			Origin:      p.ID,
			Version:     s.version,
			Participant: p,
		})
		s.mu.Unlock()

		st.logger.Debug("participant joined",
			logging.SessionID(sessionID),
			logging.ConnID(p.ID),
			"participants", len(snap.Participants))

		return snap, nil
	}
}

// UpdateContent replaces the session content with content and moves the
// sender's cursor to caret. The second result is false when the session does
// not exist, in which case nothing happens.
//
// If connID is not a participant the content is still replaced, but no
// cursor is written and the result carries a nil Cursor.
func (st *Store) UpdateContent(sessionID, connID, content string, caret Caret) (ContentResult, bool) {
	s := st.lookup(sessionID)
	if s == nil {
		return ContentResult{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return ContentResult{}, false
	}

	s.content = content
	s.touchLocked(st.now())

	res := ContentResult{Content: content, Version: s.version}
	if c, ok := s.setCursorLocked(connID, caret); ok {
		res.Cursor = &c
	}

	ev := Event{
		Kind:      ContentUpdated,
		SessionID: sessionID,
		Origin:    connID,
		Version:   s.version,
		Content:   content,
	}
	if res.Cursor != nil {
		c := res.Cursor.clone()
		ev.Cursor = &c
	}
	st.notifier.Notify(ev)

	return res, true
}

// MoveCursor moves the sender's cursor without touching the content. The
// second result is false when the session or the participant does not exist.
func (st *Store) MoveCursor(sessionID, connID string, caret Caret) (Cursor, bool) {
	s := st.lookup(sessionID)
	if s == nil {
		return Cursor{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return Cursor{}, false
	}

	c, ok := s.setCursorLocked(connID, caret)
	if !ok {
		return Cursor{}, false
	}
	s.touchLocked(st.now())

	evCursor := c.clone()
	st.notifier.Notify(Event{
		Kind:      CursorUpdated,
		SessionID: sessionID,
		Origin:    connID,
		Version:   s.version,
		Cursor:    &evCursor,
	})

	return c, true
}

// Leave removes connID from every session it participates in and returns
// the ids of those sessions. An unknown connID is a no-op.
func (st *Store) Leave(connID string) []string {
	if connID == "" {
		return nil
	}

	var left []string
	for _, id := range st.takeMemberships(connID) {
		s := st.lookup(id)
		if s == nil {
			continue
		}
		s.mu.Lock()
		if s.removed {
			s.mu.Unlock()
			continue
		}
		now := st.now()
		if s.removeParticipantLocked(connID, now) {
			s.touchLocked(now)
			st.notifier.Notify(Event{
				Kind:      ParticipantLeft,
				SessionID: s.id,
				Origin:    connID,
				Version:   s.version,
			})
			left = append(left, s.id)
		}
		s.mu.Unlock()
	}

	if len(left) > 0 {
		st.logger.Debug("participant left",
			logging.ConnID(connID),
			"sessions", len(left))
	}
	return left
}

// List returns a summary of every session, ordered by session id.
func (st *Store) List() []Summary {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		if !s.removed {
			out = append(out, s.summaryLocked())
		}
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Len returns the number of sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Stats returns store-wide counters.
func (st *Store) Stats() StoreStats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return StoreStats{
		Active:       len(st.sessions),
		TotalCreated: st.totalCreated.Load(),
		TotalEvicted: st.totalEvicted.Load(),
		Peak:         st.peak,
	}
}

// EvictIdle removes every session that has had no participants for longer
// than the configured EmptySessionTTL, measured at now. It returns the
// number of evicted sessions. With a zero TTL it does nothing.
//
// The store lock is never held while a session lock is awaited. Sessions
// that are locked by another caller are skipped until the next pass.
func (st *Store) EvictIdle(now time.Time) int {
	if st.emptyTTL <= 0 {
		return 0
	}

	st.mu.RLock()
	candidates := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		candidates = append(candidates, s)
	}
	st.mu.RUnlock()

	evicted := 0
	for _, s := range candidates {
		if !s.mu.TryLock() {
			continue
		}
		idle := !s.removed &&
			len(s.participants) == 0 &&
			!s.emptySince.IsZero() &&
			now.Sub(s.emptySince) > st.emptyTTL
		if idle {
			s.removed = true
		}
		s.mu.Unlock()

		if idle {
			st.forget(s)
			evicted++
		}
	}

	if evicted > 0 {
		st.totalEvicted.Add(uint64(evicted))
		st.logger.Info("evicted empty sessions",
			"count", evicted,
			"remaining", st.Len())
	}
	return evicted
}

// Close stops the eviction loop. Sessions stay readable; new joins fail
// with ErrClosed.
func (st *Store) Close() {
	if st.closed.Swap(true) {
		return
	}
	close(st.done)
	<-st.cleanupDone
}

func (st *Store) lookup(sessionID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[sessionID]
}

// forget drops s from the session map if it is still the registered
// session for its id.
func (st *Store) forget(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sessions[s.id] == s {
		delete(st.sessions, s.id)
	}
}

func (st *Store) addMembership(connID, sessionID string) {
	st.memberMu.Lock()
	defer st.memberMu.Unlock()
	set, ok := st.memberships[connID]
	if !ok {
		set = make(map[string]struct{}, 1)
		st.memberships[connID] = set
	}
	set[sessionID] = struct{}{}
}

// takeMemberships removes and returns the sessions connID has joined,
// ordered by id.
func (st *Store) takeMemberships(connID string) []string {
	st.memberMu.Lock()
	set := st.memberships[connID]
	delete(st.memberships, connID)
	st.memberMu.Unlock()

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (st *Store) getOrCreate(sessionID string) *Session {
	if s := st.lookup(sessionID); s != nil {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[sessionID]; ok {
		return s
	}

	s := newSession(sessionID, st.welcome, st.now())
	st.sessions[sessionID] = s
	st.totalCreated.Add(1)
	if len(st.sessions) > st.peak {
		st.peak = len(st.sessions)
	}

	st.logger.Info("session created",
		logging.SessionID(sessionID),
		"active_sessions", len(st.sessions))

	return s
}

// cleanupLoop periodically evicts idle empty sessions.
func (st *Store) cleanupLoop() {
	defer close(st.cleanupDone)

	ticker := time.NewTicker(st.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.EvictIdle(st.now())
		case <-st.done:
			return
		}
	}
}
