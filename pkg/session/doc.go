// Package session holds the shared editing state for collabmd.
//
// A Store maps opaque session ids to Sessions. Each Session owns one document
// text, a participant table and a cursor table, all keyed by connection id.
// Sessions are created lazily on the first join and live until the process
// exits, unless empty-session eviction is enabled.
//
// # Concurrency
//
// The session map is guarded by an RWMutex. Every Session has its own mutex
// and all mutations of that Session (content, participants, cursors) run under
// it. The Store never hands out a *Session: callers receive value Snapshots.
//
// # Notifications
//
// Every mutation produces an Event that is passed to the configured Notifier
// while the Session's mutex is still held. The order in which a Notifier sees
// the Events of one session is therefore the order of the mutations. Notifiers
// must not block for long and must not call back into the Store for the same
// session.
//
// # Conflict policy
//
// Content updates are last-writer-wins replacements of the full text. There is
// no merge and no history.
//
// # Example
//
//	store := session.NewStore(&session.StoreConfig{
//	    Notifier: session.NotifierFunc(func(ev session.Event) {
//	        log.Printf("%s: %s", ev.SessionID, ev.Kind)
//	    }),
//	}, logger)
//	defer store.Close()
//
//	snap, err := store.Join("abc123", session.Participant{ID: connID, Name: "Alice", Color: "#fff"})
package session
