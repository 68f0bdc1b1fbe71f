// Package prefs contains an in-process preference store with change
// listeners.  The classifier reads its list URLs from here and reloads
// whenever one of them changes.
package prefs

import (
	"context"
	"sync"
)

// Names of the preferences consumed by the classifier.
const (
	// BlockListURLs is the preference holding the pipe-separated URLs of the
	// filter lists used for the cancel decision path.
	BlockListURLs = "classifier.block.list_urls"

	// AnnotateListURLs is the preference holding the pipe-separated URLs of
	// the filter lists used for the annotate decision path.
	AnnotateListURLs = "classifier.annotate.list_urls"

	// Enabled is the boolean policy gate for the whole subsystem.  It is
	// checked by callers before invoking classification, not inside the
	// classifier itself.
	Enabled = "classifier.enabled"
)

// Callback is the function called after a preference changes.  name is the
// name of the changed preference.  Callbacks are called synchronously on the
// goroutine that changed the preference and must not change preferences
// themselves.
type Callback func(ctx context.Context, name string)

// CallbackID identifies a registered callback within its preference, see
// [Store.RegisterCallback].
type CallbackID uint64

// callbackEntry is one registered callback.
type callbackEntry struct {
	cb Callback
	id CallbackID
}

// Store is a concurrency-safe preference store.  The zero value is not ready
// for use, see [NewStore].
type Store struct {
	mu     *sync.Mutex
	vals   map[string]string
	cbs    map[string][]callbackEntry
	nextID CallbackID
}

// NewStore returns a new empty preference store.
func NewStore() (s *Store) {
	return &Store{
		mu:     &sync.Mutex{},
		vals:   map[string]string{},
		cbs:    map[string][]callbackEntry{},
		nextID: 1,
	}
}

// GetString returns the string value of the preference or an empty string if
// it has never been set.
func (s *Store) GetString(name string) (val string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.vals[name]
}

// GetBool returns the boolean value of the preference.  Only the exact string
// "true" is considered true.
func (s *Store) GetBool(name string) (val bool) {
	return s.GetString(name) == "true"
}

// SetString sets the preference and calls the callbacks registered for it.
// The callbacks run synchronously on the caller's goroutine, outside of the
// store's internal lock.
func (s *Store) SetString(ctx context.Context, name, val string) {
	s.mu.Lock()
	s.vals[name] = val
	entries := make([]callbackEntry, len(s.cbs[name]))
	copy(entries, s.cbs[name])
	s.mu.Unlock()

	for _, e := range entries {
		e.cb(ctx, name)
	}
}

// SetBool sets the boolean preference, see [Store.SetString].
func (s *Store) SetBool(ctx context.Context, name string, val bool) {
	str := "false"
	if val {
		str = "true"
	}

	s.SetString(ctx, name, str)
}

// RegisterCallback registers cb to be called whenever the preference changes.
// The returned id is used to unregister it.
func (s *Store) RegisterCallback(name string, cb Callback) (id CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = s.nextID
	s.nextID++

	s.cbs[name] = append(s.cbs[name], callbackEntry{
		cb: cb,
		id: id,
	})

	return id
}

// UnregisterCallback removes the callback with the given id from the
// preference.  Unknown ids are ignored.
func (s *Store) UnregisterCallback(name string, id CallbackID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cbs[name]
	for i, e := range entries {
		if e.id == id {
			s.cbs[name] = append(entries[:i:i], entries[i+1:]...)

			return
		}
	}
}
