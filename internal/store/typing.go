package store

import (
	"sort"
	"sync"
	"time"
)

// TypingStore tracks per-user "is typing" flags with automatic expiry.
// Expiry is replace-timer-on-refresh: each typing event for a user stops the
// previous timer and arms a fresh one, so there is exactly one pending
// expiry per user at any time.
type TypingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*time.Timer
}

func NewTypingStore(ttl time.Duration) *TypingStore {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &TypingStore{ttl: ttl, entries: make(map[string]*time.Timer)}
}

// SetTyping marks the user as typing and (re)arms the expiry timer.
func (s *TypingStore) SetTyping(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, exists := s.entries[userID]; exists {
		t.Stop()
	}
	s.entries[userID] = time.AfterFunc(s.ttl, func() {
		s.ClearTyping(userID)
	})
}

// ClearTyping removes the flag. Clearing an absent user is a no-op, so a
// late timer racing an explicit stop event is harmless.
func (s *TypingStore) ClearTyping(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, exists := s.entries[userID]; exists {
		t.Stop()
		delete(s.entries, userID)
	}
}

func (s *TypingStore) IsUserTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, typing := s.entries[userID]
	return typing
}

// TypingUsers returns the sorted set of users currently typing.
func (s *TypingStore) TypingUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset stops every timer and clears the set.
func (s *TypingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.entries {
		t.Stop()
		delete(s.entries, id)
	}
}
