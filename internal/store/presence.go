package store

import (
	"sort"
	"sync"
)

// PresenceStore tracks the set of currently-online user ids. Membership is
// driven entirely by explicit online/offline events; there is no timeout.
// The whole set is ephemeral and resets on disconnect.
type PresenceStore struct {
	mu     sync.Mutex
	online map[string]struct{}
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{online: make(map[string]struct{})}
}

func (s *PresenceStore) SetOnline(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	s.online[userID] = struct{}{}
	s.mu.Unlock()
}

func (s *PresenceStore) SetOffline(userID string) {
	s.mu.Lock()
	delete(s.online, userID)
	s.mu.Unlock()
}

func (s *PresenceStore) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, online := s.online[userID]
	return online
}

// OnlineUsers returns the sorted set of online user ids.
func (s *PresenceStore) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset clears the set (the connection's world view ended).
func (s *PresenceStore) Reset() {
	s.mu.Lock()
	s.online = make(map[string]struct{})
	s.mu.Unlock()
}
