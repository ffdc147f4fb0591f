package store

import (
	"sort"
	"sync"

	"github.com/pulse/syncd/internal/model"
)

type liveEntry struct {
	session model.LiveSession
	viewers map[string]struct{}
}

// LiveStore tracks running live streams and their viewer sets. Chat messages
// are forwarded to the UI sink by the syncer and never stored here; the
// whole store is ephemeral and resets on disconnect.
type LiveStore struct {
	mu       sync.Mutex
	sessions map[string]*liveEntry
}

func NewLiveStore() *LiveStore {
	return &LiveStore{sessions: make(map[string]*liveEntry)}
}

// AddLiveStream registers a started stream. Re-announcing an existing stream
// refreshes its metadata but keeps the viewer set.
func (s *LiveStore) AddLiveStream(session model.LiveSession) {
	if session.StreamID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.sessions[session.StreamID]
	if !exists {
		entry = &liveEntry{viewers: make(map[string]struct{})}
		s.sessions[session.StreamID] = entry
	}
	for _, v := range session.Viewers {
		entry.viewers[v] = struct{}{}
	}
	session.Viewers = nil
	entry.session = session
}

// RemoveLiveStream destroys the stream state.
func (s *LiveStore) RemoveLiveStream(streamID string) {
	s.mu.Lock()
	delete(s.sessions, streamID)
	s.mu.Unlock()
}

func (s *LiveStore) ViewerJoined(streamID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.sessions[streamID]; exists && userID != "" {
		entry.viewers[userID] = struct{}{}
	}
}

func (s *LiveStore) ViewerLeft(streamID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.sessions[streamID]; exists {
		delete(entry.viewers, userID)
	}
}

// Session returns one stream's view with its viewer set materialized.
func (s *LiveStore) Session(streamID string) (model.LiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.sessions[streamID]
	if !exists {
		return model.LiveSession{}, false
	}
	return entry.materialize(), true
}

// Sessions returns all running streams sorted by start time, newest first.
func (s *LiveStore) Sessions() []model.LiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LiveSession, 0, len(s.sessions))
	for _, entry := range s.sessions {
		out = append(out, entry.materialize())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StreamID < out[j].StreamID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (s *LiveStore) ViewerCount(streamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.sessions[streamID]; exists {
		return len(entry.viewers)
	}
	return 0
}

// Reset clears every stream.
func (s *LiveStore) Reset() {
	s.mu.Lock()
	s.sessions = make(map[string]*liveEntry)
	s.mu.Unlock()
}

func (e *liveEntry) materialize() model.LiveSession {
	out := e.session
	out.Viewers = make([]string, 0, len(e.viewers))
	for v := range e.viewers {
		out.Viewers = append(out.Viewers, v)
	}
	sort.Strings(out.Viewers)
	return out
}
