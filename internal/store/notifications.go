package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pulse/syncd/internal/logger"
	"github.com/pulse/syncd/internal/model"
)

// NotificationAPI is the REST surface the aggregator depends on.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, page, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context) error
}

// importantTypes are the kinds surfaced in the important view when unread.
var importantTypes = map[model.NotificationType]struct{}{
	model.NotificationFollow:      {},
	model.NotificationLikePost:    {},
	model.NotificationCommentPost: {},
	model.NotificationMessage:     {},
}

// NotificationStore aggregates the notification list from REST pages and
// pushed events. Events and pages are deduped by id, so a redelivered push
// cannot double-count the unread total.
type NotificationStore struct {
	mu     sync.Mutex
	api    NotificationAPI
	list   []model.Notification
	index  map[string]struct{}
	unread int
	gen    uint64
}

func NewNotificationStore(restAPI NotificationAPI) *NotificationStore {
	return &NotificationStore{api: restAPI, index: make(map[string]struct{})}
}

// Reset returns the store to its initial empty state and invalidates
// in-flight REST callbacks.
func (s *NotificationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.list = nil
	s.index = make(map[string]struct{})
	s.unread = 0
}

func (s *NotificationStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// AddNotification inserts a pushed notification at the head of the list.
// A missing id gets a generated ULID, a missing timestamp gets now; an id
// already present is a no-op.
func (s *NotificationStore) AddNotification(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(n, true)
}

func (s *NotificationStore) addLocked(n model.Notification, head bool) {
	if n.ID == "" {
		n.ID = ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, dup := s.index[n.ID]; dup {
		return
	}
	s.index[n.ID] = struct{}{}
	if head {
		s.list = append([]model.Notification{n}, s.list...)
	} else {
		s.list = append(s.list, n)
	}
	if !n.IsRead {
		s.unread++
	}
}

// Load fetches one page. Page 1 replaces the local list and recomputes the
// unread count; later pages append, deduped by id.
func (s *NotificationStore) Load(ctx context.Context, page, limit int) Result {
	gen := s.generation()
	ns, err := s.api.ListNotifications(ctx, page, limit)
	if err != nil {
		logger.Errorf("load notifications page %d: %v", page, err)
		return fail("failed to load notifications")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	if page <= 1 {
		s.list = nil
		s.index = make(map[string]struct{})
		s.unread = 0
	}
	for _, n := range ns {
		s.addLocked(n, false)
	}
	return ok()
}

// MarkAsRead confirms via REST first, then applies the local mutation.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id string) Result {
	gen := s.generation()
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		logger.Errorf("mark notification read %s: %v", id, err)
		return fail("failed to mark notification as read")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	for i := range s.list {
		if s.list[i].ID == id {
			if !s.list[i].IsRead {
				s.list[i].IsRead = true
				s.unread--
			}
			break
		}
	}
	return ok()
}

// MarkAllAsRead confirms via REST first, then applies the local mutation.
func (s *NotificationStore) MarkAllAsRead(ctx context.Context) Result {
	gen := s.generation()
	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		logger.Errorf("mark all notifications read: %v", err)
		return fail("failed to mark notifications as read")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	for i := range s.list {
		s.list[i].IsRead = true
	}
	s.unread = 0
	return ok()
}

// DeleteNotification confirms via REST first, then removes locally.
func (s *NotificationStore) DeleteNotification(ctx context.Context, id string) Result {
	gen := s.generation()
	if err := s.api.DeleteNotification(ctx, id); err != nil {
		logger.Errorf("delete notification %s: %v", id, err)
		return fail("failed to delete notification")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	for i := range s.list {
		if s.list[i].ID == id {
			if !s.list[i].IsRead {
				s.unread--
			}
			s.list = append(s.list[:i], s.list[i+1:]...)
			delete(s.index, id)
			break
		}
	}
	return ok()
}

// ClearAllNotifications confirms via REST first, then empties the store.
func (s *NotificationStore) ClearAllNotifications(ctx context.Context) Result {
	gen := s.generation()
	if err := s.api.ClearNotifications(ctx); err != nil {
		logger.Errorf("clear notifications: %v", err)
		return fail("failed to clear notifications")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	s.list = nil
	s.index = make(map[string]struct{})
	s.unread = 0
	return ok()
}

// Seed primes an empty store from a cached snapshot. A non-empty store is
// left untouched.
func (s *NotificationStore) Seed(ns []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) > 0 {
		return
	}
	for _, n := range ns {
		s.addLocked(n, false)
	}
}

// --- Read model ---

// Notifications returns a copy of the full list, newest first.
func (s *NotificationStore) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.list))
	copy(out, s.list)
	return out
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// RecentNotifications returns those created within the last 24 hours.
func (s *NotificationStore) RecentNotifications() []model.Notification {
	cutoff := time.Now().Add(-24 * time.Hour)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.list {
		if n.CreatedAt.After(cutoff) {
			out = append(out, n)
		}
	}
	return out
}

// ImportantNotifications returns unread notifications of the important kinds.
func (s *NotificationStore) ImportantNotifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.list {
		if n.IsRead {
			continue
		}
		if _, important := importantTypes[n.Type]; important {
			out = append(out, n)
		}
	}
	return out
}

// NotificationStats counts notifications grouped by type.
func (s *NotificationStore) NotificationStats() map[model.NotificationType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[model.NotificationType]int)
	for _, n := range s.list {
		stats[n.Type]++
	}
	return stats
}
