// Package syncer fans inbound channel events out to the local stores and
// keeps them reconciled across reconnects: every Connected transition
// re-fetches each subsystem's page-1 snapshot, every Disconnected transition
// clears the ephemeral trackers while preserving history.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pulse/syncd/internal/cache"
	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/logger"
	"github.com/pulse/syncd/internal/metrics"
	"github.com/pulse/syncd/internal/session"
	"github.com/pulse/syncd/internal/store"
)

// Sink receives every decoded event for UI-facing delivery (toasts, live
// chat, call signaling). Events stay un-persisted on this path.
type Sink interface {
	Publish(ev event.Event)
}

const refreshTimeout = 10 * time.Second

type Syncer struct {
	Messages      *store.MessageStore
	Notifications *store.NotificationStore
	Presence      *store.PresenceStore
	Typing        *store.TypingStore
	Live          *store.LiveStore

	sess      session.Boundary
	snap      cache.SnapshotStore // nil — snapshots disabled
	sink      Sink                // nil — no UI feed
	pageLimit int
}

func New(
	messages *store.MessageStore,
	notifications *store.NotificationStore,
	presence *store.PresenceStore,
	typing *store.TypingStore,
	live *store.LiveStore,
	sess session.Boundary,
	snap cache.SnapshotStore,
	sink Sink,
	pageLimit int,
) *Syncer {
	if pageLimit <= 0 {
		pageLimit = 20
	}
	return &Syncer{
		Messages:      messages,
		Notifications: notifications,
		Presence:      presence,
		Typing:        typing,
		Live:          live,
		sess:          sess,
		snap:          snap,
		sink:          sink,
		pageLimit:     pageLimit,
	}
}

// SetSink wires the UI feed once the bridge is constructed.
func (s *Syncer) SetSink(sink Sink) {
	s.sink = sink
}

// HandleEvent applies one decoded event to the owning store and forwards it
// to the UI sink. Serialized by the channel read pump; stores still lock
// because REST callbacks and the bridge read concurrently.
func (s *Syncer) HandleEvent(ev event.Event) {
	metrics.EventsReceived.WithLabelValues(eventLabel(ev)).Inc()

	switch e := ev.(type) {
	case event.NewMessage:
		s.Messages.AddMessage(e.Message)
		s.Typing.ClearTyping(e.Message.SenderID)
	case event.MessageSent:
		s.Messages.AddMessage(e.Message)
	case event.NewNotification:
		s.Notifications.AddNotification(e.Notification)
	case event.LiveStarted:
		s.Live.AddLiveStream(e.Session)
	case event.LiveEnded:
		s.Live.RemoveLiveStream(e.StreamID)
	case event.UserJoinedLive:
		s.Live.ViewerJoined(e.StreamID, e.UserID)
	case event.UserLeftLive:
		s.Live.ViewerLeft(e.StreamID, e.UserID)
	case event.UserOnline:
		s.Presence.SetOnline(e.UserID)
	case event.UserOffline:
		s.Presence.SetOffline(e.UserID)
	case event.UserTyping:
		s.Typing.SetTyping(e.UserID)
	case event.UserStoppedTyping:
		s.Typing.ClearTyping(e.UserID)
	case event.ServerError:
		logger.Errorf("server error event: %s", e.Message)
	case event.MessageError:
		logger.Errorf("message %s rejected: %s", e.MessageID, e.Reason)
	}
	// PostLiked, PostCommented, LiveChatMessage, call and story events have
	// no local store; they reach the UI through the sink only.

	if s.sink != nil {
		s.sink.Publish(ev)
	}
}

// Connected re-fetches the page-1 snapshots. The channel manager does not
// resync application state; this is where downtime gaps get reconciled.
func (s *Syncer) Connected() {
	go s.refresh()
}

func (s *Syncer) refresh() {
	defer logger.DeferLogDuration("Syncer.refresh", time.Now())()
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if res := s.Messages.LoadConversations(ctx, 1, s.pageLimit); !res.Success {
		logger.Errorf("refresh conversations: %s", res.Message)
	}
	if res := s.Notifications.Load(ctx, 1, s.pageLimit); !res.Success {
		logger.Errorf("refresh notifications: %s", res.Message)
	}
	s.persistSnapshots(ctx)
}

// Disconnected clears the ephemeral trackers — they describe only the
// dropped session's world view. Conversations, messages and notifications
// survive.
func (s *Syncer) Disconnected(reason string) {
	s.Presence.Reset()
	s.Typing.Reset()
	s.Live.Reset()
	if s.sink != nil {
		s.sink.Publish(event.Disconnected{Reason: reason})
	}
}

// Prime seeds empty stores from cached snapshots before the first connect.
func (s *Syncer) Prime(ctx context.Context) {
	if s.snap == nil {
		return
	}
	userID := s.sess.UserID()
	if userID == "" {
		return
	}
	if convs, err := s.snap.LoadConversations(ctx, userID); err != nil {
		logger.Errorf("prime conversations: %v", err)
	} else if len(convs) > 0 {
		s.Messages.SeedConversations(convs)
	}
	if ns, err := s.snap.LoadNotifications(ctx, userID); err != nil {
		logger.Errorf("prime notifications: %v", err)
	} else if len(ns) > 0 {
		s.Notifications.Seed(ns)
	}
}

func (s *Syncer) persistSnapshots(ctx context.Context) {
	if s.snap == nil {
		return
	}
	userID := s.sess.UserID()
	if userID == "" {
		return
	}
	if err := s.snap.SaveConversations(ctx, userID, s.Messages.Conversations()); err != nil {
		logger.Errorf("snapshot conversations: %v", err)
	}
	if err := s.snap.SaveNotifications(ctx, userID, s.Notifications.Notifications()); err != nil {
		logger.Errorf("snapshot notifications: %v", err)
	}
}

// ResetAll returns every store to its initial empty state (logout/unmount).
func (s *Syncer) ResetAll() {
	s.Messages.Reset()
	s.Notifications.Reset()
	s.Presence.Reset()
	s.Typing.Reset()
	s.Live.Reset()
}

func eventLabel(ev event.Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
