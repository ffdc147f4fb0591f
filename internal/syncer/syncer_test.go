package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pulse/syncd/internal/api"
	"github.com/pulse/syncd/internal/cache/memory"
	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/model"
	"github.com/pulse/syncd/internal/session"
	"github.com/pulse/syncd/internal/store"
)

type stubMessageAPI struct {
	convs []model.Conversation
	msgs  []model.Message
}

func (s *stubMessageAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
	return nil, nil
}

func (s *stubMessageAPI) ListConversations(ctx context.Context, page, limit int) ([]model.Conversation, error) {
	return s.convs, nil
}

func (s *stubMessageAPI) ListMessages(ctx context.Context, peerID string, page, limit int) ([]model.Message, error) {
	return s.msgs, nil
}

func (s *stubMessageAPI) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	return nil, nil
}

func (s *stubMessageAPI) DeleteMessage(ctx context.Context, id string) error        { return nil }
func (s *stubMessageAPI) DeleteMessages(ctx context.Context, ids []string) error    { return nil }
func (s *stubMessageAPI) MarkConversationRead(ctx context.Context, id string) error { return nil }

type stubNotificationAPI struct {
	list []model.Notification
}

func (s *stubNotificationAPI) ListNotifications(ctx context.Context, page, limit int) ([]model.Notification, error) {
	return s.list, nil
}

func (s *stubNotificationAPI) MarkNotificationRead(ctx context.Context, id string) error { return nil }
func (s *stubNotificationAPI) MarkAllNotificationsRead(ctx context.Context) error        { return nil }
func (s *stubNotificationAPI) DeleteNotification(ctx context.Context, id string) error   { return nil }
func (s *stubNotificationAPI) ClearNotifications(ctx context.Context) error              { return nil }

type captureSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *captureSink) Publish(ev event.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestSyncer(msgAPI store.MessageAPI, notifAPI store.NotificationAPI, sink Sink) *Syncer {
	sess := session.Static("tok", "U1", nil)
	return New(
		store.NewMessageStore(msgAPI, nil, sess),
		store.NewNotificationStore(notifAPI),
		store.NewPresenceStore(),
		store.NewTypingStore(time.Minute),
		store.NewLiveStore(),
		sess,
		nil,
		sink,
		20,
	)
}

func TestHandleEvent_FansOutToStores(t *testing.T) {
	sink := &captureSink{}
	s := newTestSyncer(&stubMessageAPI{}, &stubNotificationAPI{}, sink)

	s.HandleEvent(event.UserTyping{UserID: "U2"})
	if !s.Typing.IsUserTyping("U2") {
		t.Fatal("typing flag not set")
	}

	// An incoming message from U2 implicitly ends their typing state.
	s.HandleEvent(event.NewMessage{Message: model.Message{
		ID: "m1", SenderID: "U2", ReceiverID: "U1", ConversationID: "c1", CreatedAt: time.Now(),
	}})
	if s.Typing.IsUserTyping("U2") {
		t.Fatal("typing flag survived the message")
	}
	if got := s.Messages.TotalUnreadCount(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	s.HandleEvent(event.NewNotification{Notification: model.Notification{ID: "n1", Type: model.NotificationFollow}})
	if got := s.Notifications.UnreadCount(); got != 1 {
		t.Fatalf("notifications unread = %d, want 1", got)
	}

	s.HandleEvent(event.UserOnline{UserID: "U3"})
	if !s.Presence.IsOnline("U3") {
		t.Fatal("presence not set")
	}

	s.HandleEvent(event.LiveStarted{Session: model.LiveSession{StreamID: "s1", HostID: "U3"}})
	s.HandleEvent(event.UserJoinedLive{StreamID: "s1", UserID: "U2"})
	if got := s.Live.ViewerCount("s1"); got != 1 {
		t.Fatalf("viewers = %d, want 1", got)
	}

	// Sink-only events must still reach the feed.
	s.HandleEvent(event.LiveChatMessage{StreamID: "s1", UserID: "U2", Text: "hi"})
	s.HandleEvent(event.IncomingCall{CallID: "call1", CallerID: "U2"})

	if got := sink.count(); got != 8 {
		t.Fatalf("sink received %d events, want 8", got)
	}
}

func TestDisconnected_ClearsEphemeralPreservesHistory(t *testing.T) {
	sink := &captureSink{}
	s := newTestSyncer(&stubMessageAPI{}, &stubNotificationAPI{}, sink)

	s.HandleEvent(event.NewMessage{Message: model.Message{
		ID: "m1", SenderID: "U2", ReceiverID: "U1", ConversationID: "c1", CreatedAt: time.Now(),
	}})
	s.HandleEvent(event.NewNotification{Notification: model.Notification{ID: "n1", Type: model.NotificationFollow}})
	s.HandleEvent(event.UserOnline{UserID: "U2"})
	s.HandleEvent(event.UserTyping{UserID: "U2"})
	s.HandleEvent(event.LiveStarted{Session: model.LiveSession{StreamID: "s1"}})

	s.Disconnected("connection lost")

	if len(s.Presence.OnlineUsers()) != 0 {
		t.Fatal("presence survived disconnect")
	}
	if len(s.Typing.TypingUsers()) != 0 {
		t.Fatal("typing survived disconnect")
	}
	if len(s.Live.Sessions()) != 0 {
		t.Fatal("live sessions survived disconnect")
	}
	// History is durable.
	if len(s.Messages.Conversations()) != 1 {
		t.Fatal("conversations lost on disconnect")
	}
	if len(s.Notifications.Notifications()) != 1 {
		t.Fatal("notifications lost on disconnect")
	}
}

func TestConnected_RefreshesPageOne(t *testing.T) {
	msgAPI := &stubMessageAPI{convs: []model.Conversation{{ID: "c1", PeerID: "U2", UnreadCount: 3}}}
	notifAPI := &stubNotificationAPI{list: []model.Notification{
		{ID: "n1", Type: model.NotificationFollow, CreatedAt: time.Now()},
	}}
	s := newTestSyncer(msgAPI, notifAPI, nil)

	s.Connected()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.Messages.Conversations()) == 1 && len(s.Notifications.Notifications()) == 1 {
			if got := s.Messages.TotalUnreadCount(); got != 3 {
				t.Fatalf("unread = %d, want 3", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("refresh never completed")
}

func TestPrime_SeedsFromSnapshot(t *testing.T) {
	snap := memory.New(time.Minute)
	ctx := context.Background()
	if err := snap.SaveConversations(ctx, "U1", []model.Conversation{{ID: "c1", PeerID: "U2"}}); err != nil {
		t.Fatal(err)
	}
	if err := snap.SaveNotifications(ctx, "U1", []model.Notification{
		{ID: "n1", Type: model.NotificationFollow, CreatedAt: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	sess := session.Static("tok", "U1", nil)
	s := New(
		store.NewMessageStore(&stubMessageAPI{}, nil, sess),
		store.NewNotificationStore(&stubNotificationAPI{}),
		store.NewPresenceStore(),
		store.NewTypingStore(time.Minute),
		store.NewLiveStore(),
		sess,
		snap,
		nil,
		20,
	)
	s.Prime(ctx)

	if len(s.Messages.Conversations()) != 1 {
		t.Fatal("conversations not seeded")
	}
	if len(s.Notifications.Notifications()) != 1 {
		t.Fatal("notifications not seeded")
	}
}

func TestResetAll(t *testing.T) {
	s := newTestSyncer(&stubMessageAPI{}, &stubNotificationAPI{}, nil)
	s.HandleEvent(event.NewMessage{Message: model.Message{
		ID: "m1", SenderID: "U2", ReceiverID: "U1", ConversationID: "c1", CreatedAt: time.Now(),
	}})
	s.HandleEvent(event.NewNotification{Notification: model.Notification{ID: "n1", Type: model.NotificationFollow}})
	s.HandleEvent(event.UserOnline{UserID: "U2"})

	s.ResetAll()

	if len(s.Messages.Conversations()) != 0 || s.Notifications.UnreadCount() != 0 || len(s.Presence.OnlineUsers()) != 0 {
		t.Fatal("stores not reset")
	}
}
