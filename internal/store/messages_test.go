package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulse/syncd/internal/api"
	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/model"
	"github.com/pulse/syncd/internal/session"
)

type fakeMessageAPI struct {
	sendFn         func(ctx context.Context, req api.SendMessageRequest) (*model.Message, error)
	listConvsFn    func(ctx context.Context, page, limit int) ([]model.Conversation, error)
	listMsgsFn     func(ctx context.Context, peerID string, page, limit int) ([]model.Message, error)
	editFn         func(ctx context.Context, id, content string) (*model.Message, error)
	deleteFn       func(ctx context.Context, id string) error
	deleteBulkFn   func(ctx context.Context, ids []string) error
	markConvReadFn func(ctx context.Context, conversationID string) error
}

func (f *fakeMessageAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
	if f.sendFn == nil {
		return nil, errors.New("not implemented")
	}
	return f.sendFn(ctx, req)
}

func (f *fakeMessageAPI) ListConversations(ctx context.Context, page, limit int) ([]model.Conversation, error) {
	if f.listConvsFn == nil {
		return nil, nil
	}
	return f.listConvsFn(ctx, page, limit)
}

func (f *fakeMessageAPI) ListMessages(ctx context.Context, peerID string, page, limit int) ([]model.Message, error) {
	if f.listMsgsFn == nil {
		return nil, nil
	}
	return f.listMsgsFn(ctx, peerID, page, limit)
}

func (f *fakeMessageAPI) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	if f.editFn == nil {
		return nil, errors.New("not implemented")
	}
	return f.editFn(ctx, id, content)
}

func (f *fakeMessageAPI) DeleteMessage(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeMessageAPI) DeleteMessages(ctx context.Context, ids []string) error {
	if f.deleteBulkFn == nil {
		return nil
	}
	return f.deleteBulkFn(ctx, ids)
}

func (f *fakeMessageAPI) MarkConversationRead(ctx context.Context, conversationID string) error {
	if f.markConvReadFn == nil {
		return nil
	}
	return f.markConvReadFn(ctx, conversationID)
}

type fakeEmitter struct {
	connected bool
	emitted   []event.Type
}

func (f *fakeEmitter) Emit(cmd event.Type, payload any) bool {
	if !f.connected {
		return false
	}
	f.emitted = append(f.emitted, cmd)
	return true
}

func newTestMessageStore(restAPI MessageAPI) *MessageStore {
	return NewMessageStore(restAPI, &fakeEmitter{connected: true}, session.Static("tok", "U1", nil))
}

func peerMsg(id, sender string, at time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       sender,
		ReceiverID:     "U1",
		Content:        "hello",
		ContentType:    model.ContentTypeText,
		CreatedAt:      at,
	}
}

func TestAddMessage_IdempotentOnID(t *testing.T) {
	s := newTestMessageStore(&fakeMessageAPI{})
	now := time.Now()

	for i := 0; i < 3; i++ {
		s.AddMessage(peerMsg("m1", "U2", now))
	}
	s.AddMessage(peerMsg("m2", "U2", now.Add(time.Second)))
	s.AddMessage(peerMsg("m1", "U2", now))

	msgs := s.Messages("c1")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if got := s.TotalUnreadCount(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
}

func TestAddMessage_UnreadCounting(t *testing.T) {
	s := newTestMessageStore(&fakeMessageAPI{})
	now := time.Now()

	// Peer-authored unread increments.
	s.AddMessage(peerMsg("m1", "U2", now))
	// Own message never increments.
	own := peerMsg("m2", "U1", now.Add(time.Second))
	own.ReceiverID = "U2"
	s.AddMessage(own)
	// Peer-authored but already read does not increment.
	read := peerMsg("m3", "U2", now.Add(2*time.Second))
	read.IsRead = true
	s.AddMessage(read)

	convs := s.Conversations()
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	if convs[0].UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", convs[0].UnreadCount)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.ID != "m3" {
		t.Fatalf("last message not upserted: %+v", convs[0].LastMessage)
	}
}

func TestSendMessage_ChannelEchoBeforeRESTResponse(t *testing.T) {
	var s *MessageStore
	now := time.Now()
	restAPI := &fakeMessageAPI{
		sendFn: func(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
			// The channel echo for the same send lands before the REST
			// round-trip resolves.
			echo := peerMsg("m1", "U1", now)
			echo.ReceiverID = req.ReceiverID
			s.AddMessage(echo)
			resp := echo
			return &resp, nil
		},
	}
	s = newTestMessageStore(restAPI)

	msg, res := s.SendMessage(context.Background(), "U2", "hi", model.ContentTypeText, "", nil)
	if !res.Success {
		t.Fatalf("send failed: %s", res.Message)
	}
	if msg.ID != "m1" {
		t.Fatalf("id = %q, want m1", msg.ID)
	}
	if got := len(s.Messages("c1")); got != 1 {
		t.Fatalf("expected exactly 1 message, got %d", got)
	}
}

func TestSendMessage_EmitsChannelCommand(t *testing.T) {
	em := &fakeEmitter{connected: true}
	restAPI := &fakeMessageAPI{
		sendFn: func(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
			m := peerMsg("m1", "U1", time.Now())
			m.ReceiverID = req.ReceiverID
			return &m, nil
		},
	}
	s := NewMessageStore(restAPI, em, session.Static("tok", "U1", nil))

	if _, res := s.SendMessage(context.Background(), "U2", "hi", model.ContentTypeText, "", nil); !res.Success {
		t.Fatalf("send failed: %s", res.Message)
	}
	if len(em.emitted) != 1 || em.emitted[0] != event.CmdSendMessage {
		t.Fatalf("emitted = %v, want [send_message]", em.emitted)
	}
}

func TestSendMessage_RESTFailure(t *testing.T) {
	restAPI := &fakeMessageAPI{
		sendFn: func(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
			return nil, errors.New("boom")
		},
	}
	s := newTestMessageStore(restAPI)

	msg, res := s.SendMessage(context.Background(), "U2", "hi", model.ContentTypeText, "", nil)
	if res.Success || msg != nil {
		t.Fatalf("expected failure result, got %+v %+v", msg, res)
	}
	if len(s.Conversations()) != 0 {
		t.Fatal("failed send must not create local state")
	}
}

func TestLoadMessages_PageOneReplacesAndRecomputesUnread(t *testing.T) {
	now := time.Now()
	restAPI := &fakeMessageAPI{
		listMsgsFn: func(ctx context.Context, peerID string, page, limit int) ([]model.Message, error) {
			read := peerMsg("m1", "U2", now)
			read.IsRead = true
			unread := peerMsg("m2", "U2", now.Add(time.Second))
			own := peerMsg("m3", "U1", now.Add(2*time.Second))
			return []model.Message{own, unread, read}, nil
		},
	}
	s := newTestMessageStore(restAPI)
	// Stale local state that the authoritative refresh must replace.
	s.AddMessage(peerMsg("old", "U2", now.Add(-time.Hour)))

	if res := s.LoadMessages(context.Background(), "U2", 1, 20); !res.Success {
		t.Fatalf("load: %s", res.Message)
	}

	conv, exists := s.ConversationByPeer("U2")
	if !exists {
		t.Fatal("conversation missing")
	}
	msgs := s.Messages(conv.ID)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// unread == count(unread AND sender != self)
	if conv.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", conv.UnreadCount)
	}
}

func TestLoadMessages_LaterPageAppendsWithoutDedup(t *testing.T) {
	now := time.Now()
	page := 0
	restAPI := &fakeMessageAPI{
		listMsgsFn: func(ctx context.Context, peerID string, p, limit int) ([]model.Message, error) {
			page = p
			// The same window twice: appending must not dedup.
			return []model.Message{peerMsg("m1", "U2", now)}, nil
		},
	}
	s := newTestMessageStore(restAPI)

	if res := s.LoadMessages(context.Background(), "U2", 1, 20); !res.Success {
		t.Fatalf("page 1: %s", res.Message)
	}
	if res := s.LoadMessages(context.Background(), "U2", 2, 20); !res.Success {
		t.Fatalf("page 2: %s", res.Message)
	}
	if page != 2 {
		t.Fatalf("page = %d, want 2", page)
	}

	conv, _ := s.ConversationByPeer("U2")
	if got := len(s.Messages(conv.ID)); got != 2 {
		t.Fatalf("expected appended duplicate (2 entries), got %d", got)
	}
}

func TestLoadConversations_PageOneReplaces(t *testing.T) {
	restAPI := &fakeMessageAPI{
		listConvsFn: func(ctx context.Context, page, limit int) ([]model.Conversation, error) {
			return []model.Conversation{{ID: "c9", PeerID: "U9", UnreadCount: 2}}, nil
		},
	}
	s := newTestMessageStore(restAPI)
	s.AddMessage(peerMsg("m1", "U2", time.Now()))

	if res := s.LoadConversations(context.Background(), 1, 20); !res.Success {
		t.Fatalf("load: %s", res.Message)
	}
	convs := s.Conversations()
	if len(convs) != 1 || convs[0].ID != "c9" {
		t.Fatalf("page 1 must replace the list, got %+v", convs)
	}
}

func TestMarkConversationAsRead_OptimisticKeptOnRESTFailure(t *testing.T) {
	restAPI := &fakeMessageAPI{
		markConvReadFn: func(ctx context.Context, conversationID string) error {
			return errors.New("gateway down")
		},
	}
	s := newTestMessageStore(restAPI)
	s.AddMessage(peerMsg("m1", "U2", time.Now()))

	res := s.MarkConversationAsRead(context.Background(), "c1")
	if res.Success {
		t.Fatal("expected failure result")
	}
	// The optimistic mutation is not rolled back.
	if got := s.TotalUnreadCount(); got != 0 {
		t.Fatalf("unread = %d, want 0 (optimistic state kept)", got)
	}
	for _, m := range s.Messages("c1") {
		if !m.IsRead {
			t.Fatalf("message %s not marked read", m.ID)
		}
	}
}

func TestDeleteMessage_RESTAuthoritative(t *testing.T) {
	calls := 0
	restAPI := &fakeMessageAPI{
		deleteFn: func(ctx context.Context, id string) error {
			calls++
			if calls == 1 {
				return errors.New("boom")
			}
			return nil
		},
	}
	s := newTestMessageStore(restAPI)
	s.AddMessage(peerMsg("m1", "U2", time.Now()))

	if res := s.DeleteMessage(context.Background(), "m1"); res.Success {
		t.Fatal("expected failure")
	}
	if s.Messages("c1")[0].IsDeleted {
		t.Fatal("local delete must wait for REST success")
	}

	if res := s.DeleteMessage(context.Background(), "m1"); !res.Success {
		t.Fatal("expected success")
	}
	if !s.Messages("c1")[0].IsDeleted {
		t.Fatal("message not soft-deleted after REST success")
	}
}

func TestDeleteSelectedMessages(t *testing.T) {
	var gotIDs []string
	restAPI := &fakeMessageAPI{
		deleteBulkFn: func(ctx context.Context, ids []string) error {
			gotIDs = ids
			return nil
		},
	}
	s := newTestMessageStore(restAPI)
	now := time.Now()
	s.AddMessage(peerMsg("m1", "U2", now))
	s.AddMessage(peerMsg("m2", "U2", now.Add(time.Second)))
	s.AddMessage(peerMsg("m3", "U2", now.Add(2*time.Second)))

	s.ToggleSelect("m1")
	s.ToggleSelect("m3")
	s.ToggleSelect("m1") // deselect
	s.ToggleSelect("m1")

	if res := s.DeleteSelectedMessages(context.Background()); !res.Success {
		t.Fatalf("delete selected: %s", res.Message)
	}
	if len(gotIDs) != 2 {
		t.Fatalf("bulk delete ids = %v", gotIDs)
	}
	deleted := 0
	for _, m := range s.Messages("c1") {
		if m.IsDeleted {
			deleted++
		}
	}
	if deleted != 2 {
		t.Fatalf("soft-deleted = %d, want 2", deleted)
	}
	if len(s.SelectedIDs()) != 0 {
		t.Fatal("selection not cleared")
	}
}

func TestReset_DiscardsInFlightRESTResponse(t *testing.T) {
	var s *MessageStore
	restAPI := &fakeMessageAPI{
		sendFn: func(ctx context.Context, req api.SendMessageRequest) (*model.Message, error) {
			// Logout happens while the round-trip is in flight.
			s.Reset()
			m := peerMsg("m1", "U1", time.Now())
			return &m, nil
		},
	}
	s = newTestMessageStore(restAPI)

	_, res := s.SendMessage(context.Background(), "U2", "hi", model.ContentTypeText, "", nil)
	if res.Success {
		t.Fatal("stale response must be discarded")
	}
	if len(s.Conversations()) != 0 {
		t.Fatal("stale response resurrected cleared state")
	}
}

func TestMessages_NewestFirstOrdering(t *testing.T) {
	s := newTestMessageStore(&fakeMessageAPI{})
	now := time.Now()
	s.AddMessage(peerMsg("m1", "U2", now))
	s.AddMessage(peerMsg("m3", "U2", now.Add(2*time.Second)))
	// Out-of-order arrival lands in its timestamp slot.
	s.AddMessage(peerMsg("m2", "U2", now.Add(time.Second)))

	msgs := s.Messages("c1")
	want := []string{"m3", "m2", "m1"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("order = [%s %s %s], want %v", msgs[0].ID, msgs[1].ID, msgs[2].ID, want)
		}
	}
}
