package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pulse/syncd/internal/api"
	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/logger"
	"github.com/pulse/syncd/internal/model"
	"github.com/pulse/syncd/internal/session"
)

// MessageAPI is the REST surface the synchronizer depends on.
type MessageAPI interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*model.Message, error)
	ListConversations(ctx context.Context, page, limit int) ([]model.Conversation, error)
	ListMessages(ctx context.Context, peerID string, page, limit int) ([]model.Message, error)
	EditMessage(ctx context.Context, id, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteMessages(ctx context.Context, ids []string) error
	MarkConversationRead(ctx context.Context, conversationID string) error
}

// Emitter is the outbound side of the push channel.
type Emitter interface {
	Emit(cmd event.Type, payload any) bool
}

// MessageStore synchronizes conversations and message lists against the REST
// collaborator and channel-pushed events.
//
// Message lists are kept newest-first: page 1 is the newest window, page N>1
// appends the next older window, and a pushed message is inserted at the
// head. Within a conversation ids are unique; AddMessage is idempotent so
// the REST response and the channel echo of the same send merge into one
// entry regardless of arrival order.
type MessageStore struct {
	mu   sync.Mutex
	api  MessageAPI
	ch   Emitter
	sess session.Boundary

	conversations map[string]*model.Conversation
	byPeer        map[string]string // peer user id -> conversation id
	messages      map[string][]model.Message
	msgConv       map[string]string // message id -> conversation id
	selected      map[string]struct{}

	// gen invalidates in-flight REST callbacks across a Reset: a response
	// that started before the reset must not resurrect cleared state.
	gen uint64
}

// NewMessageStore builds the synchronizer. ch may be nil until the channel
// manager exists; see SetEmitter.
func NewMessageStore(restAPI MessageAPI, ch Emitter, sess session.Boundary) *MessageStore {
	s := &MessageStore{api: restAPI, ch: ch, sess: sess}
	s.initLocked()
	return s
}

// SetEmitter wires the outbound channel once it is constructed.
func (s *MessageStore) SetEmitter(ch Emitter) {
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
}

func (s *MessageStore) initLocked() {
	s.conversations = make(map[string]*model.Conversation)
	s.byPeer = make(map[string]string)
	s.messages = make(map[string][]model.Message)
	s.msgConv = make(map[string]string)
	s.selected = make(map[string]struct{})
}

// Reset returns the store to its initial empty state and invalidates
// in-flight REST callbacks.
func (s *MessageStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.initLocked()
}

func (s *MessageStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// AddMessage merges one message into the store. Idempotent on msg.ID: a
// duplicate (channel echo after the REST response, or a redelivered event)
// is a no-op. Upserts the owning conversation's last message and increments
// its unread counter only for unread peer-authored messages.
func (s *MessageStore) AddMessage(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMessageLocked(msg)
}

func (s *MessageStore) addMessageLocked(msg model.Message) {
	if _, dup := s.msgConv[msg.ID]; dup {
		return
	}

	self := s.sess.UserID()
	peer := msg.SenderID
	if msg.SenderID == self {
		peer = msg.ReceiverID
	}

	convID := msg.ConversationID
	if convID == "" {
		if id, okPeer := s.byPeer[peer]; okPeer {
			convID = id
		} else {
			// No server conversation id yet: key by the participant pair.
			convID = peer
		}
	}
	msg.ConversationID = convID

	conv, exists := s.conversations[convID]
	if !exists {
		conv = &model.Conversation{ID: convID, PeerID: peer, Peer: msg.Sender}
		if msg.SenderID == self {
			conv.Peer = nil
		}
		s.conversations[convID] = conv
	}
	s.byPeer[peer] = convID

	s.insertSortedLocked(convID, msg)
	s.msgConv[msg.ID] = convID

	last := msg
	conv.LastMessage = &last
	conv.UpdatedAt = msg.CreatedAt
	if msg.SenderID != self && !msg.IsRead {
		conv.UnreadCount++
	}
}

// insertSortedLocked places msg into the newest-first list. The common case
// is a head insert; an out-of-order arrival walks to its timestamp slot so
// display order stays non-decreasing bottom-up.
func (s *MessageStore) insertSortedLocked(convID string, msg model.Message) {
	list := s.messages[convID]
	if len(list) == 0 || !msg.CreatedAt.Before(list[0].CreatedAt) {
		s.messages[convID] = append([]model.Message{msg}, list...)
		return
	}
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt.Before(msg.CreatedAt) || list[i].CreatedAt.Equal(msg.CreatedAt)
	})
	list = append(list, model.Message{})
	copy(list[i+1:], list[i:])
	list[i] = msg
	s.messages[convID] = list
}

// SendMessage creates the message via REST (authoritative for the id),
// applies it locally, and also emits the channel command as the parallel
// low-latency path to the peer.
func (s *MessageStore) SendMessage(ctx context.Context, receiverID, content string, contentType model.ContentType, mediaURL string, emojis []string) (*model.Message, Result) {
	defer logger.DeferLogDuration("MessageStore.SendMessage", time.Now())()
	gen := s.generation()

	msg, err := s.api.SendMessage(ctx, api.SendMessageRequest{
		ReceiverID:  receiverID,
		Content:     content,
		ContentType: contentType,
		MediaURL:    mediaURL,
		Emojis:      emojis,
	})
	if err != nil {
		logger.Errorf("send message: %v", err)
		return nil, fail("message not sent")
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, fail("session ended")
	}
	s.addMessageLocked(*msg)
	ch := s.ch
	s.mu.Unlock()

	if ch != nil && !ch.Emit(event.CmdSendMessage, msg) {
		// REST already delivered it authoritatively; only the fast path is lost.
		logger.Debugf("send_message emit skipped: channel not connected")
	}
	return msg, ok()
}

// LoadConversations fetches one page of the conversation list. Page 1
// replaces the local list (authoritative refresh), later pages merge in
// conversations not seen yet.
func (s *MessageStore) LoadConversations(ctx context.Context, page, limit int) Result {
	gen := s.generation()
	convs, err := s.api.ListConversations(ctx, page, limit)
	if err != nil {
		logger.Errorf("load conversations page %d: %v", page, err)
		return fail("failed to load conversations")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}

	if page <= 1 {
		s.conversations = make(map[string]*model.Conversation)
		s.byPeer = make(map[string]string)
	}
	for i := range convs {
		c := convs[i]
		if _, exists := s.conversations[c.ID]; exists && page > 1 {
			continue
		}
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		s.conversations[c.ID] = &c
		if c.PeerID != "" {
			s.byPeer[c.PeerID] = c.ID
		}
	}
	return ok()
}

// LoadMessages fetches one page of a conversation. Page 1 replaces the local
// list and recomputes the unread counter from the payload; page N>1 appends
// the older window without dedup against already-loaded pages.
func (s *MessageStore) LoadMessages(ctx context.Context, peerID string, page, limit int) Result {
	gen := s.generation()
	msgs, err := s.api.ListMessages(ctx, peerID, page, limit)
	if err != nil {
		logger.Errorf("load messages peer=%s page %d: %v", peerID, page, err)
		return fail("failed to load messages")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}

	self := s.sess.UserID()
	convID := peerID
	if id, okPeer := s.byPeer[peerID]; okPeer {
		convID = id
	}

	if page <= 1 {
		for _, m := range s.messages[convID] {
			delete(s.msgConv, m.ID)
		}
		s.messages[convID] = nil
	}
	for i := range msgs {
		m := msgs[i]
		if m.ConversationID == "" {
			m.ConversationID = convID
		}
		s.messages[convID] = append(s.messages[convID], m)
		s.msgConv[m.ID] = convID
	}

	conv, exists := s.conversations[convID]
	if !exists {
		conv = &model.Conversation{ID: convID, PeerID: peerID}
		s.conversations[convID] = conv
		s.byPeer[peerID] = convID
	}
	list := s.messages[convID]
	if len(list) > 0 {
		last := list[0]
		conv.LastMessage = &last
		conv.UpdatedAt = last.CreatedAt
	}
	if page <= 1 {
		unread := 0
		for _, m := range list {
			if !m.IsRead && m.SenderID != self {
				unread++
			}
		}
		conv.UnreadCount = unread
	}
	return ok()
}

// MarkConversationAsRead optimistically marks every local message in the
// conversation read and zeroes its unread counter, then confirms via REST.
// A REST failure is reported in the result but the local mutation is kept;
// the next page-1 refresh reconciles.
func (s *MessageStore) MarkConversationAsRead(ctx context.Context, conversationID string) Result {
	s.mu.Lock()
	list := s.messages[conversationID]
	for i := range list {
		list[i].IsRead = true
	}
	if conv, exists := s.conversations[conversationID]; exists {
		conv.UnreadCount = 0
		if conv.LastMessage != nil {
			conv.LastMessage.IsRead = true
		}
	}
	s.mu.Unlock()

	if err := s.api.MarkConversationRead(ctx, conversationID); err != nil {
		logger.Errorf("mark conversation read %s: %v", conversationID, err)
		return fail("failed to mark conversation as read")
	}
	return ok()
}

// EditMessage is REST-authoritative: the local copy changes only after the
// server accepts the edit.
func (s *MessageStore) EditMessage(ctx context.Context, id, content string) Result {
	gen := s.generation()
	updated, err := s.api.EditMessage(ctx, id, content)
	if err != nil {
		logger.Errorf("edit message %s: %v", id, err)
		return fail("failed to edit message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	convID, exists := s.msgConv[id]
	if !exists {
		return ok()
	}
	list := s.messages[convID]
	for i := range list {
		if list[i].ID == id {
			list[i].Content = updated.Content
			list[i].EditedAt = updated.EditedAt
			break
		}
	}
	if conv, found := s.conversations[convID]; found && conv.LastMessage != nil && conv.LastMessage.ID == id {
		conv.LastMessage.Content = updated.Content
		conv.LastMessage.EditedAt = updated.EditedAt
	}
	return ok()
}

// DeleteMessage is REST-authoritative; on success the local copy is
// soft-deleted (flagged, kept in place until the next reload).
func (s *MessageStore) DeleteMessage(ctx context.Context, id string) Result {
	gen := s.generation()
	if err := s.api.DeleteMessage(ctx, id); err != nil {
		logger.Errorf("delete message %s: %v", id, err)
		return fail("failed to delete message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	s.softDeleteLocked(id)
	return ok()
}

func (s *MessageStore) softDeleteLocked(id string) {
	convID, exists := s.msgConv[id]
	if !exists {
		return
	}
	list := s.messages[convID]
	for i := range list {
		if list[i].ID == id {
			list[i].IsDeleted = true
			break
		}
	}
	if conv, found := s.conversations[convID]; found && conv.LastMessage != nil && conv.LastMessage.ID == id {
		conv.LastMessage.IsDeleted = true
	}
}

// ToggleSelect flips a message in or out of the bulk-delete selection.
func (s *MessageStore) ToggleSelect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, selected := s.selected[id]; selected {
		delete(s.selected, id)
		return
	}
	if _, exists := s.msgConv[id]; exists {
		s.selected[id] = struct{}{}
	}
}

// SelectedIDs returns the current selection.
func (s *MessageStore) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteSelectedMessages bulk-deletes the selection via REST; local removal
// happens only after the call confirms.
func (s *MessageStore) DeleteSelectedMessages(ctx context.Context) Result {
	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return ok()
	}
	gen := s.generation()
	if err := s.api.DeleteMessages(ctx, ids); err != nil {
		logger.Errorf("delete %d messages: %v", len(ids), err)
		return fail("failed to delete messages")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fail("session ended")
	}
	for _, id := range ids {
		s.softDeleteLocked(id)
		delete(s.selected, id)
	}
	return ok()
}

// SeedConversations primes an empty store from a cached snapshot so the UI
// has something to render before the first page-1 refresh. A non-empty store
// is left untouched.
func (s *MessageStore) SeedConversations(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversations) > 0 {
		return
	}
	for i := range convs {
		c := convs[i]
		s.conversations[c.ID] = &c
		if c.PeerID != "" {
			s.byPeer[c.PeerID] = c.ID
		}
	}
}

// --- Read model ---

// Conversations returns a copy of the conversation list, most recent first.
func (s *MessageStore) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Messages returns a copy of one conversation's list, newest first.
func (s *MessageStore) Messages(conversationID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.messages[conversationID]
	out := make([]model.Message, len(list))
	copy(out, list)
	return out
}

// ConversationByPeer resolves the conversation for a peer user id.
func (s *MessageStore) ConversationByPeer(peerID string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, exists := s.byPeer[peerID]
	if !exists {
		return model.Conversation{}, false
	}
	conv, found := s.conversations[id]
	if !found {
		return model.Conversation{}, false
	}
	return *conv, true
}

// TotalUnreadCount sums unread counters across conversations.
func (s *MessageStore) TotalUnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}
