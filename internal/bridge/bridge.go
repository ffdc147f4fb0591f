// Package bridge exposes the sync layer's read models to the local UI over
// HTTP: REST-ish reads of each store, commands that go through the stores or
// the push channel, an SSE feed of live events, and Prometheus metrics.
package bridge

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pulse/syncd/internal/channel"
	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/metrics"
	"github.com/pulse/syncd/internal/model"
	"github.com/pulse/syncd/internal/store"
	"github.com/pulse/syncd/internal/syncer"
)

// Channel is the outbound/state surface of the push channel the bridge needs.
type Channel interface {
	State() channel.State
	ConnectionError() error
	Emit(cmd event.Type, payload any) bool
}

type Bridge struct {
	sync      *syncer.Syncer
	ch        Channel
	feed      *eventFeed
	pageLimit int
}

func New(sync *syncer.Syncer, ch Channel, pageLimit int) *Bridge {
	if pageLimit <= 0 {
		pageLimit = 20
	}
	return &Bridge{sync: sync, ch: ch, feed: newEventFeed(), pageLimit: pageLimit}
}

// Feed returns the sink to wire into the syncer.
func (b *Bridge) Feed() syncer.Sink { return b.feed }

// Router builds the chi router for the local UI.
func (b *Bridge) Router(allowedOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverJSON)

	origins := []string{"*"}
	if allowedOrigins != "" && allowedOrigins != "*" {
		origins = origins[:0]
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/api/state", b.getState)

	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", b.getConversations)
		r.Get("/{peerID}/messages", b.getMessages)
		r.Post("/{conversationID}/read", b.markConversationRead)
	})

	r.Route("/api/messages", func(r chi.Router) {
		r.Post("/", b.sendMessage)
		r.Get("/unread-count", b.getTotalUnread)
		r.Put("/{id}", b.editMessage)
		r.Delete("/{id}", b.deleteMessage)
		r.Post("/{id}/select", b.toggleSelect)
		r.Post("/delete-selected", b.deleteSelected)
	})

	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", b.getNotifications)
		r.Get("/recent", b.getRecentNotifications)
		r.Get("/important", b.getImportantNotifications)
		r.Get("/stats", b.getNotificationStats)
		r.Post("/{id}/read", b.markNotificationRead)
		r.Post("/read-all", b.markAllNotificationsRead)
		r.Delete("/{id}", b.deleteNotification)
		r.Delete("/", b.clearNotifications)
	})

	r.Get("/api/presence", b.getPresence)
	r.Post("/api/typing", b.postTyping)
	r.Get("/api/typing", b.getTyping)

	r.Route("/api/live", func(r chi.Router) {
		r.Get("/", b.getLiveSessions)
		r.Get("/{streamID}", b.getLiveSession)
		r.Post("/{streamID}/join", b.joinLive)
		r.Post("/{streamID}/leave", b.leaveLive)
		r.Post("/{streamID}/chat", b.liveChat)
	})

	r.Get("/events", b.feed.serveSSE)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (b *Bridge) getState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"state": b.ch.State().String()}
	if err := b.ch.ConnectionError(); err != nil {
		resp["connection_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Conversations & messages ---

func (b *Bridge) getConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sync.Messages.Conversations())
}

// getMessages loads the requested page from the gateway, then returns the
// merged local list for the conversation.
func (b *Bridge) getMessages(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerID")
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", b.pageLimit)
	if limit > 100 {
		limit = 100
	}

	if res := b.sync.Messages.LoadMessages(r.Context(), peerID, page, limit); !res.Success {
		writeError(w, http.StatusBadGateway, res.Message)
		return
	}
	conv, exists := b.sync.Messages.ConversationByPeer(peerID)
	if !exists {
		writeJSON(w, http.StatusOK, []model.Message{})
		return
	}
	writeJSON(w, http.StatusOK, b.sync.Messages.Messages(conv.ID))
}

func (b *Bridge) markConversationRead(w http.ResponseWriter, r *http.Request) {
	res := b.sync.Messages.MarkConversationAsRead(r.Context(), chi.URLParam(r, "conversationID"))
	writeResult(w, res)
}

type sendMessageBody struct {
	ReceiverID  string            `json:"receiver_id"`
	Content     string            `json:"content"`
	ContentType model.ContentType `json:"content_type"`
	MediaURL    string            `json:"media_url,omitempty"`
	Emojis      []string          `json:"emojis,omitempty"`
}

func (b *Bridge) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ReceiverID == "" || (body.Content == "" && body.MediaURL == "") {
		writeError(w, http.StatusBadRequest, "receiver_id and content required")
		return
	}
	if body.ContentType == "" {
		body.ContentType = model.ContentTypeText
	}

	msg, res := b.sync.Messages.SendMessage(r.Context(), body.ReceiverID, body.Content, body.ContentType, body.MediaURL, body.Emojis)
	if !res.Success {
		writeError(w, http.StatusBadGateway, res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (b *Bridge) editMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil || body.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	writeResult(w, b.sync.Messages.EditMessage(r.Context(), chi.URLParam(r, "id"), body.Content))
}

func (b *Bridge) deleteMessage(w http.ResponseWriter, r *http.Request) {
	writeResult(w, b.sync.Messages.DeleteMessage(r.Context(), chi.URLParam(r, "id")))
}

func (b *Bridge) toggleSelect(w http.ResponseWriter, r *http.Request) {
	b.sync.Messages.ToggleSelect(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{"selected": b.sync.Messages.SelectedIDs()})
}

func (b *Bridge) deleteSelected(w http.ResponseWriter, r *http.Request) {
	writeResult(w, b.sync.Messages.DeleteSelectedMessages(r.Context()))
}

func (b *Bridge) getTotalUnread(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": b.sync.Messages.TotalUnreadCount()})
}

// --- Notifications ---

func (b *Bridge) getNotifications(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	if page > 0 {
		limit := queryInt(r, "limit", b.pageLimit)
		if res := b.sync.Notifications.Load(r.Context(), page, limit); !res.Success {
			writeError(w, http.StatusBadGateway, res.Message)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": b.sync.Notifications.Notifications(),
		"unread_count":  b.sync.Notifications.UnreadCount(),
	})
}

func (b *Bridge) getRecentNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sync.Notifications.RecentNotifications())
}

func (b *Bridge) getImportantNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sync.Notifications.ImportantNotifications())
}

func (b *Bridge) getNotificationStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sync.Notifications.NotificationStats())
}

func (b *Bridge) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := b.sync.Notifications.MarkAsRead(r.Context(), id)
	if res.Success {
		// Parallel fast path; REST already confirmed.
		b.ch.Emit(event.CmdMarkNotificationRead, map[string]string{"id": id})
	}
	writeResult(w, res)
}

func (b *Bridge) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	writeResult(w, b.sync.Notifications.MarkAllAsRead(r.Context()))
}

func (b *Bridge) deleteNotification(w http.ResponseWriter, r *http.Request) {
	writeResult(w, b.sync.Notifications.DeleteNotification(r.Context(), chi.URLParam(r, "id")))
}

func (b *Bridge) clearNotifications(w http.ResponseWriter, r *http.Request) {
	writeResult(w, b.sync.Notifications.ClearAllNotifications(r.Context()))
}

// --- Ephemeral trackers ---

func (b *Bridge) getPresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"online": b.sync.Presence.OnlineUsers()})
}

func (b *Bridge) getTyping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"typing": b.sync.Typing.TypingUsers()})
}

// postTyping relays the local user's typing state to the peer. Delivery is
// fire-and-forget: a false emit means "not delivered", reported as 409.
func (b *Bridge) postTyping(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PeerID string `json:"peer_id"`
		Typing bool   `json:"typing"`
	}
	if err := decodeBody(r, &body); err != nil || body.PeerID == "" {
		writeError(w, http.StatusBadRequest, "peer_id required")
		return
	}
	cmd := event.CmdStopTyping
	if body.Typing {
		cmd = event.CmdTyping
	}
	b.emitOrConflict(w, cmd, map[string]string{"peer_id": body.PeerID})
}

// --- Live sessions ---

func (b *Bridge) getLiveSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sync.Live.Sessions())
}

func (b *Bridge) getLiveSession(w http.ResponseWriter, r *http.Request) {
	session, exists := b.sync.Live.Session(chi.URLParam(r, "streamID"))
	if !exists {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (b *Bridge) joinLive(w http.ResponseWriter, r *http.Request) {
	b.emitOrConflict(w, event.CmdJoinLive, map[string]string{"stream_id": chi.URLParam(r, "streamID")})
}

func (b *Bridge) leaveLive(w http.ResponseWriter, r *http.Request) {
	b.emitOrConflict(w, event.CmdLeaveLive, map[string]string{"stream_id": chi.URLParam(r, "streamID")})
}

func (b *Bridge) liveChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil || body.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	b.emitOrConflict(w, event.CmdLiveChatMessage, map[string]string{
		"stream_id": chi.URLParam(r, "streamID"),
		"text":      body.Text,
	})
}

// emitOrConflict sends a fire-and-forget command; a false emit means the
// channel is down and the caller must retry or surface it.
func (b *Bridge) emitOrConflict(w http.ResponseWriter, cmd event.Type, payload any) {
	if !b.ch.Emit(cmd, payload) {
		metrics.EmitFailures.Inc()
		writeError(w, http.StatusConflict, "not connected, action not delivered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeResult(w http.ResponseWriter, res store.Result) {
	if !res.Success {
		writeError(w, http.StatusBadGateway, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
