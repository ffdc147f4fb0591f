package model

import "time"

type NotificationType string

const (
	NotificationFollow       NotificationType = "follow"
	NotificationLikePost     NotificationType = "like_post"
	NotificationCommentPost  NotificationType = "comment_post"
	NotificationMessage      NotificationType = "message"
	NotificationLiveStarted  NotificationType = "live_started"
	NotificationStoryReply   NotificationType = "story_reply"
	NotificationIncomingCall NotificationType = "incoming_call"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	SenderID  string           `json:"sender_id,omitempty"`
	Sender    *UserPublic      `json:"sender,omitempty"`
	PostID    string           `json:"post_id,omitempty"`
	MessageID string           `json:"message_id,omitempty"`
	StreamID  string           `json:"stream_id,omitempty"`
	Text      string           `json:"text,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationSettings mirrors the per-user delivery preferences stored server-side.
type NotificationSettings struct {
	Follows  bool `json:"follows"`
	Likes    bool `json:"likes"`
	Comments bool `json:"comments"`
	Messages bool `json:"messages"`
	Lives    bool `json:"lives"`
}
