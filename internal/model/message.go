package model

import "time"

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeVoice ContentType = "voice"
	ContentTypeFile  ContentType = "file"
)

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	ReceiverID     string      `json:"receiver_id"`
	Content        string      `json:"content"`
	ContentType    ContentType `json:"content_type"`
	MediaURL       string      `json:"media_url,omitempty"`
	Emojis         []string    `json:"emojis,omitempty"`
	IsRead         bool        `json:"is_read"`
	IsDeleted      bool        `json:"is_deleted"`
	EditedAt       *time.Time  `json:"edited_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Sender         *UserPublic `json:"sender,omitempty"`
}

type Conversation struct {
	ID          string      `json:"id"`
	PeerID      string      `json:"peer_id"`
	Peer        *UserPublic `json:"peer,omitempty"`
	LastMessage *Message    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
