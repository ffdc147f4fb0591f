// Package event defines the push-channel wire contract: the inbound event
// taxonomy, the outbound command set, and the typed decode of both.
//
// The envelope format is wire-stable: {"type": "...", "payload": {...}}.
// Decode turns a raw frame into one concrete payload type so that each
// subsystem can dispatch with a single type switch instead of registering
// dozens of named callbacks.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulse/syncd/internal/model"
)

type Type string

// Inbound event types (server -> client).
const (
	TypeNewMessage        Type = "new_message"
	TypeMessageSent       Type = "message_sent"
	TypeMessageError      Type = "message_error"
	TypeNewNotification   Type = "new_notification"
	TypePostLiked         Type = "post_liked"
	TypePostCommented     Type = "post_commented"
	TypeLiveStarted       Type = "live_started"
	TypeLiveEnded         Type = "live_ended"
	TypeLiveChatMessage   Type = "live_chat_message"
	TypeUserJoinedLive    Type = "user_joined_live"
	TypeUserLeftLive      Type = "user_left_live"
	TypeIncomingCall      Type = "incoming_call"
	TypeCallAnswered      Type = "call_answered"
	TypeCallEnded         Type = "call_ended"
	TypeCallError         Type = "call_error"
	TypeStoryViewed       Type = "story_viewed"
	TypeStoryReply        Type = "story_reply"
	TypeUserOnline        Type = "user_online"
	TypeUserOffline       Type = "user_offline"
	TypeUserTyping        Type = "user_typing"
	TypeUserStoppedTyping Type = "user_stopped_typing"
	TypeError             Type = "error"
	TypeConnect           Type = "connect"
	TypeDisconnect        Type = "disconnect"
	TypeConnectError      Type = "connect_error"
)

// Outbound command types (client -> server). Fire-and-forget; the only
// acknowledgement contract is the *_error events.
const (
	CmdSendMessage          Type = "send_message"
	CmdMarkNotificationRead Type = "mark_notification_read"
	CmdLikePost             Type = "like_post"
	CmdCommentPost          Type = "comment_post"
	CmdJoinLive             Type = "join_live"
	CmdLeaveLive            Type = "leave_live"
	CmdLiveChatMessage      Type = "live_chat_message"
	CmdViewStory            Type = "view_story"
	CmdStartCall            Type = "start_call"
	CmdAnswerCall           Type = "answer_call"
	CmdEndCall              Type = "end_call"
	CmdTyping               Type = "typing"
	CmdStopTyping           Type = "stop_typing"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	Type    Type            `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one decoded inbound event. Concrete types below.
type Event any

// --- Inbound payloads ---

type NewMessage struct {
	Message model.Message
}

// MessageSent is the server's echo for a message this client sent.
// Carries the same canonical id as the REST response, so the merge
// path treats it exactly like NewMessage.
type MessageSent struct {
	Message model.Message
}

type MessageError struct {
	MessageID string
	Reason    string
}

type NewNotification struct {
	Notification model.Notification
}

type PostLiked struct {
	PostID string
	UserID string
}

type PostCommented struct {
	PostID    string
	CommentID string
	UserID    string
	Text      string
}

type LiveStarted struct {
	Session model.LiveSession
}

type LiveEnded struct {
	StreamID string
}

type LiveChatMessage struct {
	StreamID string
	UserID   string
	Username string
	Text     string
	SentAt   time.Time
}

type UserJoinedLive struct {
	StreamID string
	UserID   string
}

type UserLeftLive struct {
	StreamID string
	UserID   string
}

type IncomingCall struct {
	CallID   string
	CallerID string
	Video    bool
}

type CallAnswered struct {
	CallID string
	UserID string
}

type CallEnded struct {
	CallID string
	Reason string
}

type CallError struct {
	CallID string
	Reason string
}

type StoryViewed struct {
	StoryID  string
	ViewerID string
}

type StoryReply struct {
	StoryID  string
	SenderID string
	Text     string
}

type UserOnline struct {
	UserID string
}

type UserOffline struct {
	UserID string
}

type UserTyping struct {
	UserID string
}

type UserStoppedTyping struct {
	UserID string
}

// ServerError is a generic error event. A Message of "invalid token" is
// fatal and forces logout; everything else is surfaced and tolerated.
type ServerError struct {
	Message string
}

// Connected is the server's session acknowledgement after auth.
type Connected struct {
	SessionID string
}

// Disconnected announces a server-initiated close. Reason "server-forced"
// asks the client to reconnect after a delay.
type Disconnected struct {
	Reason string
}

var ErrUnknownType = errors.New("unknown event type")

// Decode parses one raw inbound frame into its concrete event type.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("missing event type")
	}

	switch env.Type {
	case TypeNewMessage:
		var m model.Message
		if err := unmarshalPayload(env, &m); err != nil {
			return nil, err
		}
		return NewMessage{Message: m}, nil
	case TypeMessageSent:
		var m model.Message
		if err := unmarshalPayload(env, &m); err != nil {
			return nil, err
		}
		return MessageSent{Message: m}, nil
	case TypeMessageError:
		var p struct {
			MessageID string `json:"message_id"`
			Reason    string `json:"reason"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return MessageError{MessageID: p.MessageID, Reason: p.Reason}, nil
	case TypeNewNotification:
		var n model.Notification
		if err := unmarshalPayload(env, &n); err != nil {
			return nil, err
		}
		return NewNotification{Notification: n}, nil
	case TypePostLiked:
		var p struct {
			PostID string `json:"post_id"`
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return PostLiked{PostID: p.PostID, UserID: p.UserID}, nil
	case TypePostCommented:
		var p struct {
			PostID    string `json:"post_id"`
			CommentID string `json:"comment_id"`
			UserID    string `json:"user_id"`
			Text      string `json:"text"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return PostCommented{PostID: p.PostID, CommentID: p.CommentID, UserID: p.UserID, Text: p.Text}, nil
	case TypeLiveStarted:
		var s model.LiveSession
		if err := unmarshalPayload(env, &s); err != nil {
			return nil, err
		}
		return LiveStarted{Session: s}, nil
	case TypeLiveEnded:
		var p struct {
			StreamID string `json:"stream_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return LiveEnded{StreamID: p.StreamID}, nil
	case TypeLiveChatMessage:
		var p struct {
			StreamID string    `json:"stream_id"`
			UserID   string    `json:"user_id"`
			Username string    `json:"username"`
			Text     string    `json:"text"`
			SentAt   time.Time `json:"sent_at"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return LiveChatMessage{StreamID: p.StreamID, UserID: p.UserID, Username: p.Username, Text: p.Text, SentAt: p.SentAt}, nil
	case TypeUserJoinedLive:
		var p struct {
			StreamID string `json:"stream_id"`
			UserID   string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserJoinedLive{StreamID: p.StreamID, UserID: p.UserID}, nil
	case TypeUserLeftLive:
		var p struct {
			StreamID string `json:"stream_id"`
			UserID   string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserLeftLive{StreamID: p.StreamID, UserID: p.UserID}, nil
	case TypeIncomingCall:
		var p struct {
			CallID   string `json:"call_id"`
			CallerID string `json:"caller_id"`
			Video    bool   `json:"video"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return IncomingCall{CallID: p.CallID, CallerID: p.CallerID, Video: p.Video}, nil
	case TypeCallAnswered:
		var p struct {
			CallID string `json:"call_id"`
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return CallAnswered{CallID: p.CallID, UserID: p.UserID}, nil
	case TypeCallEnded:
		var p struct {
			CallID string `json:"call_id"`
			Reason string `json:"reason"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return CallEnded{CallID: p.CallID, Reason: p.Reason}, nil
	case TypeCallError:
		var p struct {
			CallID string `json:"call_id"`
			Reason string `json:"reason"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return CallError{CallID: p.CallID, Reason: p.Reason}, nil
	case TypeStoryViewed:
		var p struct {
			StoryID  string `json:"story_id"`
			ViewerID string `json:"viewer_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return StoryViewed{StoryID: p.StoryID, ViewerID: p.ViewerID}, nil
	case TypeStoryReply:
		var p struct {
			StoryID  string `json:"story_id"`
			SenderID string `json:"sender_id"`
			Text     string `json:"text"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return StoryReply{StoryID: p.StoryID, SenderID: p.SenderID, Text: p.Text}, nil
	case TypeUserOnline:
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserOnline{UserID: p.UserID}, nil
	case TypeUserOffline:
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserOffline{UserID: p.UserID}, nil
	case TypeUserTyping:
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserTyping{UserID: p.UserID}, nil
	case TypeUserStoppedTyping:
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return UserStoppedTyping{UserID: p.UserID}, nil
	case TypeError:
		var p struct {
			Message string `json:"message"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return ServerError{Message: p.Message}, nil
	case TypeConnect:
		var p struct {
			SessionID string `json:"session_id"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return Connected{SessionID: p.SessionID}, nil
	case TypeDisconnect:
		var p struct {
			Reason string `json:"reason"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return Disconnected{Reason: p.Reason}, nil
	case TypeConnectError:
		var p struct {
			Message string `json:"message"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return ServerError{Message: p.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func unmarshalPayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

// Encode wraps an outbound command into the wire envelope.
// id correlates the command with a possible *_error event.
func Encode(cmd Type, id string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", cmd, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: cmd, ID: id, Payload: raw})
}
