package model

import "time"

type UserPublic struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// LiveSession is the ephemeral view of one running live stream.
// Viewer membership only; chat history is not kept client-side.
type LiveSession struct {
	StreamID  string      `json:"stream_id"`
	HostID    string      `json:"host_id"`
	Title     string      `json:"title,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	Viewers   []string    `json:"viewers"`
	Host      *UserPublic `json:"host,omitempty"`
}
