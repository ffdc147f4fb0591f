// Package api is the REST collaborator client for the message and
// notification resources. It is authoritative for creates, edits, deletes and
// read-marks; the push channel is only the low-latency notification path.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulse/syncd/internal/metrics"
	"github.com/pulse/syncd/internal/model"
	"github.com/pulse/syncd/internal/session"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	sess       session.Boundary
}

func NewClient(baseURL string, sess session.Boundary) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		sess:       sess,
	}
}

type apiError struct {
	Error string `json:"error"`
}

// resource extracts the top-level resource name from an /api/... path for
// the failure counter label.
func resource(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/")
	if i := strings.IndexAny(trimmed, "/?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// do performs one authenticated JSON round-trip. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	defer func() {
		if err != nil {
			metrics.RESTFailures.WithLabelValues(resource(path)).Inc()
		}
	}()
	return c.doJSON(ctx, method, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.sess.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil && ae.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, ae.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pageQuery(page, limit int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return "?" + q.Encode()
}

// --- Messages ---

type SendMessageRequest struct {
	ReceiverID  string            `json:"receiver_id"`
	Content     string            `json:"content"`
	ContentType model.ContentType `json:"content_type"`
	MediaURL    string            `json:"media_url,omitempty"`
	Emojis      []string          `json:"emojis,omitempty"`
}

// SendMessage performs the authoritative create. The returned message carries
// the canonical id the local list must display.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*model.Message, error) {
	var m model.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) ListConversations(ctx context.Context, page, limit int) ([]model.Conversation, error) {
	var out []model.Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations"+pageQuery(page, limit), nil, &out)
	return out, err
}

// ListMessages returns one page of the conversation with peerID, newest page
// first (stable backward pagination).
func (c *Client) ListMessages(ctx context.Context, peerID string, page, limit int) ([]model.Message, error) {
	var out []model.Message
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(peerID)+"/messages"+pageQuery(page, limit), nil, &out)
	return out, err
}

func (c *Client) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	var m model.Message
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(id), body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteMessages(ctx context.Context, ids []string) error {
	body := map[string][]string{"ids": ids}
	return c.do(ctx, http.MethodPost, "/api/messages/bulk-delete", body, nil)
}

func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID)+"/read", nil, nil)
}

func (c *Client) SearchMessages(ctx context.Context, query string, limit int) ([]model.Message, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	var out []model.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/search?"+q.Encode(), nil, &out)
	return out, err
}

// --- Notifications ---

func (c *Client) ListNotifications(ctx context.Context, page, limit int) ([]model.Notification, error) {
	var out []model.Notification
	err := c.do(ctx, http.MethodGet, "/api/notifications"+pageQuery(page, limit), nil, &out)
	return out, err
}

func (c *Client) ListUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	err := c.do(ctx, http.MethodGet, "/api/notifications/unread", nil, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications", nil, nil)
}

func (c *Client) GetNotificationSettings(ctx context.Context) (*model.NotificationSettings, error) {
	var s model.NotificationSettings
	if err := c.do(ctx, http.MethodGet, "/api/notifications/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateNotificationSettings(ctx context.Context, s model.NotificationSettings) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/settings", s, nil)
}
