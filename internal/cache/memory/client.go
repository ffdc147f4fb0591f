package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pulse/syncd/internal/model"
)

type entry struct {
	convs  []model.Conversation
	notifs []model.Notification
	exp    time.Time
}

// Client — кеш снапшотов в памяти процесса (для -dev без Redis).
type Client struct {
	mu     sync.RWMutex
	ttl    time.Duration
	byUser map[string]*entry
}

func New(ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{ttl: ttl, byUser: make(map[string]*entry)}
}

func (c *Client) Close() error { return nil }

func (c *Client) ensure(userID string) *entry {
	e, exists := c.byUser[userID]
	if !exists || time.Now().After(e.exp) {
		e = &entry{}
		c.byUser[userID] = e
	}
	e.exp = time.Now().Add(c.ttl)
	return e
}

func (c *Client) SaveConversations(ctx context.Context, userID string, convs []model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]model.Conversation, len(convs))
	copy(cp, convs)
	c.ensure(userID).convs = cp
	return nil
}

func (c *Client) LoadConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.byUser[userID]
	if !exists || time.Now().After(e.exp) {
		return nil, nil
	}
	out := make([]model.Conversation, len(e.convs))
	copy(out, e.convs)
	return out, nil
}

func (c *Client) SaveNotifications(ctx context.Context, userID string, ns []model.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]model.Notification, len(ns))
	copy(cp, ns)
	c.ensure(userID).notifs = cp
	return nil
}

func (c *Client) LoadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.byUser[userID]
	if !exists || time.Now().After(e.exp) {
		return nil, nil
	}
	out := make([]model.Notification, len(e.notifs))
	copy(out, e.notifs)
	return out, nil
}
