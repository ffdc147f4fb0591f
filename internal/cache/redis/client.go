package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulse/syncd/internal/model"
)

// Client хранит снапшоты в Redis как JSON под ключами snap:{kind}:{userID}.
type Client struct {
	cli *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, url string, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{cli: cli, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, key, data, c.ttl).Err()
}

func (c *Client) get(ctx context.Context, key string, v any) error {
	data, err := c.cli.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveConversations сохраняет снапшот списка диалогов с TTL кеша.
func (c *Client) SaveConversations(ctx context.Context, userID string, convs []model.Conversation) error {
	return c.set(ctx, "snap:conversations:"+userID, convs)
}

// LoadConversations возвращает снапшот или nil, если ключа нет/он истёк.
func (c *Client) LoadConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.get(ctx, "snap:conversations:"+userID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveNotifications сохраняет снапшот списка уведомлений с TTL кеша.
func (c *Client) SaveNotifications(ctx context.Context, userID string, ns []model.Notification) error {
	return c.set(ctx, "snap:notifications:"+userID, ns)
}

// LoadNotifications возвращает снапшот или nil, если ключа нет/он истёк.
func (c *Client) LoadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.get(ctx, "snap:notifications:"+userID, &out); err != nil {
		return nil, err
	}
	return out, nil
}
