package cache

import (
	"context"

	"github.com/pulse/syncd/internal/model"
)

// SnapshotStore — локальный кеш последних снапшотов (страница 1 диалогов и
// уведомлений), чтобы UI было что показать до первого ответа сервера.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type SnapshotStore interface {
	SaveConversations(ctx context.Context, userID string, convs []model.Conversation) error
	LoadConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	SaveNotifications(ctx context.Context, userID string, ns []model.Notification) error
	LoadNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	Close() error
}
