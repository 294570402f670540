package srv

import (
	"context"
	"log/slog"

	"github.com/filedepot/filedepot/pkg/queue"
	"github.com/filedepot/filedepot/pkg/types"
)

// Notifier 通知协作方。投递是 fire-and-forget 的，
// 核心状态流转不等待也不感知通知结果
type Notifier interface {
	Publish(ctx context.Context, eventType types.EventType, tenantID string, recipients []string, payload map[string]string)
}

// NoopNotifier 未配置通知时的占位实现
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, eventType types.EventType, tenantID string, recipients []string, payload map[string]string) {
}

// QueueNotifier 将事件投递到 asynq 通知队列
type QueueNotifier struct {
	queue *queue.NotificationQueue
}

func NewQueueNotifier(q *queue.NotificationQueue) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) Publish(ctx context.Context, eventType types.EventType, tenantID string, recipients []string, payload map[string]string) {
	if len(recipients) == 0 {
		return
	}
	err := n.queue.EnqueueNotification(ctx, &queue.NotificationTask{
		EventType:  eventType,
		TenantID:   tenantID,
		Recipients: recipients,
		Payload:    payload,
	})
	if err != nil {
		// 入队失败只记录，不影响主流程
		slog.Error("failed to enqueue notification",
			slog.String("event_type", string(eventType)),
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
	}
}
