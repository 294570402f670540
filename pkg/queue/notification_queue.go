package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/filedepot/filedepot/pkg/types"
)

const (
	// 任务类型
	TaskTypeNotification = "notify:event"

	// 通知队列名称
	NotificationQueueName = "notification"

	// 重试和超时配置
	MaxRetries  = 3
	TaskTimeout = time.Minute
)

// NotificationTask 通知任务载荷
type NotificationTask struct {
	EventType  types.EventType   `json:"event_type"`
	TenantID   string            `json:"tenant_id"`
	Recipients []string          `json:"recipients"`
	Payload    map[string]string `json:"payload"`
}

// NotificationQueue 基于 Asynq 的通知队列。
// 入队是 fire-and-forget 的，核心状态流转不等待通知结果
type NotificationQueue struct {
	client    *asynq.Client
	keyPrefix string
}

// NewNotificationQueueWithClient 使用已存在的 Client 创建队列，
// 适用于多个队列共享同一个 asynq 连接的场景
func NewNotificationQueueWithClient(keyPrefix string, client *asynq.Client) *NotificationQueue {
	if keyPrefix == "" {
		keyPrefix = "depot"
	}

	return &NotificationQueue{
		keyPrefix: keyPrefix,
		client:    client,
	}
}

// EnqueueNotification 将通知加入队列
func (q *NotificationQueue) EnqueueNotification(ctx context.Context, task *NotificationTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeNotification, payload,
		asynq.MaxRetry(MaxRetries),
		asynq.Timeout(TaskTimeout),
		asynq.Queue(NotificationQueueName),
	))

	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	slog.Info("notification task enqueued",
		slog.String("event_type", string(task.EventType)),
		slog.String("tenant_id", task.TenantID))

	return nil
}

// Sender 实际投递通知的回调
type Sender func(ctx context.Context, task *NotificationTask) error

// NewNotificationHandler 返回 asynq 处理函数。投递失败只记录日志，
// 由 asynq 按自身策略重试，永远不会反向阻塞核心流程
func NewNotificationHandler(send Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var task NotificationTask
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			slog.Error("failed to unmarshal notification task", slog.String("error", err.Error()))
			// 载荷损坏没有重试价值
			return nil
		}

		if err := send(ctx, &task); err != nil {
			slog.Error("failed to deliver notification",
				slog.String("event_type", string(task.EventType)),
				slog.String("tenant_id", task.TenantID),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	}
}
