package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/filedepot/filedepot/pkg/types"
)

func TestNotificationHandler(t *testing.T) {
	task := &NotificationTask{
		EventType:  types.EVENT_FILE_QUARANTINED,
		TenantID:   "tenant-1",
		Recipients: []string{"admin-1"},
		Payload:    map[string]string{"file_id": "f-1", "threat": "EICAR-Test"},
	}

	payload, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var delivered *NotificationTask
	handler := NewNotificationHandler(func(ctx context.Context, task *NotificationTask) error {
		delivered = task
		return nil
	})

	if err := handler(context.Background(), asynq.NewTask(TaskTypeNotification, payload)); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if delivered == nil || delivered.EventType != types.EVENT_FILE_QUARANTINED {
		t.Fatalf("unexpected delivery: %+v", delivered)
	}
	if delivered.Payload["threat"] != "EICAR-Test" {
		t.Fatalf("payload lost: %+v", delivered.Payload)
	}
}

func TestNotificationHandlerBadPayload(t *testing.T) {
	handler := NewNotificationHandler(func(ctx context.Context, task *NotificationTask) error {
		t.Fatal("sender should not be called for corrupt payload")
		return nil
	})

	// 损坏的载荷直接丢弃，不触发 asynq 重试
	if err := handler(context.Background(), asynq.NewTask(TaskTypeNotification, []byte("{not json"))); err != nil {
		t.Fatalf("corrupt payload should be dropped silently, got %v", err)
	}
}

func TestNotificationHandlerSendFailure(t *testing.T) {
	payload, _ := json.Marshal(&NotificationTask{EventType: types.EVENT_SECURITY_ALERT})

	wantErr := errors.New("smtp unreachable")
	handler := NewNotificationHandler(func(ctx context.Context, task *NotificationTask) error {
		return wantErr
	})

	if err := handler(context.Background(), asynq.NewTask(TaskTypeNotification, payload)); !errors.Is(err, wantErr) {
		t.Fatalf("send failure must surface for asynq retry, got %v", err)
	}
}
