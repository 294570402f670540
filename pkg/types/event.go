package types

import (
	"context"
	"time"
)

type EventType string

const (
	EVENT_FILE_INFECTED      EventType = "file.infected"
	EVENT_FILE_QUARANTINED   EventType = "file.quarantined"
	EVENT_FILE_RELEASED      EventType = "file.released"
	EVENT_FILE_PURGED        EventType = "file.purged"
	EVENT_USER_SUSPENDED     EventType = "user.suspended"
	EVENT_SCAN_JOB_FAILED    EventType = "scan.job.failed"
	EVENT_REPLICATION_FAILED EventType = "replication.job.failed"
	EVENT_SECURITY_ALERT     EventType = "security.alert"
)

type Cache interface {
	Expire(ctx context.Context, key string, expiration time.Duration) error
	SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}
