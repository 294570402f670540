package types

type ReplicationJob struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	StoragePath string `json:"storage_path" db:"storage_path"`
	Operation   string `json:"operation" db:"operation"` // upload | delete
	Status      string `json:"status" db:"status"`
	RetryCount  int    `json:"retry_count" db:"retry_count"`
	MaxRetries  int    `json:"max_retries" db:"max_retries"`
	NextRetryAt int64  `json:"next_retry_at" db:"next_retry_at"`
	Error       string `json:"error" db:"error"`
	Size        int64  `json:"size" db:"size"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	StartedAt   int64  `json:"started_at" db:"started_at"`
	CompletedAt int64  `json:"completed_at" db:"completed_at"`
}

const (
	REPLICATION_OP_UPLOAD = "upload"
	REPLICATION_OP_DELETE = "delete"
)

const (
	REPLICATION_JOB_STATUS_PENDING    = "pending"
	REPLICATION_JOB_STATUS_PROCESSING = "processing"
	REPLICATION_JOB_STATUS_COMPLETED  = "completed"
	REPLICATION_JOB_STATUS_FAILED     = "failed"
)

// ReplicationJobLiveStatuses 同一 (storage_path, operation) 同时最多一个任务处于这些状态
var ReplicationJobLiveStatuses = []string{REPLICATION_JOB_STATUS_PENDING, REPLICATION_JOB_STATUS_PROCESSING}

const (
	REPLICATION_MODE_OFF    = "off"
	REPLICATION_MODE_BACKUP = "backup" // 仅同步上传
	REPLICATION_MODE_MIRROR = "mirror" // 同步上传与删除
)
