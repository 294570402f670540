package types

import "time"

type ScanJob struct {
	ID          string `json:"id" db:"id"`
	FileID      string `json:"file_id" db:"file_id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	Status      string `json:"status" db:"status"`
	Priority    int    `json:"priority" db:"priority"`
	RetryCount  int    `json:"retry_count" db:"retry_count"`
	LastAttempt int64  `json:"last_attempt_at" db:"last_attempt_at"`
	NextRetryAt int64  `json:"next_retry_at" db:"next_retry_at"`
	Error       string `json:"error" db:"error"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

const (
	SCAN_JOB_STATUS_PENDING   = "pending"
	SCAN_JOB_STATUS_SCANNING  = "scanning"
	SCAN_JOB_STATUS_COMPLETED = "completed"
	SCAN_JOB_STATUS_FAILED    = "failed"
	SCAN_JOB_STATUS_SKIPPED   = "skipped"
)

// ScanJobLiveStatuses 同一文件同时最多只能有一个处于这些状态的任务
var ScanJobLiveStatuses = []string{SCAN_JOB_STATUS_PENDING, SCAN_JOB_STATUS_SCANNING}

// ScanResult 扫描结果，只追加，每个完成的任务一条
type ScanResult struct {
	ID               string `json:"id" db:"id"`
	JobID            string `json:"job_id" db:"job_id"`
	FileID           string `json:"file_id" db:"file_id"`
	TenantID         string `json:"tenant_id" db:"tenant_id"`
	IsInfected       bool   `json:"is_infected" db:"is_infected"`
	ThreatName       string `json:"threat_name" db:"threat_name"`
	ScanDurationMs   int64  `json:"scan_duration_ms" db:"scan_duration_ms"`
	ScannerVersion   string `json:"scanner_version" db:"scanner_version"`
	SignatureVersion string `json:"signature_version" db:"signature_version"`
	ActionTaken      string `json:"action_taken" db:"action_taken"`
	CreatedAt        int64  `json:"created_at" db:"created_at"`
}

const (
	SCAN_ACTION_QUARANTINE = "quarantine"
	SCAN_ACTION_DELETE     = "delete"
	SCAN_ACTION_FLAG       = "flag"
	SCAN_ACTION_NONE       = "none"
)

// scanBackoffTiers 重试间隔，超出表长后取最后一档
var scanBackoffTiers = []time.Duration{30 * time.Second, 120 * time.Second, 600 * time.Second}

// ScanBackoff 返回第 retryCount 次重试前的等待时间
func ScanBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if retryCount > len(scanBackoffTiers) {
		retryCount = len(scanBackoffTiers)
	}
	return scanBackoffTiers[retryCount-1]
}
