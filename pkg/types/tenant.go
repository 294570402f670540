package types

type Tenant struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	CreatedAt int64  `json:"created_at" db:"created_at"`

	// 策略字段随租户行持久化
	ScanEnabled          bool   `json:"scan_enabled" db:"scan_enabled"`
	ActionOnDetect       string `json:"action_on_detect" db:"action_on_detect"` // quarantine | delete | flag
	NotifyAdmin          bool   `json:"notify_admin" db:"notify_admin"`
	NotifyUploader       bool   `json:"notify_uploader" db:"notify_uploader"`
	AutoSuspendUploader  bool   `json:"auto_suspend_uploader" db:"auto_suspend_uploader"`
	SuspendThreshold     int    `json:"suspend_threshold" db:"suspend_threshold"`
	MaxScanSize          int64  `json:"max_scan_size" db:"max_scan_size"`
	MaxScanRetries       int    `json:"max_scan_retries" db:"max_scan_retries"`
	ScanExemptExtensions string `json:"scan_exempt_extensions" db:"scan_exempt_extensions"` // 逗号分隔，这些类型不参与扫描
	BlockedExtensions    string `json:"blocked_extensions" db:"blocked_extensions"`         // 逗号分隔
	MaxFileSize          int64  `json:"max_file_size" db:"max_file_size"`
	ImmutableVersions    bool   `json:"immutable_versions" db:"immutable_versions"`
	ReplicationMode      string `json:"replication_mode" db:"replication_mode"` // off | backup | mirror
	MaxReplicationRetry  int    `json:"max_replication_retry" db:"max_replication_retry"`
}

// TenantPolicy 策略快照。任务执行时传入快照，而不是读取全局状态
type TenantPolicy struct {
	TenantID             string
	ScanEnabled          bool
	ActionOnDetect       string
	NotifyAdmin          bool
	NotifyUploader       bool
	AutoSuspendUploader  bool
	SuspendThreshold     int
	MaxScanSize          int64
	MaxScanRetries       int
	ScanExemptExtensions []string
	BlockedExtensions    []string
	MaxFileSize          int64
	ImmutableVersions    bool
	ReplicationMode      string
	MaxReplicationRetry  int
}

const (
	DEFAULT_MAX_SCAN_RETRIES      = 3
	DEFAULT_MAX_REPLICATION_RETRY = 5
	DEFAULT_SUSPEND_THRESHOLD     = 3
)
