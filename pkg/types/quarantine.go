package types

// QuarantinedFile 隔离区记录。original_file_id 是软引用，原始记录之后可能不复存在
type QuarantinedFile struct {
	ID             string `json:"id" db:"id"`
	OriginalFileID string `json:"original_file_id" db:"original_file_id"`
	TenantID       string `json:"tenant_id" db:"tenant_id"`
	OriginalPath   string `json:"original_path" db:"original_path"`
	OriginalName   string `json:"original_name" db:"original_name"`
	QuarantinePath string `json:"quarantine_path" db:"quarantine_path"`
	ThreatName     string `json:"threat_name" db:"threat_name"`
	OwnerID        string `json:"owner_id" db:"owner_id"`
	QuarantinedAt  int64  `json:"quarantined_at" db:"quarantined_at"`
	QuarantinedBy  string `json:"quarantined_by" db:"quarantined_by"`
	ReleasedAt     int64  `json:"released_at" db:"released_at"`
	ReleasedBy     string `json:"released_by" db:"released_by"`
	PurgedAt       int64  `json:"purged_at" db:"purged_at"`
	PurgedBy       string `json:"purged_by" db:"purged_by"`
}

// IsTerminal 已释放或已清除的隔离记录不允许再次操作
func (q *QuarantinedFile) IsTerminal() bool {
	return q.ReleasedAt > 0 || q.PurgedAt > 0
}

// UserMalwareCount 每个 (user, tenant) 的感染文件计数，驱动自动封禁策略
type UserMalwareCount struct {
	UserID        string `json:"user_id" db:"user_id"`
	TenantID      string `json:"tenant_id" db:"tenant_id"`
	Count         int    `json:"count" db:"count"`
	LastOffenseAt int64  `json:"last_offense_at" db:"last_offense_at"`
}
