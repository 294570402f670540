package store

import (
	"context"

	"github.com/filedepot/filedepot/pkg/sqlstore"
	"github.com/filedepot/filedepot/pkg/types"
)

// FileStore 文件记录的存储接口
type FileStore interface {
	sqlstore.SqlCommons
	// Create 创建新的文件记录
	Create(ctx context.Context, data types.FileRecord) error
	GetFile(ctx context.Context, tenantID, id string) (*types.FileRecord, error)
	// ListFiles 按条件获取文件记录列表
	ListFiles(ctx context.Context, opts types.ListFileOptions, page, pageSize uint64) ([]*types.FileRecord, error)
	Total(ctx context.Context, opts types.ListFileOptions) (int64, error)
	// ListByContentHash 内容寻址索引：同租户同部门内按摘要查非删除、非目录记录
	ListByContentHash(ctx context.Context, tenantID, departmentID, hash string) ([]*types.FileRecord, error)
	// SoftDelete 打软删除标记，行保留
	SoftDelete(ctx context.Context, tenantID, id string) error
	Rename(ctx context.Context, tenantID, id, name, storagePath string) error
	// UpdateScanStatus 带前置状态校验的扫描状态更新，防止并发丢失更新
	UpdateScanStatus(ctx context.Context, tenantID, id, fromStatus, toStatus string) (bool, error)
	SetVisibility(ctx context.Context, tenantID, id, visibility string) error
	// AcquireLock 条件更新，仅在未锁定时成功，返回是否抢到
	AcquireLock(ctx context.Context, tenantID, id string, lock types.LockState) (bool, error)
	ReleaseLock(ctx context.Context, tenantID, id string) error
}

// FileGroupStore 文件组存储，与 FileStore 共享锁语义
type FileGroupStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.FileGroup) error
	GetGroup(ctx context.Context, tenantID, id string) (*types.FileGroup, error)
	AcquireLock(ctx context.Context, tenantID, id string, lock types.LockState) (bool, error)
	ReleaseLock(ctx context.Context, tenantID, id string) error
}

// ScanJobStore 扫描任务队列存储
type ScanJobStore interface {
	sqlstore.SqlCommons
	// Enqueue 插入 pending 任务；若该文件已有存活任务则返回已存在
	Enqueue(ctx context.Context, job types.ScanJob) (created bool, err error)
	GetJob(ctx context.Context, id string) (*types.ScanJob, error)
	GetLiveJobByFile(ctx context.Context, fileID string) (*types.ScanJob, error)
	// ClaimNext 原子认领一个可执行的 pending 任务并置为 scanning。
	// 没有可认领任务时返回 nil
	ClaimNext(ctx context.Context, now int64) (*types.ScanJob, error)
	// Complete 任务进入终态 completed/skipped
	Complete(ctx context.Context, id, status string) (bool, error)
	// Requeue 可重试失败：回到 pending 并带退避时间
	Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error
	// MarkFailed 重试耗尽，进入终态 failed
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
	// RequeueStale 将滞留在 scanning 超过租约窗口的任务重新置为 pending
	RequeueStale(ctx context.Context, staleBefore int64) (int64, error)
	// Replay 操作员手动重放终态 failed 的任务
	Replay(ctx context.Context, id string) (bool, error)
	ListJobs(ctx context.Context, tenantID, status string, page, pageSize uint64) ([]*types.ScanJob, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// ScanResultStore 扫描结果，只追加
type ScanResultStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.ScanResult) error
	GetByJobID(ctx context.Context, jobID string) (*types.ScanResult, error)
	ListByFile(ctx context.Context, tenantID, fileID string) ([]*types.ScanResult, error)
}

// QuarantineStore 隔离区存储
type QuarantineStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.QuarantinedFile) error
	Get(ctx context.Context, tenantID, id string) (*types.QuarantinedFile, error)
	GetByOriginalFile(ctx context.Context, tenantID, fileID string) (*types.QuarantinedFile, error)
	// MarkReleased / MarkPurged 只在记录尚未终态时成功
	MarkReleased(ctx context.Context, tenantID, id, actor string, at int64) (bool, error)
	MarkPurged(ctx context.Context, tenantID, id, actor string, at int64) (bool, error)
	List(ctx context.Context, tenantID string, page, pageSize uint64) ([]*types.QuarantinedFile, error)
}

// MalwareCountStore 每用户感染计数
type MalwareCountStore interface {
	sqlstore.SqlCommons
	// Increment upsert 自增并返回新的计数
	Increment(ctx context.Context, tenantID, userID string, at int64) (int, error)
	Get(ctx context.Context, tenantID, userID string) (*types.UserMalwareCount, error)
}

// ReplicationJobStore 复制任务队列存储
type ReplicationJobStore interface {
	sqlstore.SqlCommons
	// Enqueue 幂等入队，存活任务按 (storage_path, operation) 去重
	Enqueue(ctx context.Context, job types.ReplicationJob) (created bool, err error)
	GetJob(ctx context.Context, id string) (*types.ReplicationJob, error)
	GetLiveJob(ctx context.Context, storagePath, operation string) (*types.ReplicationJob, error)
	ClaimNext(ctx context.Context, now int64) (*types.ReplicationJob, error)
	Complete(ctx context.Context, id string, at int64) (bool, error)
	Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
	RequeueStale(ctx context.Context, staleBefore int64) (int64, error)
	Replay(ctx context.Context, id string) (bool, error)
	ListJobs(ctx context.Context, tenantID, status string, page, pageSize uint64) ([]*types.ReplicationJob, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// TenantStore 租户与策略
type TenantStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Tenant) error
	GetTenant(ctx context.Context, id string) (*types.Tenant, error)
	// GetPolicy 返回策略快照，任务执行期间不再读取租户行
	GetPolicy(ctx context.Context, id string) (*types.TenantPolicy, error)
}

// UserStore 用户账号，Account 协作方
type UserStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.User) error
	GetUser(ctx context.Context, tenantID, id string) (*types.User, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string) error
	ListAdmins(ctx context.Context, tenantID string) ([]*types.User, error)
}
