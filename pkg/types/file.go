package types

type FileRecord struct {
	ID            string `json:"id" db:"id"`                         // 文件记录的唯一标识
	TenantID      string `json:"tenant_id" db:"tenant_id"`           // 租户id，所有核心数据按租户隔离
	DepartmentID  string `json:"department_id" db:"department_id"`   // 部门id，可为空
	Name          string `json:"name" db:"name"`                     // 文件名
	StoragePath   string `json:"storage_path" db:"storage_path"`     // 主存储中的对象路径
	Size          int64  `json:"size" db:"size"`                     // 文件大小，单位为字节
	ContentHash   string `json:"content_hash" db:"content_hash"`     // 文件内容摘要，仅用于重复提示
	Version       int    `json:"version" db:"version"`               // 版本号，根版本为1
	VersionParent string `json:"version_parent" db:"version_parent"` // 父版本id，根版本为空
	IsDirectory   bool   `json:"is_directory" db:"is_directory"`
	IsImmutable   bool   `json:"is_immutable" db:"is_immutable"` // 租户不可变策略下，非根版本不允许原地覆盖
	Visibility    string `json:"visibility" db:"visibility"`     // department | private
	OwnerID       string `json:"owner_id" db:"owner_id"`         // 上传者
	ScanStatus    string `json:"scan_status" db:"scan_status"`
	GroupID       string `json:"group_id" db:"group_id"` // 所属文件组，可为空

	// 锁是记录的一等子结构，而不是散落在别处的标记
	LockHeldBy       string `json:"lock_held_by" db:"lock_held_by"`
	LockHeldAt       int64  `json:"lock_held_at" db:"lock_held_at"`
	LockPasswordHash string `json:"-" db:"lock_password_hash"`
	LockMinRole      string `json:"lock_min_role" db:"lock_min_role"`

	Deleted   bool  `json:"deleted" db:"deleted"` // 软删除标记，记录永不物理删除
	DeletedAt int64 `json:"deleted_at" db:"deleted_at"`
	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// IsLocked 判断记录当前是否被锁定
func (f *FileRecord) IsLocked() bool {
	return f.LockHeldBy != ""
}

func (f *FileRecord) LockState() LockState {
	return LockState{
		HeldBy:       f.LockHeldBy,
		HeldAt:       f.LockHeldAt,
		PasswordHash: f.LockPasswordHash,
		MinRole:      f.LockMinRole,
	}
}

const (
	FILE_SCAN_STATUS_PENDING  = "pending"
	FILE_SCAN_STATUS_CLEAN    = "clean"
	FILE_SCAN_STATUS_INFECTED = "infected"
	FILE_SCAN_STATUS_SKIPPED  = "skipped"
	FILE_SCAN_STATUS_ERROR    = "error"
)

const (
	FILE_VISIBILITY_DEPARTMENT = "department"
	FILE_VISIBILITY_PRIVATE    = "private"
)

// FileGroup 文件组，与文件共享同一套锁能力
type FileGroup struct {
	ID           string `json:"id" db:"id"`
	TenantID     string `json:"tenant_id" db:"tenant_id"`
	DepartmentID string `json:"department_id" db:"department_id"`
	Name         string `json:"name" db:"name"`
	OwnerID      string `json:"owner_id" db:"owner_id"`

	LockHeldBy       string `json:"lock_held_by" db:"lock_held_by"`
	LockHeldAt       int64  `json:"lock_held_at" db:"lock_held_at"`
	LockPasswordHash string `json:"-" db:"lock_password_hash"`
	LockMinRole      string `json:"lock_min_role" db:"lock_min_role"`

	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

func (g *FileGroup) IsLocked() bool {
	return g.LockHeldBy != ""
}

func (g *FileGroup) LockState() LockState {
	return LockState{
		HeldBy:       g.LockHeldBy,
		HeldAt:       g.LockHeldAt,
		PasswordHash: g.LockPasswordHash,
		MinRole:      g.LockMinRole,
	}
}

// LockState 锁的统一视图，供 files 和 file groups 共用
type LockState struct {
	HeldBy       string
	HeldAt       int64
	PasswordHash string
	MinRole      string
}

// ListFileOptions 文件列表筛选条件
type ListFileOptions struct {
	TenantID       string
	DepartmentID   string
	OwnerID        string
	GroupID        string
	ContentHash    string
	ScanStatus     string
	IncludeDeleted bool
}
