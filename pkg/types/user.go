package types

type User struct {
	ID        string `json:"id" db:"id"`
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Role      string `json:"role" db:"role"`
	Status    string `json:"status" db:"status"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

const (
	USER_STATUS_ACTIVE    = "active"
	USER_STATUS_SUSPENDED = "suspended"
)

const (
	RoleChief  = "role-chief"  // 超管
	RoleAdmin  = "role-admin"  // 管理员
	RoleEditor = "role-editor" // 普通编辑用户
	RoleViewer = "role-viewer" // 只读用户
)
