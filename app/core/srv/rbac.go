package srv

import (
	"net/http"

	"github.com/mikespook/gorbac/v2"

	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
)

const (
	// 定义权限ID
	PermissionChief = "chief"
	PermissionAdmin = "admin"
	PermissionEdit  = "edit"
	PermissionView  = "view"
)

func SetupRBACSrv() *RBACSrv {
	rbac := gorbac.New()

	// 创建权限
	pChief := gorbac.NewStdPermission(PermissionChief)
	pAdmin := gorbac.NewStdPermission(PermissionAdmin)
	pEdit := gorbac.NewStdPermission(PermissionEdit)
	pView := gorbac.NewStdPermission(PermissionView)

	roleChief := gorbac.NewStdRole(types.RoleChief)
	roleChief.Assign(pChief)

	roleAdmin := gorbac.NewStdRole(types.RoleAdmin)
	roleAdmin.Assign(pAdmin)

	roleEditor := gorbac.NewStdRole(types.RoleEditor)
	roleEditor.Assign(pEdit)

	roleViewer := gorbac.NewStdRole(types.RoleViewer)
	roleViewer.Assign(pView)

	rbac.Add(roleChief)
	rbac.Add(roleAdmin)
	rbac.Add(roleEditor)
	rbac.Add(roleViewer)

	// 设置角色继承关系
	rbac.SetParent(types.RoleEditor, types.RoleViewer) // 编辑者继承只读用户的权限
	rbac.SetParent(types.RoleAdmin, types.RoleEditor)  // 管理者继承编辑者的权限
	rbac.SetParent(types.RoleChief, types.RoleAdmin)

	return &RBACSrv{
		rbac: rbac,
	}
}

type RBACSrv struct {
	rbac *gorbac.RBAC
}

// CheckPermission 检查角色是否有某权限
func (a *RBACSrv) CheckPermission(roleID, permissionID string) bool {
	return a.rbac.IsGranted(roleID, gorbac.NewStdPermission(permissionID), nil)
}

// RoleAtLeast 判断角色是否不低于 minRole，锁的 min_role 校验用
func (a *RBACSrv) RoleAtLeast(roleID, minRole string) bool {
	if roleID == minRole {
		return true
	}
	// 角色继承自 minRole 即视为不低于
	switch minRole {
	case types.RoleViewer:
		return a.CheckPermission(roleID, PermissionView)
	case types.RoleEditor:
		return a.CheckPermission(roleID, PermissionEdit)
	case types.RoleAdmin:
		return a.CheckPermission(roleID, PermissionAdmin)
	case types.RoleChief:
		return a.CheckPermission(roleID, PermissionChief)
	default:
		return false
	}
}

type RoleObject interface {
	GetUser() (string, error)
}

type RoleUser interface {
	GetRole() string
	GetUser() string
}

// Check 管理侧用户只检测权限，普通用户额外检测资源归属
func (a *RBACSrv) Check(user RoleUser, obj RoleObject, permissionID string) *errors.CustomizedError {
	if !a.CheckPermission(user.GetRole(), permissionID) {
		resourceUser, err := obj.GetUser()
		if err != nil {
			return errors.Trace("RBACSrv.Check", err)
		}
		if user.GetUser() != resourceUser {
			return errors.New("RBACSrv.Check.ClientUser", i18n.ERROR_PERMISSION_DENIED, nil).Code(http.StatusForbidden)
		}
	}
	return nil
}

type LazyRoler struct {
	f      func() (string, error)
	userID string
}

func (s *LazyRoler) GetUser() (string, error) {
	if s.userID == "" {
		var err error
		if s.userID, err = s.f(); err != nil {
			return "", err
		}
	}
	return s.userID, nil
}

func NewRolerWithLazyload(f func() (string, error)) *LazyRoler {
	return &LazyRoler{
		f: f,
	}
}
