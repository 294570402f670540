package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/security"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

type TenantLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewTenantLogic(ctx context.Context, core *core.Core) *TenantLogic {
	return &TenantLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *TenantLogic) requireChief(trace string) error {
	if !l.core.Srv().RBAC().RoleAtLeast(l.GetUserInfo().GetRole(), types.RoleChief) {
		return errors.New(trace, i18n.ERROR_PERMISSION_DENIED, nil).Code(http.StatusForbidden)
	}
	return nil
}

func (l *TenantLogic) requireAdmin(trace string) error {
	if !l.core.Srv().RBAC().RoleAtLeast(l.GetUserInfo().GetRole(), types.RoleAdmin) {
		return errors.New(trace, i18n.ERROR_PERMISSION_DENIED, nil).Code(http.StatusForbidden)
	}
	return nil
}

func (l *TenantLogic) CreateTenant(data types.Tenant) (*types.Tenant, error) {
	if err := l.requireChief("TenantLogic.CreateTenant"); err != nil {
		return nil, err
	}
	if data.Name == "" {
		return nil, errors.New("TenantLogic.CreateTenant.EmptyName", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	data.ID = utils.GenUniqIDStr()
	if err := l.core.Store().TenantStore().Create(l.ctx, data); err != nil {
		return nil, errors.New("TenantLogic.CreateTenant.TenantStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &data, nil
}

func (l *TenantLogic) GetPolicy() (*types.TenantPolicy, error) {
	if err := l.requireAdmin("TenantLogic.GetPolicy"); err != nil {
		return nil, err
	}

	policy, err := l.core.Store().TenantStore().GetPolicy(l.ctx, l.GetUserInfo().TenantID)
	if err != nil {
		return nil, errors.New("TenantLogic.GetPolicy.TenantStore.GetPolicy", i18n.ERROR_INTERNAL, err)
	}
	if policy == nil {
		return nil, errors.New("TenantLogic.GetPolicy.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return policy, nil
}

type CreateUserRequest struct {
	Name  string
	Email string
	Role  string
}

func (l *TenantLogic) CreateUser(req CreateUserRequest) (*types.User, error) {
	if err := l.requireAdmin("TenantLogic.CreateUser"); err != nil {
		return nil, err
	}
	switch req.Role {
	case types.RoleAdmin, types.RoleEditor, types.RoleViewer:
	default:
		return nil, errors.New("TenantLogic.CreateUser.Role", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	now := time.Now().Unix()
	user := types.User{
		ID:        utils.GenUniqIDStr(),
		TenantID:  l.GetUserInfo().TenantID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Status:    types.USER_STATUS_ACTIVE,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.core.Store().UserStore().Create(l.ctx, user); err != nil {
		return nil, errors.New("TenantLogic.CreateUser.UserStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &user, nil
}

// SetUserStatus 封禁或恢复用户。自动封禁走同一条状态通道
func (l *TenantLogic) SetUserStatus(userID, status string) error {
	if err := l.requireAdmin("TenantLogic.SetUserStatus"); err != nil {
		return err
	}
	if status != types.USER_STATUS_ACTIVE && status != types.USER_STATUS_SUSPENDED {
		return errors.New("TenantLogic.SetUserStatus.Status", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	tenantID := l.GetUserInfo().TenantID
	user, err := l.core.Store().UserStore().GetUser(l.ctx, tenantID, userID)
	if err != nil {
		return errors.New("TenantLogic.SetUserStatus.UserStore.GetUser", i18n.ERROR_INTERNAL, err)
	}
	if user == nil {
		return errors.New("TenantLogic.SetUserStatus.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	if err = l.core.Store().UserStore().UpdateStatus(l.ctx, tenantID, userID, status); err != nil {
		return errors.New("TenantLogic.SetUserStatus.UserStore.UpdateStatus", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

func (l *TenantLogic) CreateGroup(name, departmentID string) (*types.FileGroup, error) {
	if name == "" {
		return nil, errors.New("TenantLogic.CreateGroup.EmptyName", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	now := time.Now().Unix()
	group := types.FileGroup{
		ID:           utils.GenUniqIDStr(),
		TenantID:     l.GetUserInfo().TenantID,
		DepartmentID: departmentID,
		Name:         name,
		OwnerID:      l.GetUserInfo().User,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.core.Store().FileGroupStore().Create(l.ctx, group); err != nil {
		return nil, errors.New("TenantLogic.CreateGroup.FileGroupStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &group, nil
}

// IssueToken 为指定用户签发访问 token，调用方需要管理员权限
func (l *TenantLogic) IssueToken(userID, departmentID string, ttl time.Duration) (string, error) {
	if err := l.requireAdmin("TenantLogic.IssueToken"); err != nil {
		return "", err
	}

	tenantID := l.GetUserInfo().TenantID
	user, err := l.core.Store().UserStore().GetUser(l.ctx, tenantID, userID)
	if err != nil {
		return "", errors.New("TenantLogic.IssueToken.UserStore.GetUser", i18n.ERROR_INTERNAL, err)
	}
	if user == nil {
		return "", errors.New("TenantLogic.IssueToken.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if user.Status == types.USER_STATUS_SUSPENDED {
		return "", errors.New("TenantLogic.IssueToken.Suspended", i18n.ERROR_ACCOUNT_SUSPENDED, nil).Code(http.StatusForbidden)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := security.NewTokenClaims(tenantID, user.ID, user.Role, departmentID, time.Now().Add(ttl).Unix())
	token, err := security.GenerateJWT(claims, []byte(l.core.Cfg().Security.JWTSecret))
	if err != nil {
		return "", errors.New("TenantLogic.IssueToken.GenerateJWT", i18n.ERROR_INTERNAL, err)
	}
	return token, nil
}
