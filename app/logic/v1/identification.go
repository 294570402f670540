package v1

import (
	"context"
	"log/slog"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/app/core/srv"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/security"
)

type _userInfo struct {
	ctx  context.Context
	core *core.Core
	u    *security.TokenClaims
}

func (u *_userInfo) GetUserInfo() security.TokenClaims {
	return *u.u
}

func (u *_userInfo) Identification(roler srv.RoleObject, permission string) error {
	if err := u.core.Srv().RBAC().Check(u.GetUserInfo(), roler, permission); err != nil {
		return err
	}
	return nil
}

// 通过文件id懒加载该文件的归属用户
func (u *_userInfo) lazyRolerFromFileID(tenantID, id string) *srv.LazyRoler {
	return srv.NewRolerWithLazyload(func() (string, error) {
		file, err := u.core.Store().FileStore().GetFile(u.ctx, tenantID, id)
		if err != nil {
			slog.Error("Failed to get file owner", slog.String("file_id", id), slog.String("error", err.Error()))
			return "", errors.New("_userInfo.lazyRolerFromFileID", i18n.ERROR_INTERNAL, err)
		}
		if file == nil {
			return "", errors.New("_userInfo.lazyRolerFromFileID.NotFound", i18n.ERROR_NOT_FOUND, nil)
		}
		return file.OwnerID, nil
	})
}

func SetupUserInfo(ctx context.Context, core *core.Core) UserInfo {
	userInfo, ok := InjectTokenClaim(ctx)
	if !ok {
		slog.Error("Not found user in context", slog.String("component", "logic.v1.setupUserInfo"))
		userInfo = security.TokenClaims{}
	}
	return &_userInfo{
		ctx:  ctx,
		u:    &userInfo,
		core: core,
	}
}

type UserInfo interface {
	GetUserInfo() security.TokenClaims
	Identification(roler srv.RoleObject, permission string) error
	lazyRolerFromFileID(tenantID, id string) *srv.LazyRoler
}
