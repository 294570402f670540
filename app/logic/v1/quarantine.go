package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
)

// QuarantineLogic 隔离区操作，全部限管理员
type QuarantineLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewQuarantineLogic(ctx context.Context, core *core.Core) *QuarantineLogic {
	return &QuarantineLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *QuarantineLogic) requireAdmin(trace string) error {
	if !l.core.Srv().RBAC().RoleAtLeast(l.GetUserInfo().GetRole(), types.RoleAdmin) {
		return errors.New(trace, i18n.ERROR_PERMISSION_DENIED, nil).Code(http.StatusForbidden)
	}
	return nil
}

func (l *QuarantineLogic) List(page, pageSize uint64) ([]*types.QuarantinedFile, error) {
	if err := l.requireAdmin("QuarantineLogic.List"); err != nil {
		return nil, err
	}

	list, err := l.core.Store().QuarantineStore().List(l.ctx, l.GetUserInfo().TenantID, page, pageSize)
	if err != nil {
		return nil, errors.New("QuarantineLogic.List.QuarantineStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// Release 管理员放行：内容从隔离前缀搬回原路径，
// 记录置为已释放，文件扫描结论改写为 clean（人工裁定优先于机器结论）
func (l *QuarantineLogic) Release(id string) error {
	if err := l.requireAdmin("QuarantineLogic.Release"); err != nil {
		return err
	}

	tenantID := l.GetUserInfo().TenantID
	record, err := l.core.Store().QuarantineStore().Get(l.ctx, tenantID, id)
	if err != nil {
		return errors.New("QuarantineLogic.Release.QuarantineStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if record == nil {
		return errors.New("QuarantineLogic.Release.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if record.IsTerminal() {
		return errors.New("QuarantineLogic.Release.Terminal", i18n.ERROR_QUARANTINE_TERMINAL, nil).Code(http.StatusConflict)
	}

	obj, err := l.core.Primary().GetObject(l.ctx, record.QuarantinePath)
	if err != nil {
		return errors.New("QuarantineLogic.Release.GetObject", i18n.ERROR_INTERNAL, err)
	}
	if err = l.core.Primary().PutObject(l.ctx, record.OriginalPath, obj.Content); err != nil {
		return errors.New("QuarantineLogic.Release.PutObject", i18n.ERROR_INTERNAL, err)
	}

	done, err := l.core.Store().QuarantineStore().MarkReleased(l.ctx, tenantID, id, l.GetUserInfo().User, time.Now().Unix())
	if err != nil {
		return errors.New("QuarantineLogic.Release.QuarantineStore.MarkReleased", i18n.ERROR_INTERNAL, err)
	}
	if !done {
		// 并发操作已先一步终结该记录，回收搬回的副本
		if derr := l.core.Primary().DeleteObject(l.ctx, record.OriginalPath); derr != nil {
			return errors.New("QuarantineLogic.Release.Rollback", i18n.ERROR_INTERNAL, derr)
		}
		return errors.New("QuarantineLogic.Release.Terminal", i18n.ERROR_QUARANTINE_TERMINAL, nil).Code(http.StatusConflict)
	}

	if err = l.core.Primary().DeleteObject(l.ctx, record.QuarantinePath); err != nil {
		return errors.New("QuarantineLogic.Release.DeleteObject", i18n.ERROR_INTERNAL, err)
	}

	if file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, record.OriginalFileID); err == nil && file != nil {
		if _, err = l.core.Store().FileStore().UpdateScanStatus(l.ctx, tenantID, file.ID, file.ScanStatus, types.FILE_SCAN_STATUS_CLEAN); err != nil {
			return errors.New("QuarantineLogic.Release.UpdateScanStatus", i18n.ERROR_INTERNAL, err)
		}
	}

	l.core.Srv().Notifier().Publish(l.ctx, types.EVENT_FILE_RELEASED, tenantID, []string{record.OwnerID}, map[string]string{
		"file_id":   record.OriginalFileID,
		"file_name": record.OriginalName,
	})
	return nil
}

// Purge 管理员清除：隔离副本物理删除，原始记录软删除。
// 这是隔离记录的另一个终态，之后不可再放行
func (l *QuarantineLogic) Purge(id string) error {
	if err := l.requireAdmin("QuarantineLogic.Purge"); err != nil {
		return err
	}

	tenantID := l.GetUserInfo().TenantID
	record, err := l.core.Store().QuarantineStore().Get(l.ctx, tenantID, id)
	if err != nil {
		return errors.New("QuarantineLogic.Purge.QuarantineStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if record == nil {
		return errors.New("QuarantineLogic.Purge.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if record.IsTerminal() {
		return errors.New("QuarantineLogic.Purge.Terminal", i18n.ERROR_QUARANTINE_TERMINAL, nil).Code(http.StatusConflict)
	}

	done, err := l.core.Store().QuarantineStore().MarkPurged(l.ctx, tenantID, id, l.GetUserInfo().User, time.Now().Unix())
	if err != nil {
		return errors.New("QuarantineLogic.Purge.QuarantineStore.MarkPurged", i18n.ERROR_INTERNAL, err)
	}
	if !done {
		return errors.New("QuarantineLogic.Purge.Terminal", i18n.ERROR_QUARANTINE_TERMINAL, nil).Code(http.StatusConflict)
	}

	if err = l.core.Primary().DeleteObject(l.ctx, record.QuarantinePath); err != nil {
		return errors.New("QuarantineLogic.Purge.DeleteObject", i18n.ERROR_INTERNAL, err)
	}

	if file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, record.OriginalFileID); err == nil && file != nil && !file.Deleted {
		if err = l.core.Store().FileStore().SoftDelete(l.ctx, tenantID, file.ID); err != nil {
			return errors.New("QuarantineLogic.Purge.SoftDelete", i18n.ERROR_INTERNAL, err)
		}
	}

	l.core.Srv().Notifier().Publish(l.ctx, types.EVENT_FILE_PURGED, tenantID, []string{record.OwnerID}, map[string]string{
		"file_id":   record.OriginalFileID,
		"file_name": record.OriginalName,
	})
	return nil
}

// OffenseCount 查询某用户的感染文件计数，没有记录时计数为 0
func (l *QuarantineLogic) OffenseCount(userID string) (*types.UserMalwareCount, error) {
	if err := l.requireAdmin("QuarantineLogic.OffenseCount"); err != nil {
		return nil, err
	}

	tenantID := l.GetUserInfo().TenantID
	record, err := l.core.Store().MalwareCountStore().Get(l.ctx, tenantID, userID)
	if err != nil {
		return nil, errors.New("QuarantineLogic.OffenseCount.MalwareCountStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if record == nil {
		record = &types.UserMalwareCount{UserID: userID, TenantID: tenantID}
	}
	return record, nil
}
