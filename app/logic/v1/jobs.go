package v1

import (
	"context"
	"net/http"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
)

// JobLogic 扫描与复制队列的运维侧入口
type JobLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewJobLogic(ctx context.Context, core *core.Core) *JobLogic {
	return &JobLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *JobLogic) requireAdmin(trace string) error {
	if !l.core.Srv().RBAC().RoleAtLeast(l.GetUserInfo().GetRole(), types.RoleAdmin) {
		return errors.New(trace, i18n.ERROR_PERMISSION_DENIED, nil).Code(http.StatusForbidden)
	}
	return nil
}

func (l *JobLogic) ListScanJobs(status string, page, pageSize uint64) ([]*types.ScanJob, error) {
	if err := l.requireAdmin("JobLogic.ListScanJobs"); err != nil {
		return nil, err
	}

	list, err := l.core.Store().ScanJobStore().ListJobs(l.ctx, l.GetUserInfo().TenantID, status, page, pageSize)
	if err != nil {
		return nil, errors.New("JobLogic.ListScanJobs.ScanJobStore.ListJobs", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// ReplayScanJob 人工重放终态 failed 的扫描任务。
// 任务回到 pending 且重试计数清零，退避从头开始
func (l *JobLogic) ReplayScanJob(id string) error {
	if err := l.requireAdmin("JobLogic.ReplayScanJob"); err != nil {
		return err
	}

	job, err := l.core.Store().ScanJobStore().GetJob(l.ctx, id)
	if err != nil {
		return errors.New("JobLogic.ReplayScanJob.ScanJobStore.GetJob", i18n.ERROR_INTERNAL, err)
	}
	if job == nil || job.TenantID != l.GetUserInfo().TenantID {
		return errors.New("JobLogic.ReplayScanJob.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	// 同一文件已有存活任务时不允许重放，避免撞唯一索引
	live, err := l.core.Store().ScanJobStore().GetLiveJobByFile(l.ctx, job.FileID)
	if err != nil {
		return errors.New("JobLogic.ReplayScanJob.ScanJobStore.GetLiveJobByFile", i18n.ERROR_INTERNAL, err)
	}
	if live != nil {
		return errors.New("JobLogic.ReplayScanJob.Live", i18n.ERROR_DUPLICATE_LIVE_JOB, nil).Code(http.StatusConflict)
	}

	done, err := l.core.Store().ScanJobStore().Replay(l.ctx, id)
	if err != nil {
		return errors.New("JobLogic.ReplayScanJob.ScanJobStore.Replay", i18n.ERROR_INTERNAL, err)
	}
	if !done {
		return errors.New("JobLogic.ReplayScanJob.NotReplayable", i18n.ERROR_JOB_NOT_REPLAYABLE, nil).Code(http.StatusBadRequest)
	}
	return nil
}

func (l *JobLogic) ListReplicationJobs(status string, page, pageSize uint64) ([]*types.ReplicationJob, error) {
	if err := l.requireAdmin("JobLogic.ListReplicationJobs"); err != nil {
		return nil, err
	}

	list, err := l.core.Store().ReplicationJobStore().ListJobs(l.ctx, l.GetUserInfo().TenantID, status, page, pageSize)
	if err != nil {
		return nil, errors.New("JobLogic.ListReplicationJobs.ReplicationJobStore.ListJobs", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *JobLogic) ReplayReplicationJob(id string) error {
	if err := l.requireAdmin("JobLogic.ReplayReplicationJob"); err != nil {
		return err
	}

	job, err := l.core.Store().ReplicationJobStore().GetJob(l.ctx, id)
	if err != nil {
		return errors.New("JobLogic.ReplayReplicationJob.ReplicationJobStore.GetJob", i18n.ERROR_INTERNAL, err)
	}
	if job == nil || job.TenantID != l.GetUserInfo().TenantID {
		return errors.New("JobLogic.ReplayReplicationJob.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	live, err := l.core.Store().ReplicationJobStore().GetLiveJob(l.ctx, job.StoragePath, job.Operation)
	if err != nil {
		return errors.New("JobLogic.ReplayReplicationJob.ReplicationJobStore.GetLiveJob", i18n.ERROR_INTERNAL, err)
	}
	if live != nil {
		return errors.New("JobLogic.ReplayReplicationJob.Live", i18n.ERROR_DUPLICATE_LIVE_JOB, nil).Code(http.StatusConflict)
	}

	done, err := l.core.Store().ReplicationJobStore().Replay(l.ctx, id)
	if err != nil {
		return errors.New("JobLogic.ReplayReplicationJob.ReplicationJobStore.Replay", i18n.ERROR_INTERNAL, err)
	}
	if !done {
		return errors.New("JobLogic.ReplayReplicationJob.NotReplayable", i18n.ERROR_JOB_NOT_REPLAYABLE, nil).Code(http.StatusBadRequest)
	}
	return nil
}

// QueueStats 两个队列按状态的积压计数
type QueueStats struct {
	ScanPending        int64 `json:"scan_pending"`
	ScanScanning       int64 `json:"scan_scanning"`
	ScanFailed         int64 `json:"scan_failed"`
	ReplicationPending int64 `json:"replication_pending"`
	ReplicationActive  int64 `json:"replication_active"`
	ReplicationFailed  int64 `json:"replication_failed"`
}

func (l *JobLogic) Stats() (*QueueStats, error) {
	if err := l.requireAdmin("JobLogic.Stats"); err != nil {
		return nil, err
	}

	var (
		stats QueueStats
		err   error
	)
	scanJobs := l.core.Store().ScanJobStore()
	if stats.ScanPending, err = scanJobs.CountByStatus(l.ctx, types.SCAN_JOB_STATUS_PENDING); err != nil {
		return nil, errors.New("JobLogic.Stats.ScanPending", i18n.ERROR_INTERNAL, err)
	}
	if stats.ScanScanning, err = scanJobs.CountByStatus(l.ctx, types.SCAN_JOB_STATUS_SCANNING); err != nil {
		return nil, errors.New("JobLogic.Stats.ScanScanning", i18n.ERROR_INTERNAL, err)
	}
	if stats.ScanFailed, err = scanJobs.CountByStatus(l.ctx, types.SCAN_JOB_STATUS_FAILED); err != nil {
		return nil, errors.New("JobLogic.Stats.ScanFailed", i18n.ERROR_INTERNAL, err)
	}

	replJobs := l.core.Store().ReplicationJobStore()
	if stats.ReplicationPending, err = replJobs.CountByStatus(l.ctx, types.REPLICATION_JOB_STATUS_PENDING); err != nil {
		return nil, errors.New("JobLogic.Stats.ReplicationPending", i18n.ERROR_INTERNAL, err)
	}
	if stats.ReplicationActive, err = replJobs.CountByStatus(l.ctx, types.REPLICATION_JOB_STATUS_PROCESSING); err != nil {
		return nil, errors.New("JobLogic.Stats.ReplicationActive", i18n.ERROR_INTERNAL, err)
	}
	if stats.ReplicationFailed, err = replJobs.CountByStatus(l.ctx, types.REPLICATION_JOB_STATUS_FAILED); err != nil {
		return nil, errors.New("JobLogic.Stats.ReplicationFailed", i18n.ERROR_INTERNAL, err)
	}
	return &stats, nil
}
