package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/filedepot/filedepot/pkg/register"
	"github.com/filedepot/filedepot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ScanJobStore = NewScanJobStore(provider)
	})
}

type ScanJobStore struct {
	CommonFields
}

func NewScanJobStore(provider SqlProviderAchieve) *ScanJobStore {
	repo := &ScanJobStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_SCAN_JOB)
	repo.SetAllColumns("id", "file_id", "tenant_id", "status", "priority", "retry_count",
		"last_attempt_at", "next_retry_at", "error", "created_at", "updated_at")
	return repo
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// Enqueue 插入 pending 任务。同一文件的存活任务由部分唯一索引兜底，
// 命中唯一冲突时视为已存在，返回 created=false
func (s *ScanJobStore) Enqueue(ctx context.Context, job types.ScanJob) (bool, error) {
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().Unix()
	}
	if job.UpdatedAt == 0 {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = types.SCAN_JOB_STATUS_PENDING
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(job.ID, job.FileID, job.TenantID, job.Status, job.Priority, job.RetryCount,
			job.LastAttempt, job.NextRetryAt, job.Error, job.CreatedAt, job.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ScanJobStore) GetJob(ctx context.Context, id string) (*types.ScanJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ScanJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (s *ScanJobStore) GetLiveJobByFile(ctx context.Context, fileID string) (*types.ScanJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"file_id": fileID, "status": types.ScanJobLiveStatuses})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ScanJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// ClaimNext 原子认领一个可执行的 pending 任务并置为 scanning。
// 先选出候选，再用限定原状态的条件更新抢占，只有影响到行的那个 worker 拿到任务。
// 没有可认领任务时返回 nil
func (s *ScanJobStore) ClaimNext(ctx context.Context, now int64) (*types.ScanJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": types.SCAN_JOB_STATUS_PENDING}).
		Where(sq.LtOrEq{"next_retry_at": now}).
		OrderBy("priority DESC", "created_at ASC").
		Limit(5)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var candidates []*types.ScanJob
	if err = s.GetReplica(ctx).Select(&candidates, queryString, args...); err != nil {
		return nil, err
	}

	for _, job := range candidates {
		update := sq.Update(s.GetTable()).
			Set("status", types.SCAN_JOB_STATUS_SCANNING).
			Set("last_attempt_at", now).
			Set("updated_at", now).
			Where(sq.Eq{"id": job.ID, "status": types.SCAN_JOB_STATUS_PENDING})

		updateString, updateArgs, err := update.ToSql()
		if err != nil {
			return nil, ErrorSqlBuild(err)
		}

		res, err := s.GetMaster(ctx).Exec(updateString, updateArgs...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			job.Status = types.SCAN_JOB_STATUS_SCANNING
			job.LastAttempt = now
			job.UpdatedAt = now
			return job, nil
		}
	}
	return nil, nil
}

// Complete 任务进入终态 completed/skipped，仅在仍处于 scanning 时生效
func (s *ScanJobStore) Complete(ctx context.Context, id, status string) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.SCAN_JOB_STATUS_SCANNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	res, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Requeue 可重试失败：回到 pending 并带退避时间
func (s *ScanJobStore) Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.SCAN_JOB_STATUS_PENDING).
		Set("retry_count", retryCount).
		Set("next_retry_at", nextRetryAt).
		Set("error", errMsg).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.SCAN_JOB_STATUS_SCANNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// MarkFailed 重试耗尽，进入终态 failed
func (s *ScanJobStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.SCAN_JOB_STATUS_FAILED).
		Set("retry_count", retryCount).
		Set("error", errMsg).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.SCAN_JOB_STATUS_SCANNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// RequeueStale 将滞留在 scanning 超过租约窗口的任务重新置为 pending，
// 应对 worker 崩溃后任务永久占用的情况
func (s *ScanJobStore) RequeueStale(ctx context.Context, staleBefore int64) (int64, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.SCAN_JOB_STATUS_PENDING).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"status": types.SCAN_JOB_STATUS_SCANNING}).
		Where(sq.Lt{"last_attempt_at": staleBefore})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	res, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Replay 操作员手动重放终态 failed 的任务：清零重试计数回到 pending
func (s *ScanJobStore) Replay(ctx context.Context, id string) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.SCAN_JOB_STATUS_PENDING).
		Set("retry_count", 0).
		Set("next_retry_at", 0).
		Set("error", "").
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.SCAN_JOB_STATUS_FAILED})

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	res, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *ScanJobStore) ListJobs(ctx context.Context, tenantID, status string, page, pageSize uint64) ([]*types.ScanJob, error) {
	cond := sq.Eq{"tenant_id": tenantID}
	if status != "" {
		cond["status"] = status
	}
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(cond).OrderBy("created_at DESC")
	if page != types.NO_PAGINATION && pageSize != types.NO_PAGINATION {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.ScanJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ScanJobStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"status": status})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}
