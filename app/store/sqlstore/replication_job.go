package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/filedepot/filedepot/pkg/register"
	"github.com/filedepot/filedepot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ReplicationJobStore = NewReplicationJobStore(provider)
	})
}

type ReplicationJobStore struct {
	CommonFields
}

func NewReplicationJobStore(provider SqlProviderAchieve) *ReplicationJobStore {
	repo := &ReplicationJobStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_REPLICATION_JOB)
	repo.SetAllColumns("id", "tenant_id", "storage_path", "operation", "status", "retry_count",
		"max_retries", "next_retry_at", "error", "size", "created_at", "started_at", "completed_at")
	return repo
}

// Enqueue 幂等入队，存活任务按 (storage_path, operation) 由部分唯一索引去重，
// 命中唯一冲突时返回 created=false
func (s *ReplicationJobStore) Enqueue(ctx context.Context, job types.ReplicationJob) (bool, error) {
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().Unix()
	}
	if job.Status == "" {
		job.Status = types.REPLICATION_JOB_STATUS_PENDING
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = types.DEFAULT_MAX_REPLICATION_RETRY
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(job.ID, job.TenantID, job.StoragePath, job.Operation, job.Status, job.RetryCount,
			job.MaxRetries, job.NextRetryAt, job.Error, job.Size, job.CreatedAt, job.StartedAt, job.CompletedAt)

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

func (s *ReplicationJobStore) GetJob(ctx context.Context, id string) (*types.ReplicationJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ReplicationJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (s *ReplicationJobStore) GetLiveJob(ctx context.Context, storagePath, operation string) (*types.ReplicationJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"storage_path": storagePath, "operation": operation, "status": types.ReplicationJobLiveStatuses})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ReplicationJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// ClaimNext 原子认领一个可执行的 pending 任务并置为 processing。
// 与扫描队列一致：候选选取 + 限定原状态的条件更新
func (s *ReplicationJobStore) ClaimNext(ctx context.Context, now int64) (*types.ReplicationJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": types.REPLICATION_JOB_STATUS_PENDING}).
		Where(sq.LtOrEq{"next_retry_at": now}).
		OrderBy("created_at ASC").
		Limit(5)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var candidates []*types.ReplicationJob
	if err = s.GetReplica(ctx).Select(&candidates, queryString, args...); err != nil {
		return nil, err
	}

	for _, job := range candidates {
		update := sq.Update(s.GetTable()).
			Set("status", types.REPLICATION_JOB_STATUS_PROCESSING).
			Set("started_at", now).
			Where(sq.Eq{"id": job.ID, "status": types.REPLICATION_JOB_STATUS_PENDING})

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
			job.Status = types.REPLICATION_JOB_STATUS_PROCESSING
			job.StartedAt = now
			return job, nil
		}
	}
	return nil, nil
}

// Complete 任务进入终态 completed，仅在仍处于 processing 时生效
func (s *ReplicationJobStore) Complete(ctx context.Context, id string, at int64) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.REPLICATION_JOB_STATUS_COMPLETED).
		Set("completed_at", at).
		Where(sq.Eq{"id": id, "status": types.REPLICATION_JOB_STATUS_PROCESSING})

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

func (s *ReplicationJobStore) Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.REPLICATION_JOB_STATUS_PENDING).
		Set("retry_count", retryCount).
		Set("next_retry_at", nextRetryAt).
		Set("error", errMsg).
		Where(sq.Eq{"id": id, "status": types.REPLICATION_JOB_STATUS_PROCESSING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ReplicationJobStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.REPLICATION_JOB_STATUS_FAILED).
		Set("retry_count", retryCount).
		Set("error", errMsg).
		Set("completed_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.REPLICATION_JOB_STATUS_PROCESSING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// RequeueStale 将滞留在 processing 超过租约窗口的任务重新置为 pending
func (s *ReplicationJobStore) RequeueStale(ctx context.Context, staleBefore int64) (int64, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.REPLICATION_JOB_STATUS_PENDING).
		Where(sq.Eq{"status": types.REPLICATION_JOB_STATUS_PROCESSING}).
		Where(sq.Lt{"started_at": staleBefore})

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

// Replay 操作员手动重放终态 failed 的任务
func (s *ReplicationJobStore) Replay(ctx context.Context, id string) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.REPLICATION_JOB_STATUS_PENDING).
		Set("retry_count", 0).
		Set("next_retry_at", 0).
		Set("error", "").
		Set("completed_at", 0).
		Where(sq.Eq{"id": id, "status": types.REPLICATION_JOB_STATUS_FAILED})

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

func (s *ReplicationJobStore) ListJobs(ctx context.Context, tenantID, status string, page, pageSize uint64) ([]*types.ReplicationJob, error) {
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

	var res []*types.ReplicationJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ReplicationJobStore) CountByStatus(ctx context.Context, status string) (int64, error) {
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
