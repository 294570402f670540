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
		provider.stores.FileStore = NewFileStore(provider)
	})
}

type FileStore struct {
	CommonFields
}

func NewFileStore(provider SqlProviderAchieve) *FileStore {
	repo := &FileStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_FILE)
	repo.SetAllColumns("id", "tenant_id", "department_id", "name", "storage_path", "size", "content_hash",
		"version", "version_parent", "is_directory", "is_immutable", "visibility", "owner_id", "scan_status",
		"group_id", "lock_held_by", "lock_held_at", "lock_password_hash", "lock_min_role",
		"deleted", "deleted_at", "created_at", "updated_at")
	return repo
}

// Create 创建新的文件记录
func (s *FileStore) Create(ctx context.Context, data types.FileRecord) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.TenantID, data.DepartmentID, data.Name, data.StoragePath, data.Size, data.ContentHash,
			data.Version, data.VersionParent, data.IsDirectory, data.IsImmutable, data.Visibility, data.OwnerID, data.ScanStatus,
			data.GroupID, data.LockHeldBy, data.LockHeldAt, data.LockPasswordHash, data.LockMinRole,
			data.Deleted, data.DeletedAt, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// GetFile 根据ID获取文件记录，软删除的记录同样返回
func (s *FileStore) GetFile(ctx context.Context, tenantID, id string) (*types.FileRecord, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.FileRecord
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (s *FileStore) listConditions(opts types.ListFileOptions) sq.Eq {
	cond := sq.Eq{"tenant_id": opts.TenantID}
	if opts.DepartmentID != "" {
		cond["department_id"] = opts.DepartmentID
	}
	if opts.OwnerID != "" {
		cond["owner_id"] = opts.OwnerID
	}
	if opts.GroupID != "" {
		cond["group_id"] = opts.GroupID
	}
	if opts.ContentHash != "" {
		cond["content_hash"] = opts.ContentHash
	}
	if opts.ScanStatus != "" {
		cond["scan_status"] = opts.ScanStatus
	}
	if !opts.IncludeDeleted {
		cond["deleted"] = false
	}
	return cond
}

// ListFiles 按条件获取文件记录列表
func (s *FileStore) ListFiles(ctx context.Context, opts types.ListFileOptions, page, pageSize uint64) ([]*types.FileRecord, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(s.listConditions(opts)).
		OrderBy("created_at DESC")
	if page != types.NO_PAGINATION && pageSize != types.NO_PAGINATION {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.FileRecord
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *FileStore) Total(ctx context.Context, opts types.ListFileOptions) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(s.listConditions(opts))

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

// ListByContentHash 内容寻址索引：同租户同部门内按摘要查非删除、非目录记录
func (s *FileStore) ListByContentHash(ctx context.Context, tenantID, departmentID, hash string) ([]*types.FileRecord, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"tenant_id": tenantID, "department_id": departmentID, "content_hash": hash, "deleted": false, "is_directory": false})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.FileRecord
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// SoftDelete 打软删除标记，行保留
func (s *FileStore) SoftDelete(ctx context.Context, tenantID, id string) error {
	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("deleted", true).
		Set("deleted_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *FileStore) Rename(ctx context.Context, tenantID, id, name, storagePath string) error {
	query := sq.Update(s.GetTable()).
		Set("name", name).
		Set("storage_path", storagePath).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// UpdateScanStatus 带前置状态校验的扫描状态更新，防止并发丢失更新
func (s *FileStore) UpdateScanStatus(ctx context.Context, tenantID, id, fromStatus, toStatus string) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("scan_status", toStatus).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id, "scan_status": fromStatus})

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

func (s *FileStore) SetVisibility(ctx context.Context, tenantID, id, visibility string) error {
	query := sq.Update(s.GetTable()).
		Set("visibility", visibility).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// AcquireLock 条件更新，返回是否抢到。并发抢锁依赖这条语句只影响
// lock_held_by 为空的行；持锁人本人重复加锁视为刷新锁参数
func (s *FileStore) AcquireLock(ctx context.Context, tenantID, id string, lock types.LockState) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("lock_held_by", lock.HeldBy).
		Set("lock_held_at", lock.HeldAt).
		Set("lock_password_hash", lock.PasswordHash).
		Set("lock_min_role", lock.MinRole).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		Where(sq.Eq{"lock_held_by": []string{"", lock.HeldBy}})

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

func (s *FileStore) ReleaseLock(ctx context.Context, tenantID, id string) error {
	query := sq.Update(s.GetTable()).
		Set("lock_held_by", "").
		Set("lock_held_at", 0).
		Set("lock_password_hash", "").
		Set("lock_min_role", "").
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
