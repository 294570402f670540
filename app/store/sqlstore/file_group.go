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
		provider.stores.FileGroupStore = NewFileGroupStore(provider)
	})
}

// FileGroupStore 文件组与文件共用一套锁列，锁语义保持一致
type FileGroupStore struct {
	CommonFields
}

func NewFileGroupStore(provider SqlProviderAchieve) *FileGroupStore {
	repo := &FileGroupStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_FILE_GROUP)
	repo.SetAllColumns("id", "tenant_id", "department_id", "name", "owner_id",
		"lock_held_by", "lock_held_at", "lock_password_hash", "lock_min_role", "created_at", "updated_at")
	return repo
}

func (s *FileGroupStore) Create(ctx context.Context, data types.FileGroup) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.TenantID, data.DepartmentID, data.Name, data.OwnerID,
			data.LockHeldBy, data.LockHeldAt, data.LockPasswordHash, data.LockMinRole, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *FileGroupStore) GetGroup(ctx context.Context, tenantID, id string) (*types.FileGroup, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.FileGroup
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// AcquireLock 与 FileStore.AcquireLock 相同的条件更新语义
func (s *FileGroupStore) AcquireLock(ctx context.Context, tenantID, id string, lock types.LockState) (bool, error) {
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

func (s *FileGroupStore) ReleaseLock(ctx context.Context, tenantID, id string) error {
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
