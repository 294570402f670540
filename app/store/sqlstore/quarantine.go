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
		provider.stores.QuarantineStore = NewQuarantineStore(provider)
	})
}

type QuarantineStore struct {
	CommonFields
}

func NewQuarantineStore(provider SqlProviderAchieve) *QuarantineStore {
	repo := &QuarantineStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_QUARANTINE_FILE)
	repo.SetAllColumns("id", "original_file_id", "tenant_id", "original_path", "original_name",
		"quarantine_path", "threat_name", "owner_id", "quarantined_at", "quarantined_by",
		"released_at", "released_by", "purged_at", "purged_by")
	return repo
}

func (s *QuarantineStore) Create(ctx context.Context, data types.QuarantinedFile) error {
	if data.QuarantinedAt == 0 {
		data.QuarantinedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.OriginalFileID, data.TenantID, data.OriginalPath, data.OriginalName,
			data.QuarantinePath, data.ThreatName, data.OwnerID, data.QuarantinedAt, data.QuarantinedBy,
			data.ReleasedAt, data.ReleasedBy, data.PurgedAt, data.PurgedBy)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *QuarantineStore) Get(ctx context.Context, tenantID, id string) (*types.QuarantinedFile, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"tenant_id": tenantID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.QuarantinedFile
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// GetByOriginalFile 查某个原始文件最近一次仍未终态的隔离记录
func (s *QuarantineStore) GetByOriginalFile(ctx context.Context, tenantID, fileID string) (*types.QuarantinedFile, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"tenant_id": tenantID, "original_file_id": fileID, "released_at": 0, "purged_at": 0}).
		OrderBy("quarantined_at DESC").Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.QuarantinedFile
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// MarkReleased 只在记录尚未终态时生效，重复操作返回 false
func (s *QuarantineStore) MarkReleased(ctx context.Context, tenantID, id, actor string, at int64) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("released_at", at).
		Set("released_by", actor).
		Where(sq.Eq{"tenant_id": tenantID, "id": id, "released_at": 0, "purged_at": 0})

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

// MarkPurged 只在记录尚未终态时生效，重复操作返回 false
func (s *QuarantineStore) MarkPurged(ctx context.Context, tenantID, id, actor string, at int64) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("purged_at", at).
		Set("purged_by", actor).
		Where(sq.Eq{"tenant_id": tenantID, "id": id, "released_at": 0, "purged_at": 0})

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

func (s *QuarantineStore) List(ctx context.Context, tenantID string, page, pageSize uint64) ([]*types.QuarantinedFile, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("quarantined_at DESC")
	if page != types.NO_PAGINATION && pageSize != types.NO_PAGINATION {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.QuarantinedFile
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
