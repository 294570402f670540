package sqlstore

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/filedepot/filedepot/pkg/register"
	"github.com/filedepot/filedepot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.MalwareCountStore = NewMalwareCountStore(provider)
	})
}

// MalwareCountStore 每个 (tenant, user) 一行的感染计数
type MalwareCountStore struct {
	CommonFields
}

func NewMalwareCountStore(provider SqlProviderAchieve) *MalwareCountStore {
	repo := &MalwareCountStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_MALWARE_COUNT)
	repo.SetAllColumns("user_id", "tenant_id", "count", "last_offense_at")
	return repo
}

// Increment upsert 自增并返回新的计数。
// 计数只增不减，释放隔离文件也不回退
func (s *MalwareCountStore) Increment(ctx context.Context, tenantID, userID string, at int64) (int, error) {
	query := sq.Insert(s.GetTable()).
		Columns("user_id", "tenant_id", "count", "last_offense_at").
		Values(userID, tenantID, 1, at).
		Suffix("ON CONFLICT (tenant_id, user_id) DO UPDATE SET count = " + s.GetTable() + ".count + 1, last_offense_at = EXCLUDED.last_offense_at")

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return 0, err
	}

	current, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, sql.ErrNoRows
	}
	return current.Count, nil
}

func (s *MalwareCountStore) Get(ctx context.Context, tenantID, userID string) (*types.UserMalwareCount, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"tenant_id": tenantID, "user_id": userID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.UserMalwareCount
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}
