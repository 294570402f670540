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
		provider.stores.ScanResultStore = NewScanResultStore(provider)
	})
}

// ScanResultStore 扫描结果只追加，不提供更新和删除
type ScanResultStore struct {
	CommonFields
}

func NewScanResultStore(provider SqlProviderAchieve) *ScanResultStore {
	repo := &ScanResultStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_SCAN_RESULT)
	repo.SetAllColumns("id", "job_id", "file_id", "tenant_id", "is_infected", "threat_name",
		"scan_duration_ms", "scanner_version", "signature_version", "action_taken", "created_at")
	return repo
}

func (s *ScanResultStore) Create(ctx context.Context, data types.ScanResult) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.JobID, data.FileID, data.TenantID, data.IsInfected, data.ThreatName,
			data.ScanDurationMs, data.ScannerVersion, data.SignatureVersion, data.ActionTaken, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ScanResultStore) GetByJobID(ctx context.Context, jobID string) (*types.ScanResult, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"job_id": jobID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ScanResult
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (s *ScanResultStore) ListByFile(ctx context.Context, tenantID, fileID string) ([]*types.ScanResult, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"tenant_id": tenantID, "file_id": fileID}).
		OrderBy("created_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.ScanResult
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
