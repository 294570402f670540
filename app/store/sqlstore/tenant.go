package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/filedepot/filedepot/pkg/register"
	"github.com/filedepot/filedepot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.TenantStore = NewTenantStore(provider)
	})
}

type TenantStore struct {
	CommonFields
}

func NewTenantStore(provider SqlProviderAchieve) *TenantStore {
	repo := &TenantStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_TENANT)
	repo.SetAllColumns("id", "name", "created_at", "scan_enabled", "action_on_detect",
		"notify_admin", "notify_uploader", "auto_suspend_uploader", "suspend_threshold",
		"max_scan_size", "max_scan_retries", "scan_exempt_extensions", "blocked_extensions", "max_file_size",
		"immutable_versions", "replication_mode", "max_replication_retry")
	return repo
}

func (s *TenantStore) Create(ctx context.Context, data types.Tenant) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.ActionOnDetect == "" {
		data.ActionOnDetect = types.SCAN_ACTION_QUARANTINE
	}
	if data.SuspendThreshold == 0 {
		data.SuspendThreshold = types.DEFAULT_SUSPEND_THRESHOLD
	}
	if data.MaxScanRetries == 0 {
		data.MaxScanRetries = types.DEFAULT_MAX_SCAN_RETRIES
	}
	if data.MaxReplicationRetry == 0 {
		data.MaxReplicationRetry = types.DEFAULT_MAX_REPLICATION_RETRY
	}
	if data.ReplicationMode == "" {
		data.ReplicationMode = types.REPLICATION_MODE_OFF
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Name, data.CreatedAt, data.ScanEnabled, data.ActionOnDetect,
			data.NotifyAdmin, data.NotifyUploader, data.AutoSuspendUploader, data.SuspendThreshold,
			data.MaxScanSize, data.MaxScanRetries, data.ScanExemptExtensions, data.BlockedExtensions, data.MaxFileSize,
			data.ImmutableVersions, data.ReplicationMode, data.MaxReplicationRetry)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TenantStore) GetTenant(ctx context.Context, id string) (*types.Tenant, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Tenant
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// GetPolicy 返回策略快照，任务执行期间不再读取租户行
func (s *TenantStore) GetPolicy(ctx context.Context, id string) (*types.TenantPolicy, error) {
	tenant, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, nil
	}

	return &types.TenantPolicy{
		TenantID:             tenant.ID,
		ScanEnabled:          tenant.ScanEnabled,
		ActionOnDetect:       tenant.ActionOnDetect,
		NotifyAdmin:          tenant.NotifyAdmin,
		NotifyUploader:       tenant.NotifyUploader,
		AutoSuspendUploader:  tenant.AutoSuspendUploader,
		SuspendThreshold:     tenant.SuspendThreshold,
		MaxScanSize:          tenant.MaxScanSize,
		MaxScanRetries:       tenant.MaxScanRetries,
		ScanExemptExtensions: splitExtensionList(tenant.ScanExemptExtensions),
		BlockedExtensions:    splitExtensionList(tenant.BlockedExtensions),
		MaxFileSize:          tenant.MaxFileSize,
		ImmutableVersions:    tenant.ImmutableVersions,
		ReplicationMode:      tenant.ReplicationMode,
		MaxReplicationRetry:  tenant.MaxReplicationRetry,
	}, nil
}

// splitExtensionList 逗号分隔的扩展名列表统一转小写，空项丢弃
func splitExtensionList(raw string) []string {
	var out []string
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}
