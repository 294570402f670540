package sqlstore

import (
	"embed"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/filedepot/filedepot/app/store"
	"github.com/filedepot/filedepot/pkg/register"
	"github.com/filedepot/filedepot/pkg/sqlstore"
	"github.com/filedepot/filedepot/pkg/types"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

//go:embed *.sql
var CreateTableFiles embed.FS

var provider = &Provider{
	stores: &Stores{},
}

func GetProvider() *Provider {
	return provider
}

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.FileStore
	store.FileGroupStore
	store.ScanJobStore
	store.ScanResultStore
	store.QuarantineStore
	store.MalwareCountStore
	store.ReplicationJobStore
	store.TenantStore
	store.UserStore
}

type RegisterKey struct{}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	provider.SqlProvider = sqlstore.MustSetupProvider(m, s...)

	for _, f := range register.ResolveFuncHandlers[*Provider](RegisterKey{}) {
		f(provider)
	}

	return func() *Provider {
		return provider
	}
}

// Install 初始化所有数据表
func (p *Provider) Install() error {
	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := CreateTableFiles.ReadDir(".")
	if err != nil {
		return err
	}

	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			if executed, err := p.isFileExecuted(file.Name()); err != nil {
				return err
			} else if executed {
				continue
			}

			sql, err := CreateTableFiles.ReadFile(file.Name())
			if err != nil {
				return err
			}

			if err = p.executeSQLFile(string(sql)); err != nil {
				return fmt.Errorf("failed to execute %s: %w", file.Name(), err)
			}

			if err = p.markFileExecuted(file.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureMigrationTable 确保迁移记录表存在
func (p *Provider) ensureMigrationTable() error {
	createTableSQL := `
CREATE TABLE IF NOT EXISTS ` + types.TABLE_PREFIX + `schema_migrations (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`
	_, err := p.SqlProvider.GetMaster().Exec(createTableSQL)
	return err
}

// isFileExecuted 检查文件是否已经执行过
func (p *Provider) isFileExecuted(filename string) (bool, error) {
	var count int
	err := p.SqlProvider.GetReplica().Get(&count,
		"SELECT COUNT(*) FROM "+types.TABLE_PREFIX+"schema_migrations WHERE filename = $1", filename)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// markFileExecuted 标记文件为已执行
func (p *Provider) markFileExecuted(filename string) error {
	_, err := p.SqlProvider.GetMaster().Exec(
		"INSERT INTO "+types.TABLE_PREFIX+"schema_migrations (filename, executed_at) VALUES ($1, $2) ON CONFLICT (filename) DO NOTHING",
		filename, time.Now().Unix())
	return err
}

func (p *Provider) executeSQLFile(content string) error {
	if _, err := p.SqlProvider.GetMaster().Exec(content); err != nil {
		return err
	}
	return nil
}

func (p *Provider) FileStore() store.FileStore {
	return p.stores.FileStore
}

func (p *Provider) FileGroupStore() store.FileGroupStore {
	return p.stores.FileGroupStore
}

func (p *Provider) ScanJobStore() store.ScanJobStore {
	return p.stores.ScanJobStore
}

func (p *Provider) ScanResultStore() store.ScanResultStore {
	return p.stores.ScanResultStore
}

func (p *Provider) QuarantineStore() store.QuarantineStore {
	return p.stores.QuarantineStore
}

func (p *Provider) MalwareCountStore() store.MalwareCountStore {
	return p.stores.MalwareCountStore
}

func (p *Provider) ReplicationJobStore() store.ReplicationJobStore {
	return p.stores.ReplicationJobStore
}

func (p *Provider) TenantStore() store.TenantStore {
	return p.stores.TenantStore
}

func (p *Provider) UserStore() store.UserStore {
	return p.stores.UserStore
}
