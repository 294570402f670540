package sqlstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedepot/filedepot/pkg/testutils"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

type testDSN string

func (d testDSN) FormatDSN() string { return string(d) }

// 需要真实 Postgres 的测试，设置 DEPOT_TEST_POSTGRESQL_DSN 后启用
func setupTestProvider(t *testing.T) *Provider {
	t.Helper()
	_ = testutils.LoadEnv()

	dsn := os.Getenv("DEPOT_TEST_POSTGRESQL_DSN")
	if dsn == "" {
		t.Skip("DEPOT_TEST_POSTGRESQL_DSN not set")
	}

	utils.SetupIDWorker(1)
	p := MustSetup(testDSN(dsn))()
	require.NoError(t, p.Install())
	return p
}

func testFileRecord(tenantID string) types.FileRecord {
	id := utils.GenUniqIDStr()
	now := time.Now().Unix()
	return types.FileRecord{
		ID:          id,
		TenantID:    tenantID,
		Name:        id + ".bin",
		StoragePath: "files/" + tenantID + "/" + id,
		Size:        4,
		Version:     1,
		Visibility:  types.FILE_VISIBILITY_DEPARTMENT,
		OwnerID:     "u1",
		ScanStatus:  types.FILE_SCAN_STATUS_PENDING,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// 同一文件最多一个存活扫描任务，由部分唯一索引兜底
func TestScanJobEnqueueExclusive(t *testing.T) {
	p := setupTestProvider(t)
	ctx := context.Background()

	fileID := utils.GenUniqIDStr()
	created, err := p.ScanJobStore().Enqueue(ctx, types.ScanJob{
		ID:       utils.GenUniqIDStr(),
		FileID:   fileID,
		TenantID: "t-store-test",
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.ScanJobStore().Enqueue(ctx, types.ScanJob{
		ID:       utils.GenUniqIDStr(),
		FileID:   fileID,
		TenantID: "t-store-test",
	})
	require.NoError(t, err)
	assert.False(t, created, "second live job for the same file must be rejected")
}

// 并发认领同一个任务只能有一个 worker 成功
func TestScanJobClaimRace(t *testing.T) {
	p := setupTestProvider(t)
	ctx := context.Background()

	fileID := utils.GenUniqIDStr()
	jobID := utils.GenUniqIDStr()
	created, err := p.ScanJobStore().Enqueue(ctx, types.ScanJob{
		ID:       jobID,
		FileID:   fileID,
		TenantID: "t-store-test",
	})
	require.NoError(t, err)
	require.True(t, created)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	now := time.Now().Unix()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := p.ScanJobStore().ClaimNext(ctx, now)
			assert.NoError(t, err)
			if job != nil && job.ID == jobID {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one worker may claim the job")

	got, err := p.ScanJobStore().GetJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.SCAN_JOB_STATUS_SCANNING, got.Status)

	// 清场，避免残留的存活任务影响后续认领
	done, err := p.ScanJobStore().Complete(ctx, jobID, types.SCAN_JOB_STATUS_COMPLETED)
	require.NoError(t, err)
	assert.True(t, done)
}

// 并发抢锁只有一个人成功；持锁人重复加锁是幂等刷新，换人则失败
func TestFileAcquireLockRace(t *testing.T) {
	p := setupTestProvider(t)
	ctx := context.Background()

	file := testFileRecord("t-store-test")
	require.NoError(t, p.FileStore().Create(ctx, file))

	const actors = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(holder string) {
			defer wg.Done()
			ok, err := p.FileStore().AcquireLock(ctx, file.TenantID, file.ID, types.LockState{
				HeldBy: holder,
				HeldAt: time.Now().Unix(),
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins = append(wins, holder)
				mu.Unlock()
			}
		}("actor-" + utils.GenUniqIDStr())
	}
	wg.Wait()

	require.Len(t, wins, 1, "exactly one actor may take the lock")
	holder := wins[0]

	got, err := p.FileStore().GetFile(ctx, file.TenantID, file.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, holder, got.LockHeldBy)

	// 持锁人重复加锁成功
	ok, err := p.FileStore().AcquireLock(ctx, file.TenantID, file.ID, types.LockState{
		HeldBy:  holder,
		HeldAt:  time.Now().Unix(),
		MinRole: types.RoleEditor,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = p.FileStore().GetFile(ctx, file.TenantID, file.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleEditor, got.LockMinRole)

	// 他人抢占失败
	ok, err = p.FileStore().AcquireLock(ctx, file.TenantID, file.ID, types.LockState{
		HeldBy: "intruder",
		HeldAt: time.Now().Unix(),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.FileStore().ReleaseLock(ctx, file.TenantID, file.ID))
}

// 同一 (storage_path, operation) 的存活复制任务唯一
func TestReplicationEnqueueExclusive(t *testing.T) {
	p := setupTestProvider(t)
	ctx := context.Background()

	path := "files/t-store-test/" + utils.GenUniqIDStr()
	created, err := p.ReplicationJobStore().Enqueue(ctx, types.ReplicationJob{
		ID:          utils.GenUniqIDStr(),
		TenantID:    "t-store-test",
		StoragePath: path,
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  3,
		CreatedAt:   time.Now().Unix(),
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.ReplicationJobStore().Enqueue(ctx, types.ReplicationJob{
		ID:          utils.GenUniqIDStr(),
		TenantID:    "t-store-test",
		StoragePath: path,
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  3,
		CreatedAt:   time.Now().Unix(),
	})
	require.NoError(t, err)
	assert.False(t, created)

	// 不同操作不互斥
	created, err = p.ReplicationJobStore().Enqueue(ctx, types.ReplicationJob{
		ID:          utils.GenUniqIDStr(),
		TenantID:    "t-store-test",
		StoragePath: path,
		Operation:   types.REPLICATION_OP_DELETE,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  3,
		CreatedAt:   time.Now().Unix(),
	})
	require.NoError(t, err)
	assert.True(t, created)
}
