package process

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedepot/filedepot/app/core/srv"
	"github.com/filedepot/filedepot/pkg/types"
)

type scanFixture struct {
	queue       *memScanQueue
	files       *memFiles
	results     *memResults
	quarantine  *memQuarantine
	offenses    *memOffenses
	accounts    *memAccounts
	policies    *memPolicies
	replication *memReplicationQueue
	objects     *memObjects
	scanner     *fakeScanner
	notifier    *recordNotifier

	clock int64
}

func newScanFixture(policy types.TenantPolicy) *scanFixture {
	policy.TenantID = "t1"
	return &scanFixture{
		queue:       newMemScanQueue(),
		files:       newMemFiles(),
		results:     &memResults{},
		quarantine:  &memQuarantine{},
		offenses:    newMemOffenses(),
		accounts:    newMemAccounts(),
		policies:    &memPolicies{policy: &policy},
		replication: &memReplicationQueue{},
		objects:     newMemObjects(),
		scanner:     &fakeScanner{report: &srv.ScanReport{}},
		notifier:    &recordNotifier{},
		clock:       1000,
	}
}

func (f *scanFixture) worker() *ScanWorker {
	return NewScanWorker(ScanWorkerOptions{
		Jobs:        f.queue,
		Files:       f.files,
		Results:     f.results,
		Quarantine:  f.quarantine,
		Offenses:    f.offenses,
		Accounts:    f.accounts,
		Policies:    f.policies,
		Replication: f.replication,
		Objects:     f.objects,
		Scanner:     f.scanner,
		Notify:      f.notifier,
		Now:         func() int64 { return f.clock },
	})
}

func (f *scanFixture) addFile(id string, content []byte) types.FileRecord {
	file := types.FileRecord{
		ID:          id,
		TenantID:    "t1",
		Name:        id + ".bin",
		StoragePath: "files/t1/" + id,
		Size:        int64(len(content)),
		OwnerID:     "u1",
		Visibility:  types.FILE_VISIBILITY_DEPARTMENT,
		ScanStatus:  types.FILE_SCAN_STATUS_PENDING,
	}
	f.files.add(file)
	f.objects.objects[file.StoragePath] = content
	return file
}

func (f *scanFixture) addJob(id, fileID string) {
	f.queue.add(types.ScanJob{
		ID:       id,
		FileID:   fileID,
		TenantID: "t1",
		Status:   types.SCAN_JOB_STATUS_PENDING,
	})
}

func TestScanWorkerCleanFile(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:     true,
		ReplicationMode: types.REPLICATION_MODE_BACKUP,
		MaxScanRetries:  3,
	})
	f.addFile("f1", []byte("hello"))
	f.addJob("j1", "f1")

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, types.SCAN_JOB_STATUS_COMPLETED, f.queue.get("j1").Status)
	assert.Equal(t, types.FILE_SCAN_STATUS_CLEAN, f.files.get("f1").ScanStatus)

	require.Len(t, f.results.list, 1)
	assert.False(t, f.results.list[0].IsInfected)
	assert.Equal(t, types.SCAN_ACTION_NONE, f.results.list[0].ActionTaken)

	// 干净文件进入复制队列
	require.Len(t, f.replication.jobs, 1)
	assert.Equal(t, types.REPLICATION_OP_UPLOAD, f.replication.jobs[0].Operation)
	assert.Equal(t, "files/t1/f1", f.replication.jobs[0].StoragePath)
}

func TestScanWorkerNothingToClaim(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{ScanEnabled: true})

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestScanWorkerInfectedQuarantine(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:      true,
		ActionOnDetect:   types.SCAN_ACTION_QUARANTINE,
		NotifyAdmin:      true,
		NotifyUploader:   true,
		SuspendThreshold: 3,
	})
	f.scanner.report = &srv.ScanReport{Infected: true, ThreatName: "EICAR-Test"}
	f.addFile("f1", []byte("malware"))
	f.addJob("j1", "f1")

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	// 对象搬进隔离前缀，原路径清空
	assert.False(t, f.objects.has("files/t1/f1"))
	assert.True(t, f.objects.has("quarantine/t1/f1"))

	file := f.files.get("f1")
	assert.Equal(t, types.FILE_SCAN_STATUS_INFECTED, file.ScanStatus)
	assert.Equal(t, types.FILE_VISIBILITY_PRIVATE, file.Visibility)

	require.Len(t, f.quarantine.list, 1)
	assert.Equal(t, "EICAR-Test", f.quarantine.list[0].ThreatName)
	assert.Equal(t, "system", f.quarantine.list[0].QuarantinedBy)

	require.Len(t, f.results.list, 1)
	assert.True(t, f.results.list[0].IsInfected)
	assert.Equal(t, types.SCAN_ACTION_QUARANTINE, f.results.list[0].ActionTaken)

	assert.True(t, f.notifier.has(types.EVENT_FILE_INFECTED))
	// 感染文件不触发复制
	assert.Empty(t, f.replication.jobs)
}

func TestScanWorkerInfectedDelete(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:    true,
		ActionOnDetect: types.SCAN_ACTION_DELETE,
	})
	f.scanner.report = &srv.ScanReport{Infected: true, ThreatName: "Worm"}
	f.addFile("f1", []byte("malware"))
	f.addJob("j1", "f1")

	_, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, f.objects.has("files/t1/f1"))
	assert.True(t, f.files.get("f1").Deleted)
	assert.Empty(t, f.quarantine.list)
}

func TestScanWorkerInfectedFlagKeepsObject(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:    true,
		ActionOnDetect: types.SCAN_ACTION_FLAG,
	})
	f.scanner.report = &srv.ScanReport{Infected: true, ThreatName: "PUA"}
	f.addFile("f1", []byte("suspicious"))
	f.addJob("j1", "f1")

	_, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, f.objects.has("files/t1/f1"))
	assert.False(t, f.files.get("f1").Deleted)
	assert.Equal(t, types.FILE_SCAN_STATUS_INFECTED, f.files.get("f1").ScanStatus)
	assert.Empty(t, f.quarantine.list)
}

func TestScanWorkerAutoSuspend(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:         true,
		ActionOnDetect:      types.SCAN_ACTION_QUARANTINE,
		AutoSuspendUploader: true,
		SuspendThreshold:    2,
	})
	f.scanner.report = &srv.ScanReport{Infected: true, ThreatName: "Trojan"}

	for i, id := range []string{"f1", "f2"} {
		f.addFile(id, []byte("bad"))
		f.addJob("j"+string(rune('1'+i)), id)
	}

	ctx := context.Background()
	w := f.worker()
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	// 第一次感染未到阈值
	assert.Empty(t, f.accounts.statuses["u1"])

	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.USER_STATUS_SUSPENDED, f.accounts.statuses["u1"])
	assert.True(t, f.notifier.has(types.EVENT_USER_SUSPENDED))
	assert.True(t, f.notifier.has(types.EVENT_SECURITY_ALERT))
}

func TestScanWorkerSkipOversized(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:     true,
		MaxScanSize:     4,
		ReplicationMode: types.REPLICATION_MODE_MIRROR,
	})
	f.addFile("f1", []byte("more than four bytes"))
	f.addJob("j1", "f1")

	_, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.SCAN_JOB_STATUS_SKIPPED, f.queue.get("j1").Status)
	assert.Equal(t, types.FILE_SCAN_STATUS_SKIPPED, f.files.get("f1").ScanStatus)
	assert.Zero(t, f.scanner.calls)

	// 跳过不等于可疑，复制照常进行
	require.Len(t, f.replication.jobs, 1)
}

func TestScanWorkerRetryBackoff(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:    true,
		MaxScanRetries: 5,
	})
	f.scanner.err = errors.New("scanner unavailable")
	f.addFile("f1", []byte("data"))
	f.addJob("j1", "f1")

	ctx := context.Background()
	w := f.worker()

	expected := []int64{30, 120, 600, 600}
	for i, backoff := range expected {
		f.clock += 700
		claimed, err := w.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, claimed, "attempt %d", i+1)

		job := f.queue.get("j1")
		assert.Equal(t, types.SCAN_JOB_STATUS_PENDING, job.Status)
		assert.Equal(t, i+1, job.RetryCount)
		assert.Equal(t, f.clock+backoff, job.NextRetryAt)
	}

	// 第五次失败耗尽重试，进入终态
	f.clock += 700
	claimed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	job := f.queue.get("j1")
	assert.Equal(t, types.SCAN_JOB_STATUS_FAILED, job.Status)
	assert.Equal(t, 5, job.RetryCount)
	assert.Equal(t, types.FILE_SCAN_STATUS_ERROR, f.files.get("f1").ScanStatus)
	assert.True(t, f.notifier.has(types.EVENT_SCAN_JOB_FAILED))
}

func TestScanWorkerFileVanished(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{ScanEnabled: true})
	f.addJob("j1", "ghost")

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, types.SCAN_JOB_STATUS_FAILED, f.queue.get("j1").Status)
}

func TestScanWorkerScanDisabledSkips(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{ScanEnabled: false})
	f.addFile("f1", []byte("data"))
	f.addJob("j1", "f1")

	_, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.SCAN_JOB_STATUS_SKIPPED, f.queue.get("j1").Status)
	assert.Zero(t, f.scanner.calls)
}

// 豁免类型不进扫描引擎，但跳过的文件照常参与复制
func TestScanWorkerExemptExtensionSkips(t *testing.T) {
	f := newScanFixture(types.TenantPolicy{
		ScanEnabled:          true,
		ScanExemptExtensions: []string{"bin", "iso"},
		ReplicationMode:      types.REPLICATION_MODE_BACKUP,
		MaxReplicationRetry:  3,
	})
	f.addFile("f1", []byte("data"))
	f.addJob("j1", "f1")

	_, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.SCAN_JOB_STATUS_SKIPPED, f.queue.get("j1").Status)
	assert.Equal(t, types.FILE_SCAN_STATUS_SKIPPED, f.files.get("f1").ScanStatus)
	assert.Zero(t, f.scanner.calls)
	assert.Len(t, f.replication.jobs, 1)
}
