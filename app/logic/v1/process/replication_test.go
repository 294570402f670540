package process

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedepot/filedepot/pkg/types"
)

type memReplicationJobs struct {
	mu   sync.Mutex
	jobs map[string]*types.ReplicationJob
}

func newMemReplicationJobs() *memReplicationJobs {
	return &memReplicationJobs{jobs: make(map[string]*types.ReplicationJob)}
}

func (q *memReplicationJobs) add(job types.ReplicationJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := job
	q.jobs[job.ID] = &cp
}

func (q *memReplicationJobs) get(id string) types.ReplicationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.jobs[id]
}

func (q *memReplicationJobs) ClaimNext(ctx context.Context, now int64) (*types.ReplicationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Status == types.REPLICATION_JOB_STATUS_PENDING && job.NextRetryAt <= now {
			job.Status = types.REPLICATION_JOB_STATUS_PROCESSING
			job.StartedAt = now
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (q *memReplicationJobs) Complete(ctx context.Context, id string, at int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.Status != types.REPLICATION_JOB_STATUS_PROCESSING {
		return false, nil
	}
	job.Status = types.REPLICATION_JOB_STATUS_COMPLETED
	job.CompletedAt = at
	return true, nil
}

func (q *memReplicationJobs) Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	job.Status = types.REPLICATION_JOB_STATUS_PENDING
	job.RetryCount = retryCount
	job.NextRetryAt = nextRetryAt
	job.Error = errMsg
	return nil
}

func (q *memReplicationJobs) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	job.Status = types.REPLICATION_JOB_STATUS_FAILED
	job.RetryCount = retryCount
	job.Error = errMsg
	return nil
}

// blockedSemaphore 始终拒绝并发额度
type blockedSemaphore struct{}

func (blockedSemaphore) TryAcquire() bool { return false }
func (blockedSemaphore) Release()         {}

type replicationFixture struct {
	queue     *memReplicationJobs
	primary   *memObjects
	secondary *memObjects
	notifier  *recordNotifier
	clock     int64
}

func newReplicationFixture() *replicationFixture {
	return &replicationFixture{
		queue:     newMemReplicationJobs(),
		primary:   newMemObjects(),
		secondary: newMemObjects(),
		notifier:  &recordNotifier{},
		clock:     1000,
	}
}

func (f *replicationFixture) worker() *ReplicationWorker {
	return NewReplicationWorker(ReplicationWorkerOptions{
		Jobs:      f.queue,
		Primary:   f.primary,
		Secondary: f.secondary,
		Notify:    f.notifier,
		Accounts:  newMemAccounts(),
		Now:       func() int64 { return f.clock },
	})
}

func TestReplicationWorkerUpload(t *testing.T) {
	f := newReplicationFixture()
	f.primary.objects["files/t1/f1"] = []byte("payload")
	f.queue.add(types.ReplicationJob{
		ID:          "r1",
		TenantID:    "t1",
		StoragePath: "files/t1/f1",
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  5,
	})

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	job := f.queue.get("r1")
	assert.Equal(t, types.REPLICATION_JOB_STATUS_COMPLETED, job.Status)
	assert.Equal(t, f.clock, job.CompletedAt)
	assert.Equal(t, []byte("payload"), f.secondary.objects["files/t1/f1"])
}

func TestReplicationWorkerDelete(t *testing.T) {
	f := newReplicationFixture()
	f.secondary.objects["files/t1/f1"] = []byte("stale")
	f.queue.add(types.ReplicationJob{
		ID:          "r1",
		TenantID:    "t1",
		StoragePath: "files/t1/f1",
		Operation:   types.REPLICATION_OP_DELETE,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  5,
	})

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, types.REPLICATION_JOB_STATUS_COMPLETED, f.queue.get("r1").Status)
	assert.False(t, f.secondary.has("files/t1/f1"))
}

func TestReplicationWorkerRetryUntilExhausted(t *testing.T) {
	f := newReplicationFixture()
	f.primary.objects["files/t1/f1"] = []byte("payload")
	f.secondary.putErr = errors.New("secondary unavailable")
	f.queue.add(types.ReplicationJob{
		ID:          "r1",
		TenantID:    "t1",
		StoragePath: "files/t1/f1",
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  5,
	})

	ctx := context.Background()
	w := f.worker()

	// 前四次失败都回到 pending 并带退避
	for i := 1; i <= 4; i++ {
		f.clock += 700
		claimed, err := w.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, claimed, "attempt %d", i)

		job := f.queue.get("r1")
		assert.Equal(t, types.REPLICATION_JOB_STATUS_PENDING, job.Status)
		assert.Equal(t, i, job.RetryCount)
		assert.Greater(t, job.NextRetryAt, f.clock)
	}

	// 第五次失败进入终态
	f.clock += 700
	claimed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	job := f.queue.get("r1")
	assert.Equal(t, types.REPLICATION_JOB_STATUS_FAILED, job.Status)
	assert.Equal(t, 5, job.RetryCount)
	assert.True(t, f.notifier.has(types.EVENT_REPLICATION_FAILED))
}

func TestReplicationWorkerUnknownOperation(t *testing.T) {
	f := newReplicationFixture()
	f.queue.add(types.ReplicationJob{
		ID:          "r1",
		TenantID:    "t1",
		StoragePath: "files/t1/f1",
		Operation:   "rewrite",
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  5,
	})

	claimed, err := f.worker().RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, types.REPLICATION_JOB_STATUS_FAILED, f.queue.get("r1").Status)
}

func TestReplicationWorkerSemaphoreBlocked(t *testing.T) {
	f := newReplicationFixture()
	f.queue.add(types.ReplicationJob{
		ID:          "r1",
		TenantID:    "t1",
		StoragePath: "files/t1/f1",
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
	})

	w := NewReplicationWorker(ReplicationWorkerOptions{
		Jobs:      f.queue,
		Primary:   f.primary,
		Secondary: f.secondary,
		Semaphore: blockedSemaphore{},
	})

	claimed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
	// 没有额度时任务不会被认领
	assert.Equal(t, types.REPLICATION_JOB_STATUS_PENDING, f.queue.get("r1").Status)
}
