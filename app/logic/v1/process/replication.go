package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/filedepot/filedepot/app/core/srv"
	objstorage "github.com/filedepot/filedepot/pkg/object-storage"
	"github.com/filedepot/filedepot/pkg/types"
)

type ReplicationJobQueue interface {
	ClaimNext(ctx context.Context, now int64) (*types.ReplicationJob, error)
	Complete(ctx context.Context, id string, at int64) (bool, error)
	Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
}

// Semaphore 跨实例的并发闸门，复制传输共享带宽资源
type Semaphore interface {
	TryAcquire() bool
	Release()
}

// nopSemaphore 未配置信号量时不做并发限制
type nopSemaphore struct{}

func (nopSemaphore) TryAcquire() bool { return true }
func (nopSemaphore) Release()         {}

// ReplicationWorker 将主存储的对象变更同步到次存储。
// upload 任务把字节从主存储拷贝到次存储的相同路径，delete 任务删除次存储对象。
// 写入依赖 Store 实现的提交式写入语义，重试不会留下半写对象
type ReplicationWorker struct {
	jobs      ReplicationJobQueue
	primary   objstorage.Store
	secondary objstorage.Store
	semaphore Semaphore
	notify    srv.Notifier
	accounts  AccountStore
	now       func() int64
}

type ReplicationWorkerOptions struct {
	Jobs      ReplicationJobQueue
	Primary   objstorage.Store
	Secondary objstorage.Store
	Semaphore Semaphore
	Notify    srv.Notifier
	Accounts  AccountStore
	Now       func() int64
}

func NewReplicationWorker(opts ReplicationWorkerOptions) *ReplicationWorker {
	if opts.Semaphore == nil {
		opts.Semaphore = nopSemaphore{}
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().Unix() }
	}
	if opts.Notify == nil {
		opts.Notify = srv.NoopNotifier{}
	}
	return &ReplicationWorker{
		jobs:      opts.Jobs,
		primary:   opts.Primary,
		secondary: opts.Secondary,
		semaphore: opts.Semaphore,
		notify:    opts.Notify,
		accounts:  opts.Accounts,
		now:       opts.Now,
	}
}

// RunOnce 认领并执行一个任务，没有可执行任务或并发额度耗尽时返回 false
func (w *ReplicationWorker) RunOnce(ctx context.Context) (bool, error) {
	if !w.semaphore.TryAcquire() {
		return false, nil
	}
	defer w.semaphore.Release()

	job, err := w.jobs.ClaimNext(ctx, w.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err = w.execute(ctx, job); err != nil {
		slog.Error("replication job execution failed",
			slog.String("job_id", job.ID),
			slog.String("path", job.StoragePath),
			slog.String("error", err.Error()))
	}
	return true, nil
}

func (w *ReplicationWorker) execute(ctx context.Context, job *types.ReplicationJob) error {
	var err error
	switch job.Operation {
	case types.REPLICATION_OP_UPLOAD:
		err = w.copyToSecondary(ctx, job.StoragePath)
	case types.REPLICATION_OP_DELETE:
		err = w.secondary.DeleteObject(ctx, job.StoragePath)
	default:
		// 未知操作没有重试价值
		return w.fail(ctx, job, job.RetryCount, fmt.Sprintf("unknown operation %q", job.Operation))
	}

	if err != nil {
		return w.retryOrFail(ctx, job, err.Error())
	}

	if _, err = w.jobs.Complete(ctx, job.ID, w.now()); err != nil {
		return err
	}
	return nil
}

func (w *ReplicationWorker) copyToSecondary(ctx context.Context, path string) error {
	obj, err := w.primary.GetObject(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read primary object: %w", err)
	}
	if err = w.secondary.PutObject(ctx, path, obj.Content); err != nil {
		return fmt.Errorf("failed to write secondary object: %w", err)
	}
	return nil
}

func (w *ReplicationWorker) retryOrFail(ctx context.Context, job *types.ReplicationJob, reason string) error {
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = types.DEFAULT_MAX_REPLICATION_RETRY
	}

	newCount := job.RetryCount + 1
	if newCount < maxRetries {
		nextRetryAt := w.now() + int64(types.ScanBackoff(newCount).Seconds())
		return w.jobs.Requeue(ctx, job.ID, newCount, nextRetryAt, reason)
	}
	return w.fail(ctx, job, newCount, reason)
}

func (w *ReplicationWorker) fail(ctx context.Context, job *types.ReplicationJob, retryCount int, reason string) error {
	if err := w.jobs.MarkFailed(ctx, job.ID, retryCount, reason); err != nil {
		return err
	}

	var recipients []string
	if w.accounts != nil {
		if admins, err := w.accounts.ListAdmins(ctx, job.TenantID); err == nil {
			for _, admin := range admins {
				recipients = append(recipients, admin.ID)
			}
		}
	}
	w.notify.Publish(ctx, types.EVENT_REPLICATION_FAILED, job.TenantID, recipients, map[string]string{
		"job_id":    job.ID,
		"path":      job.StoragePath,
		"operation": job.Operation,
		"error":     reason,
	})
	return nil
}
