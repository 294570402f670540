package process

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/filedepot/filedepot/app/core/srv"
	objstorage "github.com/filedepot/filedepot/pkg/object-storage"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

// 扫描 worker 依赖的最小存储面，按消费方定义以便测试替换

type ScanJobQueue interface {
	ClaimNext(ctx context.Context, now int64) (*types.ScanJob, error)
	Complete(ctx context.Context, id, status string) (bool, error)
	Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error
}

type ScanFileStore interface {
	GetFile(ctx context.Context, tenantID, id string) (*types.FileRecord, error)
	UpdateScanStatus(ctx context.Context, tenantID, id, fromStatus, toStatus string) (bool, error)
	SetVisibility(ctx context.Context, tenantID, id, visibility string) error
	SoftDelete(ctx context.Context, tenantID, id string) error
}

type ScanResultSink interface {
	Create(ctx context.Context, data types.ScanResult) error
}

type QuarantineSink interface {
	Create(ctx context.Context, data types.QuarantinedFile) error
}

type OffenseCounter interface {
	Increment(ctx context.Context, tenantID, userID string, at int64) (int, error)
}

type AccountStore interface {
	UpdateStatus(ctx context.Context, tenantID, id, status string) error
	ListAdmins(ctx context.Context, tenantID string) ([]*types.User, error)
}

type PolicyStore interface {
	GetPolicy(ctx context.Context, id string) (*types.TenantPolicy, error)
}

type ReplicationEnqueuer interface {
	Enqueue(ctx context.Context, job types.ReplicationJob) (created bool, err error)
}

// ScanWorker 从扫描队列认领任务并驱动状态机。
// 多个 worker 可并行运行，互斥由 ClaimNext 的条件更新保证
type ScanWorker struct {
	jobs        ScanJobQueue
	files       ScanFileStore
	results     ScanResultSink
	quarantine  QuarantineSink
	offenses    OffenseCounter
	accounts    AccountStore
	policies    PolicyStore
	replication ReplicationEnqueuer

	objects objstorage.Store
	scanner srv.Scanner
	notify  srv.Notifier

	quarantinePrefix string
	now              func() int64
}

type ScanWorkerOptions struct {
	Jobs        ScanJobQueue
	Files       ScanFileStore
	Results     ScanResultSink
	Quarantine  QuarantineSink
	Offenses    OffenseCounter
	Accounts    AccountStore
	Policies    PolicyStore
	Replication ReplicationEnqueuer

	Objects objstorage.Store
	Scanner srv.Scanner
	Notify  srv.Notifier

	QuarantinePrefix string
	Now              func() int64
}

func NewScanWorker(opts ScanWorkerOptions) *ScanWorker {
	if opts.QuarantinePrefix == "" {
		opts.QuarantinePrefix = "quarantine/"
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().Unix() }
	}
	if opts.Notify == nil {
		opts.Notify = srv.NoopNotifier{}
	}
	return &ScanWorker{
		jobs:             opts.Jobs,
		files:            opts.Files,
		results:          opts.Results,
		quarantine:       opts.Quarantine,
		offenses:         opts.Offenses,
		accounts:         opts.Accounts,
		policies:         opts.Policies,
		replication:      opts.Replication,
		objects:          opts.Objects,
		scanner:          opts.Scanner,
		notify:           opts.Notify,
		quarantinePrefix: opts.QuarantinePrefix,
		now:              opts.Now,
	}
}

// RunOnce 认领并执行一个任务，没有可执行任务时返回 false
func (w *ScanWorker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx, w.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err = w.execute(ctx, job); err != nil {
		slog.Error("scan job execution failed",
			slog.String("job_id", job.ID),
			slog.String("file_id", job.FileID),
			slog.String("error", err.Error()))
	}
	return true, nil
}

func (w *ScanWorker) execute(ctx context.Context, job *types.ScanJob) error {
	policy, err := w.policies.GetPolicy(ctx, job.TenantID)
	if err != nil {
		return w.retryOrFail(ctx, job, nil, fmt.Sprintf("failed to load tenant policy: %s", err))
	}
	if policy == nil {
		// 租户不存在属于数据完整性问题，没有重试价值
		return w.terminate(ctx, job, nil, "tenant vanished")
	}

	file, err := w.files.GetFile(ctx, job.TenantID, job.FileID)
	if err != nil {
		return w.retryOrFail(ctx, job, policy, fmt.Sprintf("failed to load file record: %s", err))
	}
	if file == nil || file.Deleted {
		return w.terminate(ctx, job, policy, "file vanished before scan")
	}

	if !policy.ScanEnabled || file.IsDirectory ||
		(policy.MaxScanSize > 0 && file.Size > policy.MaxScanSize) ||
		lo.Contains(policy.ScanExemptExtensions, utils.FileExtension(file.Name)) {
		return w.skip(ctx, job, file, policy)
	}

	obj, err := w.objects.GetObject(ctx, file.StoragePath)
	if err != nil {
		return w.retryOrFail(ctx, job, policy, fmt.Sprintf("failed to fetch content: %s", err))
	}

	started := time.Now()
	report, err := w.scanner.Scan(ctx, file.Name, obj.Content)
	if err != nil {
		return w.retryOrFail(ctx, job, policy, fmt.Sprintf("scanner error: %s", err))
	}
	durationMs := time.Since(started).Milliseconds()

	if !report.Infected {
		return w.completeClean(ctx, job, file, policy, report, durationMs)
	}
	return w.completeInfected(ctx, job, file, policy, report, durationMs)
}

// skip 文件类型或大小不在扫描范围内，任务直接终结为 skipped。
// 跳过不等于可疑，文件照常参与复制
func (w *ScanWorker) skip(ctx context.Context, job *types.ScanJob, file *types.FileRecord, policy *types.TenantPolicy) error {
	done, err := w.jobs.Complete(ctx, job.ID, types.SCAN_JOB_STATUS_SKIPPED)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	if _, err := w.files.UpdateScanStatus(ctx, file.TenantID, file.ID, file.ScanStatus, types.FILE_SCAN_STATUS_SKIPPED); err != nil {
		return err
	}
	w.enqueueReplication(ctx, file, policy)
	return nil
}

func (w *ScanWorker) enqueueReplication(ctx context.Context, file *types.FileRecord, policy *types.TenantPolicy) {
	if policy.ReplicationMode == types.REPLICATION_MODE_OFF || w.replication == nil {
		return
	}
	if _, err := w.replication.Enqueue(ctx, types.ReplicationJob{
		ID:          utils.GenUniqIDStr(),
		TenantID:    file.TenantID,
		StoragePath: file.StoragePath,
		Operation:   types.REPLICATION_OP_UPLOAD,
		Status:      types.REPLICATION_JOB_STATUS_PENDING,
		MaxRetries:  policy.MaxReplicationRetry,
		Size:        file.Size,
		CreatedAt:   w.now(),
	}); err != nil {
		slog.Error("failed to enqueue replication job",
			slog.String("file_id", file.ID), slog.String("error", err.Error()))
	}
}

func (w *ScanWorker) completeClean(ctx context.Context, job *types.ScanJob, file *types.FileRecord,
	policy *types.TenantPolicy, report *srv.ScanReport, durationMs int64) error {
	done, err := w.jobs.Complete(ctx, job.ID, types.SCAN_JOB_STATUS_COMPLETED)
	if err != nil {
		return err
	}
	if !done {
		// 任务已被回收并重新认领，当前 worker 的结果作废
		return nil
	}

	if err = w.results.Create(ctx, types.ScanResult{
		ID:               utils.GenUniqIDStr(),
		JobID:            job.ID,
		FileID:           file.ID,
		TenantID:         job.TenantID,
		IsInfected:       false,
		ScanDurationMs:   durationMs,
		ScannerVersion:   report.ScannerVersion,
		SignatureVersion: report.SignatureVersion,
		ActionTaken:      types.SCAN_ACTION_NONE,
		CreatedAt:        w.now(),
	}); err != nil {
		return err
	}

	if _, err = w.files.UpdateScanStatus(ctx, file.TenantID, file.ID, file.ScanStatus, types.FILE_SCAN_STATUS_CLEAN); err != nil {
		return err
	}

	// 干净文件按租户策略进入复制队列，入队失败不回滚扫描结论
	w.enqueueReplication(ctx, file, policy)
	return nil
}

func (w *ScanWorker) completeInfected(ctx context.Context, job *types.ScanJob, file *types.FileRecord,
	policy *types.TenantPolicy, report *srv.ScanReport, durationMs int64) error {
	done, err := w.jobs.Complete(ctx, job.ID, types.SCAN_JOB_STATUS_COMPLETED)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}

	action := policy.ActionOnDetect
	switch action {
	case types.SCAN_ACTION_QUARANTINE, types.SCAN_ACTION_DELETE, types.SCAN_ACTION_FLAG:
	default:
		action = types.SCAN_ACTION_QUARANTINE
	}

	if _, err = w.files.UpdateScanStatus(ctx, file.TenantID, file.ID, file.ScanStatus, types.FILE_SCAN_STATUS_INFECTED); err != nil {
		return err
	}

	switch action {
	case types.SCAN_ACTION_QUARANTINE:
		if err = w.isolate(ctx, job, file, report); err != nil {
			return err
		}
	case types.SCAN_ACTION_DELETE:
		if err = w.objects.DeleteObject(ctx, file.StoragePath); err != nil {
			return err
		}
		if err = w.files.SoftDelete(ctx, file.TenantID, file.ID); err != nil {
			return err
		}
	case types.SCAN_ACTION_FLAG:
		// 仅标记，文件仍可下载
	}

	if err = w.results.Create(ctx, types.ScanResult{
		ID:               utils.GenUniqIDStr(),
		JobID:            job.ID,
		FileID:           file.ID,
		TenantID:         job.TenantID,
		IsInfected:       true,
		ThreatName:       report.ThreatName,
		ScanDurationMs:   durationMs,
		ScannerVersion:   report.ScannerVersion,
		SignatureVersion: report.SignatureVersion,
		ActionTaken:      action,
		CreatedAt:        w.now(),
	}); err != nil {
		return err
	}

	count, err := w.offenses.Increment(ctx, file.TenantID, file.OwnerID, w.now())
	if err != nil {
		return err
	}

	w.notifyInfected(ctx, file, policy, report)

	if policy.AutoSuspendUploader && count >= policy.SuspendThreshold {
		if err = w.accounts.UpdateStatus(ctx, file.TenantID, file.OwnerID, types.USER_STATUS_SUSPENDED); err != nil {
			return err
		}
		w.notify.Publish(ctx, types.EVENT_USER_SUSPENDED, file.TenantID, w.adminRecipients(ctx, file.TenantID), map[string]string{
			"user_id": file.OwnerID,
			"count":   strconv.Itoa(count),
		})
		w.notify.Publish(ctx, types.EVENT_SECURITY_ALERT, file.TenantID, w.adminRecipients(ctx, file.TenantID), map[string]string{
			"user_id": file.OwnerID,
			"reason":  "malware offense threshold reached",
		})
	}
	return nil
}

// isolate 将感染内容转移到隔离前缀下，原路径清空，可见性收敛为 private
func (w *ScanWorker) isolate(ctx context.Context, job *types.ScanJob, file *types.FileRecord, report *srv.ScanReport) error {
	obj, err := w.objects.GetObject(ctx, file.StoragePath)
	if err != nil {
		return err
	}

	quarantinePath := w.quarantinePath(file)
	if err = w.objects.PutObject(ctx, quarantinePath, obj.Content); err != nil {
		return err
	}
	if err = w.objects.DeleteObject(ctx, file.StoragePath); err != nil {
		return err
	}

	if err = w.quarantine.Create(ctx, types.QuarantinedFile{
		ID:             utils.GenUniqIDStr(),
		OriginalFileID: file.ID,
		TenantID:       file.TenantID,
		OriginalPath:   file.StoragePath,
		OriginalName:   file.Name,
		QuarantinePath: quarantinePath,
		ThreatName:     report.ThreatName,
		OwnerID:        file.OwnerID,
		QuarantinedAt:  w.now(),
		QuarantinedBy:  "system",
	}); err != nil {
		return err
	}

	return w.files.SetVisibility(ctx, file.TenantID, file.ID, types.FILE_VISIBILITY_PRIVATE)
}

func (w *ScanWorker) quarantinePath(file *types.FileRecord) string {
	prefix := w.quarantinePrefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s", prefix, file.TenantID, file.ID)
}

func (w *ScanWorker) notifyInfected(ctx context.Context, file *types.FileRecord, policy *types.TenantPolicy, report *srv.ScanReport) {
	payload := map[string]string{
		"file_id":     file.ID,
		"file_name":   file.Name,
		"threat_name": report.ThreatName,
	}

	var recipients []string
	if policy.NotifyAdmin {
		recipients = w.adminRecipients(ctx, file.TenantID)
	}
	if policy.NotifyUploader {
		recipients = append(recipients, file.OwnerID)
	}
	recipients = lo.Uniq(recipients)
	if len(recipients) == 0 {
		return
	}

	w.notify.Publish(ctx, types.EVENT_FILE_INFECTED, file.TenantID, recipients, payload)
}

func (w *ScanWorker) adminRecipients(ctx context.Context, tenantID string) []string {
	admins, err := w.accounts.ListAdmins(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list tenant admins", slog.String("tenant_id", tenantID), slog.String("error", err.Error()))
		return nil
	}
	return lo.Map(admins, func(u *types.User, _ int) string { return u.ID })
}

// retryOrFail 可重试失败：未达租户重试上限则带退避回到 pending，否则终态 failed
func (w *ScanWorker) retryOrFail(ctx context.Context, job *types.ScanJob, policy *types.TenantPolicy, reason string) error {
	maxRetries := types.DEFAULT_MAX_SCAN_RETRIES
	if policy != nil && policy.MaxScanRetries > 0 {
		maxRetries = policy.MaxScanRetries
	}

	newCount := job.RetryCount + 1
	if newCount < maxRetries {
		nextRetryAt := w.now() + int64(types.ScanBackoff(newCount).Seconds())
		return w.jobs.Requeue(ctx, job.ID, newCount, nextRetryAt, reason)
	}
	return w.fail(ctx, job, newCount, reason)
}

// terminate 数据完整性问题，直接终态 failed
func (w *ScanWorker) terminate(ctx context.Context, job *types.ScanJob, policy *types.TenantPolicy, reason string) error {
	return w.fail(ctx, job, job.RetryCount, reason)
}

func (w *ScanWorker) fail(ctx context.Context, job *types.ScanJob, retryCount int, reason string) error {
	if err := w.jobs.MarkFailed(ctx, job.ID, retryCount, reason); err != nil {
		return err
	}

	if file, err := w.files.GetFile(ctx, job.TenantID, job.FileID); err == nil && file != nil {
		if _, err = w.files.UpdateScanStatus(ctx, file.TenantID, file.ID, file.ScanStatus, types.FILE_SCAN_STATUS_ERROR); err != nil {
			slog.Error("failed to update file scan status", slog.String("file_id", file.ID), slog.String("error", err.Error()))
		}
	}

	w.notify.Publish(ctx, types.EVENT_SCAN_JOB_FAILED, job.TenantID, w.adminRecipients(ctx, job.TenantID), map[string]string{
		"job_id":  job.ID,
		"file_id": job.FileID,
		"error":   reason,
	})
	return nil
}
