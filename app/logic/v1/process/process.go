package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/pkg/queue"
	"github.com/filedepot/filedepot/pkg/safe"
	"github.com/filedepot/filedepot/pkg/types"
)

type Process struct {
	cron *cron.Cron
	core *core.Core

	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux

	sender queue.Sender

	cancel context.CancelFunc
}

var p *Process

func NewProcess(core *core.Core) *Process {
	cfg := core.Cfg().Redis

	var redisOpt asynq.RedisConnOpt
	if cfg.Cluster {
		redisOpt = asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.ClusterPasswd,
		}
	} else {
		redisOpt = asynq.RedisClientOpt{
			Network:  "tcp",
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	p = &Process{
		cron: cron.New(),
		core: core,
		asynqServer: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				queue.NotificationQueueName: 5,
			},
		}),
		asynqMux: asynq.NewServeMux(),
		// 默认投递方式是结构化日志，邮件等渠道由部署方替换
		sender: func(ctx context.Context, task *queue.NotificationTask) error {
			slog.Info("notification",
				slog.String("event_type", string(task.EventType)),
				slog.String("tenant_id", task.TenantID),
				slog.Any("recipients", task.Recipients),
				slog.Any("payload", task.Payload))
			return nil
		},
	}

	return p
}

func (p *Process) Cron() *cron.Cron {
	return p.cron
}

func (p *Process) Core() *core.Core {
	return p.core
}

// SetNotificationSender 替换通知投递实现
func (p *Process) SetNotificationSender(sender queue.Sender) {
	p.sender = sender
}

func (p *Process) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.startScanWorkers(ctx)
	p.startReplicationWorkers(ctx)
	p.setupCron()

	p.cron.Start()

	p.asynqMux.HandleFunc(queue.TaskTypeNotification, queue.NewNotificationHandler(p.sender))
	go safe.Run(func() {
		if err := p.asynqServer.Run(p.asynqMux); err != nil {
			slog.Error("asynq server stopped", slog.String("error", err.Error()))
		}
	})
}

func (p *Process) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
	if p.asynqServer != nil {
		p.asynqServer.Shutdown()
	}
}

func (p *Process) startScanWorkers(ctx context.Context) {
	cfg := p.core.Cfg().Scanner
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	interval := time.Second * 5
	if cfg.PollIntervalSec > 0 {
		interval = time.Second * time.Duration(cfg.PollIntervalSec)
	}

	store := p.core.Store()
	worker := NewScanWorker(ScanWorkerOptions{
		Jobs:             store.ScanJobStore(),
		Files:            store.FileStore(),
		Results:          store.ScanResultStore(),
		Quarantine:       store.QuarantineStore(),
		Offenses:         store.MalwareCountStore(),
		Accounts:         store.UserStore(),
		Policies:         store.TenantStore(),
		Replication:      store.ReplicationJobStore(),
		Objects:          p.core.Primary(),
		Scanner:          p.core.Srv().Scanner(),
		Notify:           p.core.Srv().Notifier(),
		QuarantinePrefix: p.core.Cfg().Quarantine.PathPrefix,
	})

	for i := 0; i < workers; i++ {
		go safe.Run(func() {
			p.pollLoop(ctx, interval, func(ctx context.Context) (bool, error) {
				claimed, err := worker.RunOnce(ctx)
				if claimed {
					p.core.Metrics().ScanJobInc("claimed")
				}
				return claimed, err
			})
		})
	}
}

func (p *Process) startReplicationWorkers(ctx context.Context) {
	cfg := p.core.Cfg().Replication
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	interval := time.Second * 5
	if cfg.PollIntervalSec > 0 {
		interval = time.Second * time.Duration(cfg.PollIntervalSec)
	}

	store := p.core.Store()
	worker := NewReplicationWorker(ReplicationWorkerOptions{
		Jobs:      store.ReplicationJobStore(),
		Primary:   p.core.Primary(),
		Secondary: p.core.Secondary(),
		Semaphore: p.core.Semaphores().Replication(),
		Notify:    p.core.Srv().Notifier(),
		Accounts:  store.UserStore(),
	})

	for i := 0; i < workers; i++ {
		go safe.Run(func() {
			p.pollLoop(ctx, interval, func(ctx context.Context) (bool, error) {
				claimed, err := worker.RunOnce(ctx)
				if claimed {
					p.core.Metrics().ReplicationJobInc("claimed")
				}
				return claimed, err
			})
		})
	}
}

// pollLoop 持续拉取任务，队列有任务时立即继续，空轮询按间隔休眠
func (p *Process) pollLoop(ctx context.Context, interval time.Duration, runOnce func(ctx context.Context) (bool, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := runOnce(ctx)
		if err != nil {
			slog.Error("worker poll failed", slog.String("error", err.Error()))
		}
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Process) setupCron() {
	// 回收滞留在 scanning/processing 状态超过租约窗口的任务
	p.cron.AddFunc("@every 1m", func() {
		safe.Run(func() {
			p.requeueStaleJobs()
		})
	})

	// 队列深度指标
	p.cron.AddFunc("@every 30s", func() {
		safe.Run(func() {
			p.reportQueueDepth()
		})
	})
}

func (p *Process) leaseSeconds(configured int) int64 {
	if configured > 0 {
		return int64(configured)
	}
	return 600 // 默认10分钟
}

func (p *Process) requeueStaleJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	now := time.Now().Unix()

	scanStale := now - p.leaseSeconds(p.core.Cfg().Scanner.LeaseSec)
	if n, err := p.core.Store().ScanJobStore().RequeueStale(ctx, scanStale); err != nil {
		slog.Error("failed to requeue stale scan jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		slog.Warn("requeued stale scan jobs", slog.Int64("count", n))
	}

	replicationStale := now - p.leaseSeconds(p.core.Cfg().Replication.LeaseSec)
	if n, err := p.core.Store().ReplicationJobStore().RequeueStale(ctx, replicationStale); err != nil {
		slog.Error("failed to requeue stale replication jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		slog.Warn("requeued stale replication jobs", slog.Int64("count", n))
	}
}

func (p *Process) reportQueueDepth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	for _, status := range []string{types.SCAN_JOB_STATUS_PENDING, types.SCAN_JOB_STATUS_SCANNING, types.SCAN_JOB_STATUS_FAILED} {
		if n, err := p.core.Store().ScanJobStore().CountByStatus(ctx, status); err == nil {
			p.core.Metrics().SetQueueDepth("scan", status, n)
		}
	}
	for _, status := range []string{types.REPLICATION_JOB_STATUS_PENDING, types.REPLICATION_JOB_STATUS_PROCESSING, types.REPLICATION_JOB_STATUS_FAILED} {
		if n, err := p.core.Store().ReplicationJobStore().CountByStatus(ctx, status); err == nil {
			p.core.Metrics().SetQueueDepth("replication", status, n)
		}
	}
}
