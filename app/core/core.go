package core

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/filedepot/filedepot/app/core/srv"
	"github.com/filedepot/filedepot/app/store/sqlstore"
	objstorage "github.com/filedepot/filedepot/pkg/object-storage"
	"github.com/filedepot/filedepot/pkg/object-storage/s3"
	"github.com/filedepot/filedepot/pkg/queue"
	"github.com/filedepot/filedepot/pkg/utils"
)

type Core struct {
	cfg Config

	srv *srv.Srv

	stores     func() *sqlstore.Provider
	httpClient *http.Client
	httpEngine *gin.Engine

	redisClient redis.UniversalClient
	asynqClient *asynq.Client

	primary   objstorage.Store
	secondary objstorage.Store

	metrics    *Metrics
	semaphores *SemaphoreManager
}

type Config = CoreConfig

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28,   //days
				Compress:   true, // disabled by default
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	// 雪花 id 生成器必须先于任何建表/写入逻辑就绪
	utils.SetupIDWorker(cfg.ClusterID)

	core := &Core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Second * 3},
		metrics:    NewMetrics("depot", "core"),
		httpEngine: gin.New(),
	}

	// setup store
	setupSqlStore(core)
	setupRedis(core)
	setupObjectStorage(core)

	core.asynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	notifier := srv.NewQueueNotifier(queue.NewNotificationQueueWithClient(cfg.Redis.KeyPrefix, core.asynqClient))

	core.srv = srv.SetupSrvs(
		srv.ApplyScanner(setupScanner(cfg.Scanner)),
		srv.ApplyNotifier(notifier),
	)

	core.semaphores = NewSemaphoreManager(core)

	return core
}

func setupSqlStore(core *Core) {
	core.stores = sqlstore.MustSetup(core.cfg.Postgres)
	// 执行数据库表初始化
	if err := core.stores().Install(); err != nil {
		panic(err)
	}
}

func setupRedis(core *Core) {
	if core.cfg.Redis.Cluster {
		core.redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    core.cfg.Redis.ClusterAddrs,
			Password: core.cfg.Redis.ClusterPasswd,
		})
		return
	}
	core.redisClient = redis.NewClient(&redis.Options{
		Addr:         core.cfg.Redis.Addr,
		Password:     core.cfg.Redis.Password,
		DB:           core.cfg.Redis.DB,
		PoolSize:     core.cfg.Redis.PoolSize,
		MinIdleConns: core.cfg.Redis.MinIdleConns,
		MaxRetries:   core.cfg.Redis.MaxRetries,
	})
}

func setupObjectStorage(core *Core) {
	core.primary = buildObjectStore(core.cfg.ObjectStorage.Primary)
	core.secondary = buildObjectStore(core.cfg.ObjectStorage.Secondary)
}

func buildObjectStore(driver ObjectStorageDriver) objstorage.Store {
	switch driver.Driver {
	case "s3":
		cli := s3.NewS3Client(driver.S3.Endpoint, driver.S3.Region, driver.S3.Bucket,
			driver.S3.AccessKey, driver.S3.SecretKey, s3.WithPathStyle(driver.S3.UsePathStyle))
		return objstorage.NewS3Store(cli)
	case "local":
		return objstorage.NewLocalStore(driver.LocalRoot)
	default:
		return objstorage.NoneStore{}
	}
}

func setupScanner(cfg ScannerConfig) srv.Scanner {
	switch cfg.Driver {
	case "http":
		return srv.NewHTTPScanner(cfg.Endpoint)
	default:
		return srv.NoopScanner{}
	}
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) Store() *sqlstore.Provider {
	return s.stores()
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

func (s *Core) Redis() redis.UniversalClient {
	return s.redisClient
}

func (s *Core) AsynqClient() *asynq.Client {
	return s.asynqClient
}

// Primary 主对象存储，所有读写都走这里
func (s *Core) Primary() objstorage.Store {
	return s.primary
}

// Secondary 复制目标存储，replication_mode 为 off 时不会被访问
func (s *Core) Secondary() objstorage.Store {
	return s.secondary
}

func (s *Core) Semaphores() *SemaphoreManager {
	return s.semaphores
}

func (s *Core) Cache() *Cache {
	return &Cache{redis: s.redisClient}
}
