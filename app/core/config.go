package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	conf.SetConfigBytes(raw)

	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}

	return *conf
}

func (c CoreConfig) LoadCustomConfig(cfg any) error {
	if len(c.bytes) == 0 {
		return nil
	}
	if err := toml.Unmarshal(c.bytes, cfg); err != nil {
		return err
	}
	return nil
}

type CustomConfig[T any] struct {
	CustomConfig T `toml:"custom_config"`
}

func NewCustomConfigPayload[T any]() CustomConfig[T] {
	return CustomConfig[T]{}
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	return c
}

type CoreConfig struct {
	Addr string `toml:"addr"`
	// ClusterID 雪花 id 的机器位，多实例部署时每个实例配置不同的值
	ClusterID int64       `toml:"cluster_id"`
	Log       Log         `toml:"log"`
	Postgres PGConfig    `toml:"postgres"`
	Redis    RedisConfig `toml:"redis"`

	// Primary 主存储，Secondary 复制目标，复制关闭时 Secondary 可留空
	ObjectStorage ObjectStorageConfig `toml:"object_storage"`

	Scanner     ScannerConfig     `toml:"scanner"`
	Quarantine  QuarantineConfig  `toml:"quarantine"`
	Replication ReplicationConfig `toml:"replication"`

	Security Security `toml:"security"`

	Semaphore SemaphoreConfig `toml:"semaphore"`

	bytes []byte `toml:"-"`
}

type ObjectStorageConfig struct {
	Primary   ObjectStorageDriver `toml:"primary"`
	Secondary ObjectStorageDriver `toml:"secondary"`
}

type ObjectStorageDriver struct {
	StaticDomain string    `toml:"static_domain"`
	Driver       string    `toml:"driver"` // s3 | local
	LocalRoot    string    `toml:"local_root"`
	S3           *S3Config `toml:"s3"`
}

type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// ScannerConfig 扫描引擎与扫描 worker 配置
type ScannerConfig struct {
	Driver          string `toml:"driver"`   // http | noop
	Endpoint        string `toml:"endpoint"` // http driver 的扫描服务地址
	Workers         int    `toml:"workers"`  // 扫描 worker 数量，默认 2
	PollIntervalSec int    `toml:"poll_interval_sec"`
	LeaseSec        int    `toml:"lease_sec"` // scanning 状态的租约窗口，超时被回收
}

type QuarantineConfig struct {
	// PathPrefix 隔离对象在存储中的前缀，默认 quarantine/
	PathPrefix string `toml:"path_prefix"`
}

type ReplicationConfig struct {
	Workers         int `toml:"workers"`
	PollIntervalSec int `toml:"poll_interval_sec"`
	LeaseSec        int `toml:"lease_sec"`
}

func (c *CoreConfig) SetConfigBytes(raw []byte) {
	c.bytes = raw
}

type Security struct {
	EncryptKey string `toml:"encrypt_key"`
	JWTSecret  string `toml:"jwt_secret"`
}

type SemaphoreConfig struct {
	Replication ReplicationSemaphoreConfig `toml:"replication"`
}

type ReplicationSemaphoreConfig struct {
	MaxConcurrency int `toml:"max_concurrency"` // 跨实例的复制并发上限，默认 10
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("DEPOT_API_SERVICE_ADDRESS")
	c.ClusterID, _ = strconv.ParseInt(os.Getenv("DEPOT_CLUSTER_ID"), 10, 64)
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("DEPOT_API_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	// 单机模式配置
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// 集群模式配置
	Cluster       bool     `toml:"cluster"`
	ClusterAddrs  []string `toml:"cluster_addrs"`
	ClusterPasswd string   `toml:"cluster_passwd"`

	// 连接池配置
	PoolSize     int `toml:"pool_size"`
	MinIdleConns int `toml:"min_idle_conns"`
	MaxRetries   int `toml:"max_retries"`
	DialTimeout  int `toml:"dial_timeout"`
	ReadTimeout  int `toml:"read_timeout"`
	WriteTimeout int `toml:"write_timeout"`

	// KeyPrefix Redis键前缀，用于隔离不同环境/应用
	KeyPrefix string `toml:"key_prefix"`
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("DEPOT_REDIS_ADDR")
	r.Password = os.Getenv("DEPOT_REDIS_PASSWORD")
	if dbStr := os.Getenv("DEPOT_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("DEPOT_API_LOG_LEVEL")
	l.Path = os.Getenv("DEPOT_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
