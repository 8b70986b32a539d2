// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"

	"video-sentinel/pkg/tracer"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Index         IndexConfig         `yaml:"index" mapstructure:"index"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Capture       CaptureConfig       `yaml:"capture" mapstructure:"capture"`
	Ingest        IngestConfig        `yaml:"ingest" mapstructure:"ingest"`
	Query         QueryConfig         `yaml:"query" mapstructure:"query"`
	Alert         AlertConfig         `yaml:"alert" mapstructure:"alert"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Version  string `yaml:"version" mapstructure:"version"`
	Env      string `yaml:"env" mapstructure:"env"`
	TimeZone string `yaml:"time_zone" mapstructure:"time_zone"`
}

// Location 返回日历日期计算使用的时区
func (c AppConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" mapstructure:"slow_threshold"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
	SearchEf           int    `yaml:"search_ef" mapstructure:"search_ef"`
}

// Address 返回 host:port
func (c MilvusConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IndexConfig 索引后端配置
type IndexConfig struct {
	// Backend 向量后端: milvus | pgvector
	Backend string `yaml:"backend" mapstructure:"backend"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	// Backend 分段存储后端: r2 | s3 | filesystem | memory
	Backend    string           `yaml:"backend" mapstructure:"backend"`
	Timeout    time.Duration    `yaml:"timeout" mapstructure:"timeout"`
	R2         R2Config         `yaml:"r2" mapstructure:"r2"`
	Filesystem FilesystemConfig `yaml:"filesystem" mapstructure:"filesystem"`
}

// R2Config Cloudflare R2 / S3 兼容存储配置
type R2Config struct {
	AccountID       string `yaml:"account_id" mapstructure:"account_id"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	PublicURL       string `yaml:"public_url" mapstructure:"public_url"`
	Region          string `yaml:"region" mapstructure:"region"`
	// Endpoint 非空时覆盖 R2 默认端点（s3 后端或 MinIO）
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
	KeyPrefix       string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// FilesystemConfig 本地目录存储配置
type FilesystemConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	PublicURL string `yaml:"public_url" mapstructure:"public_url"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider eino | openai | hashing
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// CaptureConfig 录制配置
type CaptureConfig struct {
	RecordingsDir       string        `yaml:"recordings_dir" mapstructure:"recordings_dir"`
	DefaultChunkMinutes int           `yaml:"default_chunk_minutes" mapstructure:"default_chunk_minutes"`
	FFmpegPath          string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	Faststart           bool          `yaml:"faststart" mapstructure:"faststart"`
	PollInterval        time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	StopTimeout         time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
	StreamLabel         string        `yaml:"stream_label" mapstructure:"stream_label"`
	DeleteAfterUpload   bool          `yaml:"delete_after_upload" mapstructure:"delete_after_upload"`
}

// IngestConfig 摄取流水线配置
type IngestConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	QueueSize     int           `yaml:"queue_size" mapstructure:"queue_size"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	StepTimeout   time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	Backoff       BackoffConfig `yaml:"backoff" mapstructure:"backoff"`
	CapacityDelay time.Duration `yaml:"capacity_delay" mapstructure:"capacity_delay"`
	Prompt        string        `yaml:"prompt" mapstructure:"prompt"`
	Provider      string        `yaml:"provider" mapstructure:"provider"`
	// SweepInterval 巡检周期，超过 SweepGrace 未更新的未完成分段会被补交
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	SweepGrace    time.Duration `yaml:"sweep_grace" mapstructure:"sweep_grace"`
	// LeaseTTL 单写者租约有效期，LeaseRetry 为等待租约时的重试间隔
	LeaseTTL      time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	LeaseRetry    time.Duration `yaml:"lease_retry" mapstructure:"lease_retry"`
}

// QueryConfig 查询配置
type QueryConfig struct {
	DefaultResults      int     `yaml:"default_results" mapstructure:"default_results"`
	MaxResults          int     `yaml:"max_results" mapstructure:"max_results"`
	MaxDistance         float64 `yaml:"max_distance" mapstructure:"max_distance"`
	AnalysisMaxDistance float64 `yaml:"analysis_max_distance" mapstructure:"analysis_max_distance"`
	AnalysisProvider    string  `yaml:"analysis_provider" mapstructure:"analysis_provider"`
	StatsMaxMinutes     float64 `yaml:"stats_max_minutes" mapstructure:"stats_max_minutes"`
}

// AlertConfig 告警引擎配置
type AlertConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval          time.Duration `yaml:"interval" mapstructure:"interval"`
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxBatchesPerTick int           `yaml:"max_batches_per_tick" mapstructure:"max_batches_per_tick"`
	MaxDistance       float64       `yaml:"max_distance" mapstructure:"max_distance"`
	LockTTL           time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
	HistoryLimit      int           `yaml:"history_limit" mapstructure:"history_limit"`
	Notify            bool          `yaml:"notify" mapstructure:"notify"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracerConfig 以 service 为服务名的追踪初始化参数
func (c *Config) TracerConfig(service string) tracer.Config {
	t := c.Observability.Tracing
	return tracer.Config{
		ServiceName:    service,
		ServiceVersion: c.App.Version,
		Environment:    c.App.Env,
		Endpoint:       t.Endpoint,
		SampleRate:     t.SampleRate,
		Enabled:        t.Enabled,
	}
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Secret     string        `yaml:"secret" mapstructure:"secret"`
	Issuer     string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration time.Duration `yaml:"expiration" mapstructure:"expiration"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Validate 检查会导致运行期错误的配置组合
func (c *Config) Validate() error {
	if c.Capture.DefaultChunkMinutes < 1 || c.Capture.DefaultChunkMinutes > 60 {
		return fmt.Errorf("capture.default_chunk_minutes must be within [1,60], got %d", c.Capture.DefaultChunkMinutes)
	}
	switch c.Index.Backend {
	case "milvus", "pgvector":
	case "memory":
		// api-gateway 与 ingest-worker 必须共享同一个索引
		return fmt.Errorf("index.backend %q is process-local and cannot be shared between api-gateway and ingest-worker", c.Index.Backend)
	default:
		return fmt.Errorf("unsupported index.backend %q", c.Index.Backend)
	}
	switch c.Storage.Backend {
	case "r2", "s3", "filesystem", "memory":
	default:
		return fmt.Errorf("unsupported storage.backend %q", c.Storage.Backend)
	}
	if c.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("ingest.max_attempts must be positive")
	}
	if c.Query.MaxResults < 1 {
		return fmt.Errorf("query.max_results must be positive")
	}
	if c.Security.JWT.Enabled && c.Security.JWT.Secret == "" {
		return fmt.Errorf("security.jwt.secret is required when auth is enabled")
	}
	return nil
}
