// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 configs 目录加载配置
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 加载指定目录下的配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// 执行环境变量替换
	expanded := expandEnv(string(content))

	// 加载到 viper
	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		val, ok := os.LookupEnv(key)
		if ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match // 保留原样以便识别未定义的变量
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "video-sentinel")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.time_zone", "Local")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8000)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "0s") // 视频与分析请求可能很长
	v.SetDefault("server.http.idle_timeout", "120s")

	// 数据库默认值
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "video_sentinel")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")
	v.SetDefault("database.postgres.slow_threshold", "500ms")

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 20)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// Milvus 默认值
	v.SetDefault("vector.milvus.host", "localhost")
	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "video_sentinel")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)
	v.SetDefault("vector.milvus.search_ef", 128)

	v.SetDefault("index.backend", "milvus")

	// 分段存储默认值
	v.SetDefault("storage.backend", "r2")
	v.SetDefault("storage.timeout", "5m")
	v.SetDefault("storage.r2.region", "auto")
	v.SetDefault("storage.filesystem.root", "uploads")

	// LLM 默认值
	v.SetDefault("llm.default_provider", "ingest")

	// Embedding 默认值
	v.SetDefault("embedding.provider", "eino")
	v.SetDefault("embedding.model", "text-embedding-v3")
	v.SetDefault("embedding.dimension", 1024)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.cache_ttl", "24h")

	// 消息队列默认值
	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "cg")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 5)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "1m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	// 录制默认值
	v.SetDefault("capture.recordings_dir", "recordings")
	v.SetDefault("capture.default_chunk_minutes", 10)
	v.SetDefault("capture.ffmpeg_path", "ffmpeg")
	v.SetDefault("capture.faststart", true)
	v.SetDefault("capture.poll_interval", "2s")
	v.SetDefault("capture.stop_timeout", "15s")

	// 摄取默认值
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_size", 64)
	v.SetDefault("ingest.max_attempts", 5)
	v.SetDefault("ingest.step_timeout", "5m")
	v.SetDefault("ingest.backoff.initial", "2s")
	v.SetDefault("ingest.backoff.max", "1m")
	v.SetDefault("ingest.backoff.multiplier", 2.0)
	v.SetDefault("ingest.capacity_delay", "30s")
	v.SetDefault("ingest.provider", "ingest")
	v.SetDefault("ingest.sweep_interval", "1m")
	v.SetDefault("ingest.sweep_grace", "5m")
	v.SetDefault("ingest.lease_ttl", "30s")
	v.SetDefault("ingest.lease_retry", "10s")

	// 查询默认值
	v.SetDefault("query.default_results", 5)
	v.SetDefault("query.max_results", 25)
	v.SetDefault("query.max_distance", 0.70)
	v.SetDefault("query.analysis_max_distance", 0.70)
	v.SetDefault("query.analysis_provider", "analyze")
	v.SetDefault("query.stats_max_minutes", 1440)

	// 告警默认值
	v.SetDefault("alert.enabled", true)
	v.SetDefault("alert.interval", "30s")
	v.SetDefault("alert.batch_size", 100)
	v.SetDefault("alert.max_batches_per_tick", 10)
	v.SetDefault("alert.max_distance", 0.60)
	v.SetDefault("alert.lock_ttl", "2m")
	v.SetDefault("alert.history_limit", 1000)
	v.SetDefault("alert.notify", true)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.jwt.enabled", true)
	v.SetDefault("security.jwt.issuer", "video-sentinel")
	v.SetDefault("security.jwt.expiration", "168h")
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
	v.SetDefault("security.rate_limit.burst", 40)
}
