// Package postgres 基于 GORM 的 PostgreSQL 持久化：分段、索引记录、告警规则与触发记录
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"video-sentinel/internal/config"
	"video-sentinel/pkg/logger"
)

var tracer = otel.Tracer("postgres")

const pingTimeout = 5 * time.Second

// Client PostgreSQL 客户端
type Client struct {
	db *gorm.DB
}

// NewClient 打开连接池并验证连通性
func NewClient(cfg *config.PostgresConfig) (*Client, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: newGormLogger(cfg.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Client{db: db}, nil
}

// DSN 构造 libpq 格式连接串
func DSN(cfg *config.PostgresConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// Close 关闭连接池
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 执行 SELECT 1
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HealthCheck")
	defer span.End()

	var one int
	if err := c.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

// slogWriter 把 GORM 日志转到全局 slog
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	logger.Default().Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

// newGormLogger 只输出慢查询与错误
func newGormLogger(slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = time.Second
	}
	return gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
