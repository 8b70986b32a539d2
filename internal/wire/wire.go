//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"video-sentinel/internal/config"
	"video-sentinel/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关（带路由器与录制器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		IndexSet,
		ModelSet,
		CaptureSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化摄取 worker（协调器、告警引擎、事件消费者）
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		IndexSet,
		ModelSet,
		WorkerSet,
	)
	return nil, nil, nil
}

// InitializeBootstrap 仅初始化建表所需的客户端（用于 bootstrap）
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		ProvideMilvusClient,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}
