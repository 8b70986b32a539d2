// Package main 摄取 worker 入口（segment_closed 消费 + 告警引擎）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"video-sentinel/internal/config"
	einocb "video-sentinel/internal/infrastructure/eino/callback"
	"video-sentinel/internal/wire"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/tracer"

	"github.com/joho/godotenv"
)

const dlqAlertThreshold = 100

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, cfg.TracerConfig("ingest-worker"))
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	einocb.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// 索引顺序与告警水位线依赖单写者，拿到租约后才开始消费
	lease, err := worker.Leader.Acquire(sigCtx)
	if err != nil {
		logger.Info(ctx, "ingest-worker stopped before acquiring the lease")
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			logger.Error(releaseCtx, "failed to release ingest lease", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 先启动 worker，再补交上次未完成的分段；巡检周期性补交交接失败的分段
	worker.Coordinator.Start(runCtx)
	if _, err := worker.Coordinator.Resume(runCtx); err != nil {
		logger.Fatal(ctx, "failed to resume unfinished segments", err)
	}

	if err := worker.Consumer.Start(runCtx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(runCtx, dlqAlertThreshold)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Coordinator.RunSweeper(runCtx)
	}()
	if cfg.Alert.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.AlertEngine.Run(runCtx)
		}()
	}

	log := logger.FromContext(ctx)
	log.Info("ingest-worker started",
		"index_backend", cfg.Index.Backend,
		"storage_backend", cfg.Storage.Backend,
		"alert_enabled", cfg.Alert.Enabled,
	)

	select {
	case <-sigCtx.Done():
		log.Info("ingest-worker shutting down")
	case <-lease.Lost():
		log.Error("ingest lease lost, shutting down")
	}
	worker.Consumer.Stop()
	cancel()
	wg.Wait()

	// 已提交的分段处理完再退出，未完成的下次启动时 Resume
	drainCtx, stop := context.WithTimeout(context.Background(), 2*time.Minute)
	defer stop()
	if err := worker.Coordinator.Close(drainCtx); err != nil {
		log.Error("ingest coordinator did not drain", "error", err)
	}
	log.Info("ingest-worker exited")
}
