package wire

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"video-sentinel/internal/application/alert"
	"video-sentinel/internal/application/capture"
	"video-sentinel/internal/application/index"
	"video-sentinel/internal/application/ingest"
	"video-sentinel/internal/application/maintenance"
	"video-sentinel/internal/application/query"
	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/repository"
	infraembedding "video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/llm"
	"video-sentinel/internal/infrastructure/messaging"
	"video-sentinel/internal/infrastructure/persistence/milvus"
	"video-sentinel/internal/infrastructure/persistence/postgres"
	"video-sentinel/internal/infrastructure/persistence/redis"
	"video-sentinel/internal/infrastructure/storage"
	"video-sentinel/internal/infrastructure/vlm"
	"video-sentinel/internal/interfaces/http/handler"
	"video-sentinel/internal/interfaces/http/middleware"
	"video-sentinel/internal/interfaces/http/router"
	"video-sentinel/pkg/logger"
)

// Worker ingest-worker 进程依赖容器
type Worker struct {
	Config      *config.Config
	Coordinator *ingest.Coordinator
	Leader      *ingest.Leader
	AlertEngine *alert.Engine
	Consumer    *messaging.Consumer
}

// Bootstrap 初始化脚本依赖容器
type Bootstrap struct {
	Config       *config.Config
	PgClient     *postgres.Client
	MilvusClient *milvus.Client
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewSegmentRepository,
	postgres.NewIndexRecordRepository,
	postgres.NewAlertRuleRepository,
	postgres.NewAlertTriggerRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.SegmentRepository), new(*postgres.SegmentRepository)),
	wire.Bind(new(repository.IndexRecordRepository), new(*postgres.IndexRecordRepository)),
	wire.Bind(new(repository.AlertRuleRepository), new(*postgres.AlertRuleRepository)),
	wire.Bind(new(repository.AlertTriggerRepository), new(*postgres.AlertTriggerRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	ProvideWatermarkStore,
	wire.Bind(new(infraembedding.Cache), new(*redis.Cache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	wire.Bind(new(repository.WatermarkStore), new(*redis.WatermarkStore)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// IndexSet 目录 + 向量后端
var IndexSet = wire.NewSet(
	ProvideMilvusClient,
	ProvideVectorRepository,
	index.New,
)

// ModelSet 向量化与视觉描述
var ModelSet = wire.NewSet(
	ProvideEmbedder,
	llm.NewRegistry,
	wire.Bind(new(vlm.ModelProvider), new(*llm.Registry)),
	vlm.NewEinoDescriber,
	wire.Bind(new(vlm.Describer), new(*vlm.EinoDescriber)),
)

// CaptureSet 录制器
var CaptureSet = wire.NewSet(
	ProvideSegmenter,
	ProvideRecorder,
	wire.Bind(new(handler.Recorder), new(*capture.Recorder)),
	wire.Bind(new(maintenance.RecordingState), new(*capture.Recorder)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideQueryEngine,
	ProvideRuleService,
	ProvideMaintenanceService,
	handler.NewHealthHandler,
	handler.NewRecordingHandler,
	handler.NewSearchHandler,
	handler.NewAlertHandler,
	handler.NewSegmentHandler,
	ProvideVideoHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// WorkerSet ingest-worker 提供者集合
var WorkerSet = wire.NewSet(
	ProvideSegmentStore,
	ProvideCoordinator,
	ProvideIngestLeader,
	ProvideAlertEngine,
	ProvideIngestConsumer,
	wire.Struct(new(Worker), "*"),
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideWatermarkStore 告警水位线与评估锁
func ProvideWatermarkStore(client *redis.Client, cfg *config.Config) *redis.WatermarkStore {
	return redis.NewWatermarkStore(client, cfg.Alert.LockTTL)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideMilvusClient 仅在 milvus 后端时连接，其他后端返回 nil
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if cfg.Index.Backend != "milvus" {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideVectorRepository 按 index.backend 选择向量后端
func ProvideVectorRepository(ctx context.Context, cfg *config.Config, pg *postgres.Client, mc *milvus.Client) (index.VectorRepository, error) {
	switch cfg.Index.Backend {
	case "milvus":
		repo := milvus.NewSegmentVectorRepository(mc, cfg.Embedding.Dimension)
		if err := repo.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case "", "pgvector":
		return postgres.NewSegmentVectorRepository(pg), nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

// ProvideEmbedder 创建 Embedder，并用 Redis 缓存单条文本向量
func ProvideEmbedder(ctx context.Context, cfg *config.Config, cache infraembedding.Cache) (einoembedding.Embedder, error) {
	inner, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return infraembedding.NewCachedEmbedder(inner, cache, cfg.Embedding.Model, cfg.Embedding.CacheTTL), nil
}

// ProvideSegmentStore 提供分段对象存储
func ProvideSegmentStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	return storage.NewStoreFromConfig(ctx, &cfg.Storage)
}

// ProvideSegmenter 基于 ffmpeg 的分段器
func ProvideSegmenter(cfg *config.Config) capture.Segmenter {
	return capture.NewFFmpegSegmenter(&cfg.Capture)
}

// ProvideRecorder 创建录制器；关闭时停止正在进行的录制
func ProvideRecorder(cfg *config.Config, segmenter capture.Segmenter, segments repository.SegmentRepository, producer *messaging.Producer) (*capture.Recorder, func(), error) {
	if err := os.MkdirAll(cfg.Capture.RecordingsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create recordings dir: %w", err)
	}
	sink := capture.NewRepositorySink(segments, producer, ingest.HandoffPolicy(&cfg.Ingest))
	rec := capture.NewRecorder(segmenter, sink, &cfg.Capture)
	cleanup := func() {
		if !rec.IsRecording() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), rec.StopWait())
		defer cancel()
		if _, err := rec.Stop(ctx); err != nil {
			logger.Error(ctx, "failed to stop recorder on shutdown", err)
		}
	}
	return rec, cleanup, nil
}

// ProvideQueryEngine 提供查询引擎
func ProvideQueryEngine(cfg *config.Config, idx *index.Index, emb einoembedding.Embedder, describer vlm.Describer) *query.Engine {
	return query.NewEngine(idx, emb, describer, query.OptionsFromConfig(cfg))
}

// ProvideRuleService 提供告警规则服务
func ProvideRuleService(cfg *config.Config, rules repository.AlertRuleRepository, triggers repository.AlertTriggerRepository) *alert.RuleService {
	return alert.NewRuleService(rules, triggers, cfg.Alert.HistoryLimit)
}

// ProvideMaintenanceService 提供清库服务
func ProvideMaintenanceService(
	cfg *config.Config,
	recorder maintenance.RecordingState,
	idx *index.Index,
	segments repository.SegmentRepository,
	triggers repository.AlertTriggerRepository,
) *maintenance.Service {
	return maintenance.NewService(recorder, idx, segments, triggers, cfg.Capture.RecordingsDir)
}

// ProvideVideoHandler 本地录像文件服务
func ProvideVideoHandler(cfg *config.Config) *handler.VideoHandler {
	return handler.NewVideoHandler(cfg.Capture.RecordingsDir)
}

// ProvideCoordinator 提供摄取协调器
func ProvideCoordinator(
	cfg *config.Config,
	segments repository.SegmentRepository,
	store storage.Store,
	describer vlm.Describer,
	emb einoembedding.Embedder,
	idx *index.Index,
) *ingest.Coordinator {
	return ingest.NewCoordinator(segments, store, describer, emb, idx, ingest.OptionsFromConfig(cfg))
}

// ProvideIngestLeader 摄取 worker 选主，同一时刻只有一个实例写索引
func ProvideIngestLeader(cfg *config.Config, client *redis.Client) *ingest.Leader {
	store := redis.NewLeaseStore(client, ingestLeaseKey)
	return ingest.NewLeader(store, cfg.Ingest.LeaseTTL, cfg.Ingest.LeaseRetry)
}

const ingestLeaseKey = "ingest:leader"

// ProvideAlertEngine 提供告警引擎；alert.notify 开启时投递到 Redis Stream
func ProvideAlertEngine(
	cfg *config.Config,
	idx *index.Index,
	rules repository.AlertRuleRepository,
	triggers repository.AlertTriggerRepository,
	watermark repository.WatermarkStore,
	tx repository.Transactor,
	emb einoembedding.Embedder,
	producer *messaging.Producer,
) *alert.Engine {
	var notifier alert.Notifier
	if cfg.Alert.Notify {
		notifier = producer
	}
	return alert.NewEngine(idx, rules, triggers, watermark, tx, emb, notifier, alert.OptionsFromConfig(&cfg.Alert))
}

// ProvideIngestConsumer 订阅 segment_closed 事件并交给协调器
func ProvideIngestConsumer(cfg *config.Config, redisClient *redis.Client, coord *ingest.Coordinator) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamSegmentClosed,
		Group:         messaging.ConsumerGroupIngest.WithPrefix(rs.ConsumerGroupPrefix),
		ConsumerName:  consumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(rs.RetryBackoff),
	})
	consumer.RegisterHandler(messaging.TypeSegmentClosed, coord.HandleSegmentClosed)
	return consumer
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
