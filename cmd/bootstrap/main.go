package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"video-sentinel/internal/config"
	"video-sentinel/internal/infrastructure/persistence/milvus"
	"video-sentinel/internal/wire"
	"video-sentinel/pkg/utils"
)

const tokenTTL = 7 * 24 * time.Hour

func main() {
	issueToken := flag.String("issue-token", "", "mint a bearer token for the given subject and exit")
	role := flag.String("role", utils.RoleOperator, "role claim for -issue-token (operator|viewer)")
	flag.Parse()

	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *issueToken != "" {
		mintToken(cfg, *issueToken, *role)
		return
	}

	fmt.Println("Starting system bootstrap...")
	ctx := context.Background()

	// 2. 初始化客户端（PostgreSQL + 可选 Milvus）
	deps, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize clients: %v", err)
	}
	defer cleanup()

	// 3. 目录表
	if err := deps.PgClient.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate catalog: %v", err)
	}
	fmt.Println("Catalog tables are up to date.")

	// 4. 向量后端
	switch cfg.Index.Backend {
	case "milvus":
		repo := milvus.NewSegmentVectorRepository(deps.MilvusClient, cfg.Embedding.Dimension)
		if err := repo.EnsureCollection(ctx); err != nil {
			log.Fatalf("failed to ensure milvus collection: %v", err)
		}
		fmt.Printf("Milvus collection %s is ready.\n", deps.MilvusClient.CollectionName(milvus.CollectionSegments))
	case "", "pgvector":
		if err := deps.PgClient.MigrateVector(ctx, cfg.Embedding.Dimension); err != nil {
			log.Fatalf("failed to migrate pgvector schema: %v", err)
		}
		fmt.Println("pgvector table segment_embeddings is ready.")
	default:
		fmt.Printf("Index backend %q needs no vector schema.\n", cfg.Index.Backend)
	}

	fmt.Println("Bootstrap completed successfully.")
}

// mintToken 签发运维令牌，供 API 鉴权使用
func mintToken(cfg *config.Config, subject, role string) {
	if role != utils.RoleOperator && role != utils.RoleViewer {
		log.Fatalf("unsupported role %q", role)
	}
	if cfg.Security.JWT.Secret == "" {
		log.Fatalf("security.jwt.secret is not configured")
	}
	m := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	token, err := m.GenerateToken(subject, role, tokenTTL)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
