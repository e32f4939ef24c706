package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/embedding"
	"ai-interview-go/internal/engine"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/parser"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// 仓库摄取worker：消费摄取队列，为已登记的会话克隆仓库并建立索引。
// 与HTTP服务共用同一套向量后端配置，两边必须指向同一个索引存储。
func main() {
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().Str("app", "ai-interview-ingestworker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, &cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if storageManager.RabbitMQ == nil {
		logger.Fatal().Msg("RabbitMQ未配置，摄取worker无法启动")
	}

	eng, err := buildWorkerEngine(cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化引擎失败")
	}

	if err := storageManager.RabbitMQ.SetupIngestTopology(); err != nil {
		logger.Fatal().Err(err).Msg("声明摄取队列拓扑失败")
	}

	prefetch := cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}
	stopCh, err := storageManager.RabbitMQ.StartConsumer(cfg.RabbitMQ.IngestQueue, prefetch, func(body []byte) bool {
		var job storage.IngestJob
		if err := json.Unmarshal(body, &job); err != nil {
			// 坏消息直接确认掉，重新入队只会无限循环
			logger.Error().Err(err).Msg("解析摄取任务失败，丢弃消息")
			return true
		}

		jobLogger := logger.Logger.With().
			Str("session_id", job.SessionID).
			Str("repo_url", job.RepoURL).
			Logger()
		jobCtx := jobLogger.WithContext(context.Background())

		if err := eng.ProcessRepoJob(jobCtx, &job); err != nil {
			jobLogger.Error().Err(err).Msg("仓库摄取任务失败，丢弃消息")
			// 克隆或建索引失败基本是确定性错误，重试大概率还是失败
			return true
		}
		jobLogger.Info().Msg("仓库摄取任务完成")
		return true
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("启动摄取消费者失败")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在停止消费者...")
	close(stopCh)
	logger.Info().Msg("摄取worker已退出")
}

// buildWorkerEngine 组装worker用的引擎。
// worker只建索引不生成回答，不需要LLM模型。
func buildWorkerEngine(cfg *config.Config, storageManager *storage.Storage) (*engine.Engine, error) {
	var store index.VectorStore
	var err error
	if cfg.Vector.Backend == "qdrant" {
		store, err = index.NewQdrantStore(cfg.Vector.QdrantEndpoint, cfg.Vector.QdrantAPIKey)
	} else {
		dir := cfg.Vector.LocalDir
		if dir == "" {
			dir = "data/index"
		}
		store, err = index.NewLocalStore(dir)
	}
	if err != nil {
		return nil, err
	}

	var embedder embedding.Embedder
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}
	if apiKey != "" {
		embedder, err = embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding)
		if err != nil {
			return nil, err
		}
	} else {
		dims := cfg.Embedding.Dimensions
		if dims <= 0 {
			dims = 256
		}
		logger.Warn().Msg("未配置嵌入API密钥，退回哈希嵌入")
		embedder = embedding.NewHashEmbedder(dims)
	}
	idx := index.NewIndex(store, embedder, cfg.Vector.TopK)

	splitter, err := parser.NewSplitter(parser.SplitterConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	return engine.New(cfg, idx, splitter, nil, nil, nil,
		engine.WithStorage(storageManager),
	)
}
