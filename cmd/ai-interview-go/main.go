package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-interview-go/internal/api/handler"
	"ai-interview-go/internal/api/router"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/embedding"
	"ai-interview-go/internal/engine"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/tracing"

	"ai-interview-go/internal/agent"
	"ai-interview-go/internal/parser"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	initLogger(cfg)
	logger.Info().Str("address", cfg.Server.Address).Msg("配置加载成功")

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

	chatModel, err := agent.NewOpenAIChatModel(&cfg.LLM)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化LLM模型失败")
	}

	eng, err := buildEngine(ctx, cfg, storageManager, chatModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化引擎失败")
	}

	ivStore := buildInterviewStore(cfg, storageManager)
	managerOpts := []interview.ManagerOption{}
	if storageManager.MySQL != nil {
		managerOpts = append(managerOpts, interview.WithDatabase(storageManager.MySQL))
	}
	ivManager, err := interview.NewManager(&cfg.Interview, eng.Index(), chatModel, ivStore, managerOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化面试管理器失败")
	}

	if storageManager.RabbitMQ != nil {
		if err := storageManager.RabbitMQ.SetupIngestTopology(); err != nil {
			logger.Fatal().Err(err).Msg("声明摄取队列拓扑失败")
		}
	}

	chatHandler := handler.NewChatHandler(cfg, eng, storageManager)
	interviewHandler := handler.NewInterviewHandler(cfg, eng, ivManager, storageManager)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, cfg, chatHandler, interviewHandler)
	logger.Info().Msg("HTTP路由注册成功")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}

// initLogger 初始化全局zerolog并把Hertz的hlog接到同一个输出上
func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().Str("app", "ai-interview-go").Logger()

	glog.SetLogger(hertzadapter.From(logger.Logger))
}

// buildEngine 按配置组装向量索引、解析器与引擎
func buildEngine(ctx context.Context, cfg *config.Config, storageManager *storage.Storage, chatModel model.ToolCallingChatModel) (*engine.Engine, error) {
	store, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	idx := index.NewIndex(store, buildEmbedder(cfg), cfg.Vector.TopK)

	splitter, err := parser.NewSplitter(parser.SplitterConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	pdfExtractor, err := parser.NewEinoPDFExtractor(ctx)
	if err != nil {
		return nil, err
	}
	var tikaExtractor *parser.TikaExtractor
	if cfg.Tika.ServerURL != "" {
		tikaExtractor = parser.NewTikaExtractor(&cfg.Tika)
		logger.Info().Str("server", cfg.Tika.ServerURL).Msg("Tika解析器已启用")
	}
	resumeExtractor := parser.NewResumeExtractor(pdfExtractor, tikaExtractor)

	return engine.New(cfg, idx, splitter, pdfExtractor, resumeExtractor, chatModel,
		engine.WithStorage(storageManager),
	)
}

// buildVectorStore 按配置选择qdrant或本地索引后端
func buildVectorStore(cfg *config.Config) (index.VectorStore, error) {
	if cfg.Vector.Backend == "qdrant" {
		logger.Info().Str("endpoint", cfg.Vector.QdrantEndpoint).Msg("使用Qdrant向量后端")
		return index.NewQdrantStore(cfg.Vector.QdrantEndpoint, cfg.Vector.QdrantAPIKey)
	}
	dir := cfg.Vector.LocalDir
	if dir == "" {
		dir = "data/index"
	}
	logger.Info().Str("dir", dir).Msg("使用本地向量后端")
	return index.NewLocalStore(dir)
}

// buildEmbedder 优先用OpenAI兼容的嵌入服务，没有API密钥时退回哈希嵌入
func buildEmbedder(cfg *config.Config) embedding.Embedder {
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}
	if apiKey != "" {
		embedder, err := embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding)
		if err == nil {
			return embedder
		}
		logger.Warn().Err(err).Msg("初始化OpenAI嵌入器失败，退回哈希嵌入")
	} else {
		logger.Warn().Msg("未配置嵌入API密钥，退回哈希嵌入")
	}
	dims := cfg.Embedding.Dimensions
	if dims <= 0 {
		dims = 256
	}
	return embedding.NewHashEmbedder(dims)
}

// buildInterviewStore 按配置选择面试状态的存储后端
func buildInterviewStore(cfg *config.Config, storageManager *storage.Storage) interview.Store {
	if cfg.Interview.SessionStore == "redis" && storageManager.Redis != nil {
		ttl := time.Duration(cfg.Interview.SessionTTLMinutes) * time.Minute
		store, err := interview.NewRedisStore(storageManager.Redis, ttl)
		if err == nil {
			logger.Info().Msg("面试状态使用Redis存储")
			return store
		}
		logger.Warn().Err(err).Msg("初始化Redis面试状态存储失败，退回内存存储")
	}
	return interview.NewMemoryStore()
}
