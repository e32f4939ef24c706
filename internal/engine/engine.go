package engine

import (
	"fmt"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/parser"
	"ai-interview-go/internal/storage"

	"github.com/cloudwego/eino/components/model"
	"github.com/gofrs/uuid/v5"
)

// Engine 内容摄取与检索问答的核心流程。
// 每次摄取产生一个独立会话：提取、分块、建索引一次完成，此后索引只读。
type Engine struct {
	cfg       *config.Config
	idx       *index.Index
	splitter  *parser.Splitter
	pdf       *parser.EinoPDFExtractor
	youtube   *parser.YouTubeExtractor
	repo      *parser.RepoExtractor
	resume    *parser.ResumeExtractor
	chatModel model.ToolCallingChatModel
	store     *storage.Storage
}

// Option Engine构造选项
type Option func(*Engine)

// WithStorage 注入存储管理器，缺省时落库、归档与去重全部跳过
func WithStorage(store *storage.Storage) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithYouTubeExtractor 覆盖字幕提取器，测试时指向本地服务
func WithYouTubeExtractor(extractor *parser.YouTubeExtractor) Option {
	return func(e *Engine) {
		e.youtube = extractor
	}
}

// WithRepoExtractor 覆盖仓库提取器
func WithRepoExtractor(extractor *parser.RepoExtractor) Option {
	return func(e *Engine) {
		e.repo = extractor
	}
}

// New 创建引擎
func New(cfg *config.Config, idx *index.Index, splitter *parser.Splitter,
	pdf *parser.EinoPDFExtractor, resume *parser.ResumeExtractor,
	chatModel model.ToolCallingChatModel, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if idx == nil || splitter == nil {
		return nil, fmt.Errorf("索引与分块器不能为空")
	}

	e := &Engine{
		cfg:       cfg,
		idx:       idx,
		splitter:  splitter,
		pdf:       pdf,
		resume:    resume,
		chatModel: chatModel,
		youtube:   parser.NewYouTubeExtractor(),
		repo:      parser.NewRepoExtractor(&cfg.Ingest),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Index 暴露索引管理器，面试流程复用同一个实例
func (e *Engine) Index() *index.Index {
	return e.idx
}

// newSessionID 生成时间有序的会话标识
func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成会话ID失败: %w", err)
	}
	return id.String(), nil
}
