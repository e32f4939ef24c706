package engine

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ingestTracer = otel.Tracer("ai-interview-go/engine/ingest")

// IngestPDF 摄取一份上传的PDF，建立新会话的向量索引
func (e *Engine) IngestPDF(ctx context.Context, userID, filename string, data []byte) (*types.IngestResult, error) {
	ctx, span := ingestTracer.Start(ctx, "Engine.IngestPDF", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("source.name", filename))

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	e.recordUploadMD5(ctx, data, filename)

	units, err := e.pdf.ExtractUnits(ctx, bytes.NewReader(data), filename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	chunks := e.splitter.Split(units)
	if err := e.idx.Build(ctx, sessionID, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	archivePath := e.archiveOriginal(ctx, sessionID, filename, data)
	e.recordChatSession(ctx, &models.ChatSession{
		SessionID:   sessionID,
		UserID:      userID,
		SourceType:  constants.SourceTypePDF,
		SourceName:  filename,
		ChunkCount:  len(chunks),
		ArchivePath: archivePath,
	})

	return &types.IngestResult{
		SessionID:  sessionID,
		SourceName: filename,
		ChunkCount: len(chunks),
	}, nil
}

// IngestYouTube 摄取一个视频的字幕，建立新会话的向量索引
func (e *Engine) IngestYouTube(ctx context.Context, userID, videoURL string) (*types.IngestResult, error) {
	ctx, span := ingestTracer.Start(ctx, "Engine.IngestYouTube", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("source.url", videoURL))

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	units, err := e.youtube.ExtractUnits(ctx, videoURL)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	chunks := e.splitter.Split(units)
	if err := e.idx.Build(ctx, sessionID, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	e.recordChatSession(ctx, &models.ChatSession{
		SessionID:  sessionID,
		UserID:     userID,
		SourceType: constants.SourceTypeYouTube,
		SourceName: videoURL,
		ChunkCount: len(chunks),
	})

	return &types.IngestResult{
		SessionID:  sessionID,
		SourceName: videoURL,
		ChunkCount: len(chunks),
	}, nil
}

// IngestRepo 同步摄取一个GitHub仓库，建立新会话的向量索引
func (e *Engine) IngestRepo(ctx context.Context, userID, repoURL string) (*types.IngestResult, error) {
	ctx, span := ingestTracer.Start(ctx, "Engine.IngestRepo", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("source.url", repoURL))

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	result, err := e.ingestRepoIntoSession(ctx, sessionID, repoURL)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	e.recordChatSession(ctx, &models.ChatSession{
		SessionID:  sessionID,
		UserID:     userID,
		SourceType: constants.SourceTypeGitHub,
		SourceName: repoURL,
		ChunkCount: result.ChunkCount,
	})
	return result, nil
}

// EnqueueRepoIngest 把仓库摄取任务发到队列，立即返回会话ID。
// 索引由摄取worker异步建立，建成之前对该会话提问会得到会话不存在。
func (e *Engine) EnqueueRepoIngest(ctx context.Context, userID, repoURL string) (*types.IngestResult, error) {
	if e.store == nil || e.store.RabbitMQ == nil {
		return nil, fmt.Errorf("消息队列未配置，无法异步摄取")
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}

	e.recordChatSession(ctx, &models.ChatSession{
		SessionID:  sessionID,
		UserID:     userID,
		SourceType: constants.SourceTypeGitHub,
		SourceName: repoURL,
	})

	job := &storage.IngestJob{SessionID: sessionID, UserID: userID, RepoURL: repoURL}
	if err := e.store.RabbitMQ.PublishIngestJob(ctx, job); err != nil {
		return nil, fmt.Errorf("发布摄取任务失败: %w", err)
	}

	return &types.IngestResult{SessionID: sessionID, SourceName: repoURL}, nil
}

// ProcessRepoJob 摄取worker的任务入口：为既有会话建立仓库索引
func (e *Engine) ProcessRepoJob(ctx context.Context, job *storage.IngestJob) error {
	ctx, span := ingestTracer.Start(ctx, "Engine.ProcessRepoJob", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", job.SessionID),
		attribute.String("source.url", job.RepoURL),
	)

	result, err := e.ingestRepoIntoSession(ctx, job.SessionID, job.RepoURL)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return err
	}

	if e.store != nil && e.store.MySQL != nil {
		if err := e.store.MySQL.UpdateChatSessionChunkCount(ctx, job.SessionID, result.ChunkCount); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("session_id", job.SessionID).Msg("回填会话分块数失败")
		}
	}
	return nil
}

// ingestRepoIntoSession 克隆仓库、分块并为指定会话建立索引
func (e *Engine) ingestRepoIntoSession(ctx context.Context, sessionID, repoURL string) (*types.IngestResult, error) {
	units, err := e.repo.ExtractUnits(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	chunks := e.splitter.Split(units)
	if err := e.idx.Build(ctx, sessionID, chunks); err != nil {
		return nil, err
	}

	return &types.IngestResult{
		SessionID:  sessionID,
		SourceName: repoURL,
		ChunkCount: len(chunks),
	}, nil
}

// IngestResume 摄取一份简历并递归摄取其中的GitHub仓库，
// 为面试会话建立向量索引。单个仓库克隆失败只跳过，不影响整体。
func (e *Engine) IngestResume(ctx context.Context, userID, filename string, data []byte) (*types.IngestResult, error) {
	ctx, span := ingestTracer.Start(ctx, "Engine.IngestResume", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("source.name", filename))

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	e.recordUploadMD5(ctx, data, filename)

	resumeUnit, repoLinks, err := e.resume.Extract(ctx, data, filename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	units := []types.SourceUnit{resumeUnit}
	maxRepos := e.cfg.Ingest.MaxLinkedRepos
	if maxRepos > 0 && len(repoLinks) > maxRepos {
		logger.Ctx(ctx).Warn().
			Int("found", len(repoLinks)).
			Int("limit", maxRepos).
			Msg("简历中的仓库超出上限，只摄取前若干个")
		repoLinks = repoLinks[:maxRepos]
	}

	var linkedRepos []string
	for _, repoURL := range repoLinks {
		repoUnits, err := e.repo.ExtractUnits(ctx, repoURL)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("repo_url", repoURL).Msg("摄取简历中的仓库失败，跳过")
			continue
		}
		units = append(units, repoUnits...)
		linkedRepos = append(linkedRepos, repoURL)
	}
	span.SetAttributes(attribute.Int("linked_repos", len(linkedRepos)))

	chunks := e.splitter.Split(units)
	if err := e.idx.Build(ctx, sessionID, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	archivePath := e.archiveOriginal(ctx, sessionID, filename, data)
	e.recordInterviewSession(ctx, sessionID, userID, filename, archivePath, data, linkedRepos)

	return &types.IngestResult{
		SessionID:   sessionID,
		SourceName:  filename,
		ChunkCount:  len(chunks),
		LinkedRepos: linkedRepos,
		ResumeText:  resumeUnit.Text,
	}, nil
}

// DeleteSession 删除会话的全部持久化状态
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if err := e.idx.Delete(ctx, sessionID); err != nil {
		return err
	}
	if e.store != nil && e.store.MySQL != nil {
		if err := e.store.MySQL.DeleteChatSession(ctx, sessionID); err != nil {
			return fmt.Errorf("删除会话记录失败: %w", err)
		}
	}
	return nil
}

// recordUploadMD5 计算并记录上传内容的MD5，命中重复只做提示
func (e *Engine) recordUploadMD5(ctx context.Context, data []byte, filename string) {
	if e.store == nil || e.store.Redis == nil {
		return
	}
	sum := md5.Sum(data)
	md5Hex := hex.EncodeToString(sum[:])

	exists, err := e.store.Redis.CheckUploadMD5Exists(ctx, md5Hex)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("检查上传MD5失败")
		return
	}
	if exists {
		logger.Ctx(ctx).Info().Str("filename", filename).Str("md5", md5Hex).Msg("重复上传相同内容的文件")
	}
	if err := e.store.Redis.AddUploadMD5(ctx, md5Hex); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("记录上传MD5失败")
	}
}

// archiveOriginal 把原始上传文件归档到对象存储，失败只记警告
func (e *Engine) archiveOriginal(ctx context.Context, sessionID, filename string, data []byte) string {
	if e.store == nil || e.store.MinIO == nil {
		return ""
	}
	objectName, err := e.store.MinIO.UploadOriginal(ctx, sessionID, filename, data)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("归档原始文件失败")
		return ""
	}
	return objectName
}

// recordChatSession 落库会话记录，失败时回收已建好的索引避免悬空状态
func (e *Engine) recordChatSession(ctx context.Context, session *models.ChatSession) {
	if e.store == nil || e.store.MySQL == nil {
		return
	}
	if err := e.store.MySQL.CreateChatSession(ctx, session); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("session_id", session.SessionID).Msg("写入会话记录失败")
	}
}

// recordInterviewSession 落库面试会话记录
func (e *Engine) recordInterviewSession(ctx context.Context, sessionID, userID, filename, archivePath string, data []byte, repos []string) {
	if e.store == nil || e.store.MySQL == nil {
		return
	}
	sum := md5.Sum(data)
	reposJSON, err := models.StringsToJSON(repos)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("序列化仓库列表失败")
	}
	session := &models.InterviewSession{
		SessionID:       sessionID,
		UserID:          userID,
		ResumeFilename:  filename,
		ResumeMD5:       hex.EncodeToString(sum[:]),
		ArchivePath:     archivePath,
		GithubReposJSON: reposJSON,
		Status:          "ACTIVE",
	}
	if err := e.store.MySQL.CreateInterviewSession(ctx, session); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("写入面试会话记录失败")
	}
}
