package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("ai-interview-go/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为数据库操作添加OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

// before 在GORM操作前开启span
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 在GORM操作后结束span并记录结果
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 记录不存在属于业务正常分支
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}
	return m, nil
}

// autoMigrateSchema 自动迁移表结构，迁移期间关闭SQL日志
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	return silentDB.AutoMigrate(
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.InterviewSession{},
		&models.InterviewConversation{},
		&models.InterviewFeedback{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateChatSession 创建对话会话记录
func (m *MySQL) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	return m.db.WithContext(ctx).Create(session).Error
}

// GetChatSession 按会话ID和所属用户查询会话，不存在时返回gorm.ErrRecordNotFound。
// 其他用户的会话与不存在的会话不可区分。
func (m *MySQL) GetChatSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := m.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListChatSessions 按创建时间倒序列出用户的全部对话会话
func (m *MySQL) ListChatSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// UpdateChatSessionChunkCount 更新会话的分块数，异步摄取完成后回填
func (m *MySQL) UpdateChatSessionChunkCount(ctx context.Context, sessionID string, chunkCount int) error {
	return m.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("session_id = ?", sessionID).
		Update("chunk_count", chunkCount).Error
}

// AppendChatTurn 在一个事务里按序落库一问一答。
// 答案生成失败时不调用本方法，保证不会出现无回答的悬空提问。
func (m *MySQL) AppendChatTurn(ctx context.Context, sessionID, question, answer string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.AppendChatTurn", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.sql.table", "chat_messages"),
		attribute.String("session.id", sessionID),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().Local()
		userMsg := models.ChatMessage{SessionID: sessionID, Role: "user", Content: question, CreatedAt: now}
		if err := tx.Create(&userMsg).Error; err != nil {
			return err
		}
		// 回答的时间戳严格晚于提问，保证按created_at排序即对话顺序
		aiMsg := models.ChatMessage{SessionID: sessionID, Role: "ai", Content: answer, CreatedAt: now.Add(time.Microsecond)}
		return tx.Create(&aiMsg).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("写入对话消息失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetChatMessages 按创建顺序取出会话的全部消息
func (m *MySQL) GetChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := m.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, message_id ASC").
		Find(&messages).Error
	return messages, err
}

// DeleteChatSession 删除会话及其全部消息
func (m *MySQL) DeleteChatSession(ctx context.Context, sessionID string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&models.ChatSession{}).Error
	})
}

// CreateInterviewSession 创建面试会话记录
func (m *MySQL) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	return m.db.WithContext(ctx).Create(session).Error
}

// GetInterviewSession 按会话ID和所属用户查询面试会话
func (m *MySQL) GetInterviewSession(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := m.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListInterviewSessions 按创建时间倒序列出用户的全部面试会话
func (m *MySQL) ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// UpdateInterviewStatus 更新面试会话状态
func (m *MySQL) UpdateInterviewStatus(ctx context.Context, sessionID, status string) error {
	return m.db.WithContext(ctx).
		Model(&models.InterviewSession{}).
		Where("session_id = ?", sessionID).
		Update("status", status).Error
}

// AppendInterviewQuestion 落库一个新提问，回答留空待提交
func (m *MySQL) AppendInterviewQuestion(ctx context.Context, sessionID, section, question string) (uint64, error) {
	turn := models.InterviewConversation{
		SessionID: sessionID,
		Section:   section,
		Question:  question,
	}
	if err := m.db.WithContext(ctx).Create(&turn).Error; err != nil {
		return 0, fmt.Errorf("写入面试提问失败: %w", err)
	}
	return turn.TurnID, nil
}

// FillInterviewAnswer 为最近一个未回答的提问补上回答
func (m *MySQL) FillInterviewAnswer(ctx context.Context, sessionID, answer string) error {
	var turn models.InterviewConversation
	err := m.db.WithContext(ctx).
		Where("session_id = ? AND (answer IS NULL OR answer = '')", sessionID).
		Order("created_at DESC, turn_id DESC").
		First(&turn).Error
	if err != nil {
		return fmt.Errorf("找不到待回答的提问: %w", err)
	}
	return m.db.WithContext(ctx).
		Model(&models.InterviewConversation{}).
		Where("turn_id = ?", turn.TurnID).
		Update("answer", answer).Error
}

// GetInterviewConversations 按创建顺序取出面试会话的全部问答
func (m *MySQL) GetInterviewConversations(ctx context.Context, sessionID string) ([]models.InterviewConversation, error) {
	var turns []models.InterviewConversation
	err := m.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, turn_id ASC").
		Find(&turns).Error
	return turns, err
}

// SaveInterviewFeedback 保存面试反馈报告，一个会话只保留一条
func (m *MySQL) SaveInterviewFeedback(ctx context.Context, feedback *models.InterviewFeedback) error {
	return m.db.WithContext(ctx).Create(feedback).Error
}

// GetInterviewFeedback 取出面试反馈报告
func (m *MySQL) GetInterviewFeedback(ctx context.Context, sessionID string) (*models.InterviewFeedback, error) {
	var feedback models.InterviewFeedback
	err := m.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&feedback).Error
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}
