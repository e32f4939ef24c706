package storage

import (
	"context"
	"fmt"
	"strings"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖。
// 未配置的组件保持nil，调用方自行判空降级。
type Storage struct {
	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis

	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ
}

// NewStorage 按配置初始化各存储组件。
// 单个组件失败只记警告，全部失败才返回错误。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var initErrors []string

	if cfg.MySQL.Host != "" {
		mysql, err := NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		} else {
			storage.MySQL = mysql
			logger.Info().Str("host", cfg.MySQL.Host).Msg("MySQL连接成功")
		}
	}

	if cfg.Redis.Address != "" {
		redis, err := NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else {
			storage.Redis = redis
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis连接成功")
		}
	}

	if cfg.MinIO.Endpoint != "" {
		minio, err := NewMinIO(&cfg.MinIO)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败")
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		} else {
			storage.MinIO = minio
			logger.Info().Str("endpoint", cfg.MinIO.Endpoint).Msg("MinIO连接成功")
		}
	}

	if cfg.RabbitMQ.URL != "" {
		rabbitmq, err := NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			storage.RabbitMQ = rabbitmq
			logger.Info().Str("url", cfg.RabbitMQ.URL).Msg("RabbitMQ连接成功")
		}
	}

	configured := cfg.MySQL.Host != "" || cfg.Redis.Address != "" || cfg.MinIO.Endpoint != "" || cfg.RabbitMQ.URL != ""
	if configured && storage.MySQL == nil && storage.Redis == nil && storage.MinIO == nil && storage.RabbitMQ == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	// MinIO客户端无需显式关闭
}
