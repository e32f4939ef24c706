package storage

import (
	"context"
	"fmt"
	"time"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/constants"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound 键不存在，包装redis.Nil以便上层用errors.Is判断
var ErrNotFound = redis.Nil

// Redis 包装Redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis添加OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// md5ExpireDuration 上传去重记录的过期时间
func (r *Redis) md5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// AddUploadMD5 把上传文件的MD5加入去重集合并续期
func (r *Redis) AddUploadMD5(ctx context.Context, md5Hex string) error {
	pipe := r.Client.Pipeline()
	pipe.SAdd(ctx, constants.UploadFileMD5SetKey, md5Hex)
	pipe.ExpireNX(ctx, constants.UploadFileMD5SetKey, r.md5ExpireDuration())
	_, err := pipe.Exec(ctx)
	return err
}

// CheckUploadMD5Exists 检查上传文件的MD5是否已经出现过
func (r *Redis) CheckUploadMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	return r.Client.SIsMember(ctx, constants.UploadFileMD5SetKey, md5Hex).Result()
}

// SaveInterviewState 保存面试会话的序列化状态。
// 序列化格式由调用方决定，这里只管字节与过期时间。
func (r *Redis) SaveInterviewState(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	key := constants.InterviewSessionKeyPrefix + sessionID
	return r.Client.Set(ctx, key, payload, ttl).Err()
}

// LoadInterviewState 读取面试会话的序列化状态，键不存在时返回ErrNotFound
func (r *Redis) LoadInterviewState(ctx context.Context, sessionID string) ([]byte, error) {
	key := constants.InterviewSessionKeyPrefix + sessionID
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteInterviewState 删除面试会话状态，键不存在时也视为成功
func (r *Redis) DeleteInterviewState(ctx context.Context, sessionID string) error {
	key := constants.InterviewSessionKeyPrefix + sessionID
	return r.Client.Del(ctx, key).Err()
}
