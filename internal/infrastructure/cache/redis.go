package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore Redis型本地缓存
// 设计说明：
// 1. 门店内网部署一台Redis时，多个收银终端可以共享同一份本地快照
// 2. 接口语义仍是localStorage式的：读写短超时、失败吞掉记日志，
//    Redis不可用时系统退化为纯内存工作集，不影响业务操作
// 3. 键不设TTL：快照是备份，不是可过期的缓存
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// 单次读写的超时上限，缓存操作不允许拖住业务操作
const redisOpTimeout = 2 * time.Second

// NewRedisStore 创建Redis缓存并测试连通性
func NewRedisStore(client *redis.Client, prefix string, log *zap.Logger) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, prefix: prefix, log: log}, nil
}

func (s *RedisStore) GetItem(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error("读取Redis缓存失败", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (s *RedisStore) SetItem(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.log.Error("写入Redis缓存失败", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) RemoveItem(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.log.Error("删除Redis缓存失败", zap.String("key", key), zap.Error(err))
	}
}
