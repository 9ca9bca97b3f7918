package userdata

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient 创建redis客户端并检查连通性
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.UserData.Redis.Addr,
		Password: cfg.UserData.Redis.Password,
		DB:       cfg.UserData.Redis.DB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, time.Second*2)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisStore 把用户数据保存在一个redis hash中，field为规则名称
type RedisStore struct {
	client  *redis.Client
	hashKey string
}

func NewRedisStore(client *redis.Client, hashKey string) *RedisStore {
	if hashKey == "" {
		hashKey = config.DefaultRedisHashKey
	}
	return &RedisStore{client: client, hashKey: hashKey}
}

func (r *RedisStore) GetKeys(ctx context.Context) ([]string, error) {
	keys, err := r.client.HKeys(ctx, r.hashKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisStore) RemoveByKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.HDel(ctx, r.hashKey, keys...).Err()
}

func (r *RedisStore) Set(ctx context.Context, key string, value string) error {
	return r.client.HSet(ctx, r.hashKey, key, value).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.HGet(ctx, r.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Close 关闭redis连接
func (r *RedisStore) Close() error {
	return r.client.Close()
}
