package userdata

import (
	"context"
	"fmt"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/sirupsen/logrus"
)

// Store 按规则名称保存用户数据
type Store interface {
	GetKeys(ctx context.Context) ([]string, error)
	RemoveByKeys(ctx context.Context, keys []string) error
	Set(ctx context.Context, key string, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// NewStore 根据配置创建用户数据存储，redis不可用时退回到内存存储
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.UserData.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"addr":  cfg.UserData.Redis.Addr,
				"error": err.Error(),
			}).Warn("Redis unavailable, falling back to memory user data store")
			return NewMemoryStore(), nil
		}
		return NewRedisStore(client, cfg.UserData.Redis.HashKey), nil
	default:
		return nil, fmt.Errorf("unsupported user data backend: %s", cfg.UserData.Backend)
	}
}
