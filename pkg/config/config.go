package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 用户数据存储后端
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	DefaultRedisHashKey  = "metadata:internal_hashed_user_data"
	DefaultRedisAddr     = "localhost:6379"
	DefaultRuleBuffer    = 8
	DefaultAPIPort       = "8080"
	DefaultLogFilename   = "metadata_rule_matcher.log"
	DefaultLogMaxAge     = 24 // 小时
	DefaultLogRotateTime = 1  // 小时
)

type Config struct {
	Log struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		Filename   string `yaml:"filename"`
		MaxAge     int    `yaml:"max_age"`
		RotateTime int    `yaml:"rotate_time"`
	} `yaml:"log"`

	Rules struct {
		PayloadFile string `yaml:"payload_file"` // 规则配置文件，json或yaml
		Watch       bool   `yaml:"watch"`        // 文件变化时重新下发
		BufferSize  int    `yaml:"buffer_size"`
	} `yaml:"rules"`

	UserData struct {
		Backend string `yaml:"backend"` // memory/redis
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			HashKey  string `yaml:"hash_key"`
		} `yaml:"redis"`
	} `yaml:"user_data"`

	API struct {
		Enable bool   `yaml:"enable"`
		Host   string `yaml:"host"`
		Port   string `yaml:"port"`
	} `yaml:"api"`
}

// SetDefaults 填充未配置的字段
func (c *Config) SetDefaults() {
	if c.Log.Filename == "" {
		c.Log.Filename = DefaultLogFilename
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = DefaultLogMaxAge
	}
	if c.Log.RotateTime <= 0 {
		c.Log.RotateTime = DefaultLogRotateTime
	}
	if c.Rules.BufferSize <= 0 {
		c.Rules.BufferSize = DefaultRuleBuffer
	}
	if c.UserData.Backend == "" {
		c.UserData.Backend = BackendMemory
	}
	if c.UserData.Redis.Addr == "" {
		c.UserData.Redis.Addr = DefaultRedisAddr
	}
	if c.UserData.Redis.HashKey == "" {
		c.UserData.Redis.HashKey = DefaultRedisHashKey
	}
	if c.API.Port == "" {
		c.API.Port = DefaultAPIPort
	}
}

func (c *Config) Validate() error {
	if c.Rules.PayloadFile == "" {
		return fmt.Errorf("rules payload file is required")
	}
	if c.Rules.BufferSize <= 0 {
		return fmt.Errorf("rules buffer size must be positive")
	}
	if c.UserData.Backend != BackendMemory && c.UserData.Backend != BackendRedis {
		return fmt.Errorf("user data backend must be %s or %s", BackendMemory, BackendRedis)
	}
	if c.UserData.Redis.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
