package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log:
  level: DEBUG
  dir: logs
rules:
  payload_file: rules/metadata_rules.json
  watch: true
user_data:
  backend: redis
  redis:
    addr: 127.0.0.1:6380
    db: 2
api:
  enable: true
  host: 127.0.0.1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, DefaultLogFilename, cfg.Log.Filename)
	assert.Equal(t, "rules/metadata_rules.json", cfg.Rules.PayloadFile)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, DefaultRuleBuffer, cfg.Rules.BufferSize)
	assert.Equal(t, BackendRedis, cfg.UserData.Backend)
	assert.Equal(t, "127.0.0.1:6380", cfg.UserData.Redis.Addr)
	assert.Equal(t, 2, cfg.UserData.Redis.DB)
	assert.Equal(t, DefaultRedisHashKey, cfg.UserData.Redis.HashKey)
	assert.True(t, cfg.API.Enable)
	assert.Equal(t, DefaultAPIPort, cfg.API.Port)
}

func TestLoadConfigDefaultsToMemoryBackend(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "rules:\n  payload_file: rules.json\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.UserData.Backend)
	assert.False(t, cfg.Rules.Watch)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "缺少规则文件", content: "log:\n  level: INFO\n"},
		{name: "未知后端", content: "rules:\n  payload_file: r.json\nuser_data:\n  backend: etcd\n"},
		{name: "负数db", content: "rules:\n  payload_file: r.json\nuser_data:\n  redis:\n    db: -1\n"},
		{name: "yaml格式错误", content: "rules: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
