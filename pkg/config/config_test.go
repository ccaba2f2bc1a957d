package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "key-123")

	path := writeConfig(t, `
listen: ":9090"
providers:
  - name: web
    url: https://search.example.com
    api_key: ${TEST_SEARCH_KEY}
  - name: news
    url: https://news.example.com
router:
  routes:
    - content_type: news
      providers: [news, web]
provider:
  timeout: 3s
  rate_limit: 5
  burst: 10
cache:
  backend: redis
  ttl: 30m
  redis:
    addr: redis:6379
history:
  backend: postgres
  dsn: postgres://sift@db/sift
  retention_days: 90
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "key-123", cfg.Providers[0].APIKey, "env var expanded")
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "sift:cache:", cfg.Cache.Redis.Prefix, "default survives partial override")
	assert.Equal(t, 3*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 90, cfg.History.RetentionDays)
	require.Len(t, cfg.Router.Routes, 1)
	assert.Equal(t, []string{"news", "web"}, cfg.Router.Routes[0].Providers)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"zero ttl":          "cache:\n  ttl: 0s\n",
		"unknown cache":     "cache:\n  backend: memcached\n",
		"unknown history":   "history:\n  backend: mongo\n",
		"postgres no dsn":   "history:\n  backend: postgres\n  dsn: \"\"\n",
		"bad limits":        "search:\n  default_limit: 50\n  max_limit: 10\n",
		"duplicate":         "providers:\n  - {name: a, url: http://a}\n  - {name: a, url: http://b}\n",
		"provider no url":   "providers:\n  - {name: a}\n",
		"zero provider ttl": "provider:\n  timeout: 0s\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestDisabledCacheSkipsCacheValidation(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = false
	cfg.Cache.TTL = 0
	assert.NoError(t, cfg.Validate())
}
