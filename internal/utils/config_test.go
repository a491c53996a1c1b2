package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REDIS_HOST", "")

	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisHost)
	assert.True(t, cfg.Cache.SVGCacheEnabled)
	assert.Equal(t, Duration(24*time.Hour), cfg.Cache.SVGCacheTTL)
	assert.Equal(t, "templates", cfg.SVG.TemplatesDir)
	assert.Equal(t, Duration(365*24*time.Hour), cfg.SVG.ExpiresTTL)
}

func TestLoadConfig_ReadsFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: ":9090"
cache:
  redis_host: "redis:6379"
  svg_cache_ttl: 1h
svg:
  templates_dir: "/srv/svg"
  default_style_id: 4
  default_language_id: 2
themes:
  postgres:
    host: "db"
    database: "themes"
    user: "svc"
`
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REDIS_HOST", "override:6380")

	cfg := LoadConfig()

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "override:6380", cfg.Cache.RedisHost, "REDIS_HOST wins over the file")
	assert.Equal(t, Duration(time.Hour), cfg.Cache.SVGCacheTTL)
	assert.Equal(t, "/srv/svg", cfg.SVG.TemplatesDir)
	assert.Equal(t, 4, cfg.SVG.DefaultStyleID)
	assert.Equal(t, 2, cfg.SVG.DefaultLanguageID)
	assert.Equal(t, "db", cfg.Themes.Postgres.Host)

	assert.Equal(t, cfg, GetConfig())
}

func TestLoadConfig_MalformedFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("server: [not: a: map"), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REDIS_HOST", "")

	cfg := LoadConfig()
	assert.Equal(t, ":8080", cfg.Server.Port)
}
