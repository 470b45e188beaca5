package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache_dir: /tmp/sounds
base_url: https://bugle.example.com/api
interval: 30s
git:
  url: https://example.com/bugle-sounds.git
  email: bugler@example.com
log:
  level: debug
`), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "/tmp/sounds", cfg.CacheDir)
	require.Equal(t, SourceHTTP, cfg.Source)
	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, "soundbank", cfg.Git.Name)
	require.Equal(t, "bugler@example.com", cfg.Git.Email)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			CacheDir:    "/tmp/sounds",
			Source:      SourceHTTP,
			BaseURL:     "https://bugle.example.com",
			Concurrency: 4,
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.BaseURL = "not a url"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Source = "ftp"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MetricsAddr = ":9102"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.MetricsAddr = "nowhere"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Log.Level = "loud"
	require.Error(t, cfg.Validate())
}

func TestCheckSource(t *testing.T) {
	cfg := Config{Source: SourceHTTP, BaseURL: "https://bugle.example.com"}
	require.NoError(t, cfg.CheckSource())

	cfg.BaseURL = ""
	require.ErrorContains(t, cfg.CheckSource(), "needs base_url")

	cfg.Git.URL = "https://example.com/sounds.git"
	require.NoError(t, cfg.CheckSource())

	cfg = Config{Source: SourceOCI}
	require.ErrorContains(t, cfg.CheckSource(), "needs image")
	cfg.Image = "ghcr.io/org/bugle:latest"
	require.NoError(t, cfg.CheckSource())

	cfg = Config{Source: SourceNone}
	require.ErrorContains(t, cfg.CheckSource(), "needs git.url")
}
