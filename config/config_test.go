package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autocatalog.yml")
	content := `
database_url: sqlite://catalog.db
session_secret: s3cret
cache_max_age: 30s
smtp:
  host: mail.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite://catalog.db", cfg.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, 30*time.Second, cfg.CacheMaxAge)
	assert.Equal(t, "mail.example.com", cfg.SMTP.Host)
	assert.Equal(t, "587", cfg.SMTP.Port)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./media", cfg.MediaDir)
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autocatalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\n"), 0644))

	t.Setenv("PORT", "9100")
	t.Setenv("DATABASE_URL", "postgres://localhost/cars")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "postgres://localhost/cars", cfg.DatabaseURL)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_LegacySqliteVariable(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("sqlite_db", "legacy.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite://legacy.db", cfg.DatabaseURL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CACHE_MAX_AGE", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "sqlite://x.db"
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateServe())
}
