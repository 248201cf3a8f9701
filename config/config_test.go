package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowQuery)
	assert.Equal(t, "social:", cfg.Cache.KeyPrefix)
	assert.Equal(t, 10, cfg.Social.DefaultPageSize)
	assert.Equal(t, 100, cfg.Social.MaxPageSize)
	assert.Equal(t, 720*time.Hour, cfg.Social.RequestTTL)
	assert.Equal(t, 10*time.Minute, cfg.Social.MaintenanceInterval)
	assert.Equal(t, "social.events", cfg.Events.PubSubChannel)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  admin_key: k
  admin_ips: ["10.0.0.0/8", "127.0.0.1"]
database:
  mode: mysql
  mysql_dsn: "u:p@tcp(db:3306)/social"
social:
  default_page_size: 20
  request_ttl: 48h
events:
  nats_url: nats://nats:4222
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.AdminIPs)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	assert.Equal(t, 20, cfg.Social.DefaultPageSize)
	assert.Equal(t, 48*time.Hour, cfg.Social.RequestTTL)
	assert.Equal(t, "nats://nats:4222", cfg.Events.NATSURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Social.MaxPageSize)
	assert.Equal(t, 5*time.Second, cfg.Social.TxTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
