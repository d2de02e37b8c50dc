package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNew(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultLink, cfg.Link)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, int64(1<<20), cfg.Session.MaxMessageSize)
	assert.Equal(t, 4*time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, path, cfg.Path())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := `
listen: "127.0.0.1:9000"
link: calc-host
loopback_only: true
echo: true
metrics_path: /metrics
session:
  heartbeat_interval: 5s
  poll_interval: 20ms
  rate_limit: 50
  rate_burst: 10
content:
  dir: ./public
  s3:
    bucket: site
    prefix: www/
discovery:
  etcd_endpoints: ["10.0.0.1:2379", "10.0.0.2:2379"]
  ttl: 30s
  public_url: ws://10.0.0.5:9000
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "calc-host", cfg.Link)
	assert.True(t, cfg.LoopbackOnly)
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 20*time.Millisecond, cfg.Session.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Session.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, "./public", cfg.Content.Dir)
	assert.Equal(t, "site", cfg.Content.S3.Bucket)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Discovery.EtcdEndpoints)
	assert.Equal(t, 30*time.Second, cfg.Discovery.TTL)

	sc := cfg.ServerConfig()
	assert.Equal(t, "127.0.0.1:9000", sc.Address)
	assert.Equal(t, "calc-host", sc.LinkName)
	assert.True(t, sc.LoopbackOnly)
	assert.Equal(t, "/metrics", sc.MetricsPath)
	assert.Equal(t, "ws://10.0.0.5:9000", sc.PublicURL)
	assert.True(t, sc.SessionConfig.Echo)
	assert.Equal(t, rate.Limit(50), sc.SessionConfig.RateLimit)
	assert.Equal(t, 10, sc.SessionConfig.RateBurst)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "listen: [",
		"bad duration": "shutdown_timeout: soon",
		"bad level":    "log:\n  level: loud",
		"bad format":   "log:\n  format: xml",
		"bad metrics":  "metrics_path: metrics",
		"negative":     "session:\n  rate_limit: -1",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data), "test.yaml")
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}
