// Package config loads the wscomms command's YAML configuration.
//
// A missing file yields the defaults, so every setting is optional:
//
//	listen: ":8080"
//	link: calc-host
//	loopback_only: true
//	metrics_path: /metrics
//	session:
//	  heartbeat_interval: 30s
//	  rate_limit: 50
//	content:
//	  dir: ./public
//	discovery:
//	  etcd_endpoints: ["127.0.0.1:2379"]
//	  public_url: ws://10.0.0.5:8080
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/wscomms-dev/wscomms/pkg/server"
	"github.com/wscomms-dev/wscomms/pkg/session"
)

const (
	// FileName is the default configuration file name.
	FileName = "wscomms.yaml"

	// DefaultListen is the default listen address.
	DefaultListen = ":8080"

	// DefaultLink is the default link name.
	DefaultLink = "wscomms"
)

// Config is the complete configuration file.
type Config struct {
	Listen          string        `yaml:"listen"`
	Link            string        `yaml:"link"`
	LoopbackOnly    bool          `yaml:"loopback_only"`
	AllowAnyOrigin  bool          `yaml:"allow_any_origin"`
	Echo            bool          `yaml:"echo"`
	MetricsPath     string        `yaml:"metrics_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Session   SessionConfig   `yaml:"session"`
	Content   ContentConfig   `yaml:"content"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`

	path string
}

// SessionConfig mirrors session.Config.
type SessionConfig struct {
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RateLimit         float64       `yaml:"rate_limit"`
	RateBurst         int           `yaml:"rate_burst"`
}

// ContentConfig selects static content sources. Dir is served before S3.
type ContentConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

// S3Config points at a bucket holding static content.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Anonymous bool   `yaml:"anonymous"`
}

// DiscoveryConfig enables route announcement through etcd.
type DiscoveryConfig struct {
	EtcdEndpoints []string      `yaml:"etcd_endpoints"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	TTL           time.Duration `yaml:"ttl"`
	PublicURL     string        `yaml:"public_url"`
}

// ClientConfig configures the call command.
type ClientConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// New returns a Config with defaults applied.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// DefaultPath returns FileName in the working directory.
func DefaultPath() string {
	return filepath.Join(".", FileName)
}

// Load reads path. A missing file returns the defaults with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c := New()
			c.path = path
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes YAML data. path is only recorded for Path.
func Parse(data []byte, path string) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.path = path
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) applyDefaults() {
	d := session.DefaultConfig()
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Link == "" {
		c.Link = DefaultLink
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.Session.ReadTimeout == 0 {
		c.Session.ReadTimeout = d.ReadTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = d.WriteTimeout
	}
	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = d.MaxMessageSize
	}
	if c.Session.PollInterval == 0 {
		c.Session.PollInterval = d.PollInterval
	}
	if c.Discovery.DialTimeout == 0 {
		c.Discovery.DialTimeout = 5 * time.Second
	}
	if c.Discovery.TTL == 0 {
		c.Discovery.TTL = 15 * time.Second
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 10 * time.Second
	}
	if c.Client.ReconnectDelay == 0 {
		c.Client.ReconnectDelay = 4 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Session.MaxMessageSize < 0 {
		return fmt.Errorf("config: session.max_message_size must not be negative")
	}
	if c.Session.RateLimit < 0 || c.Session.RateBurst < 0 {
		return fmt.Errorf("config: session rate limit must not be negative")
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("config: metrics_path %q must start with /", c.MetricsPath)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// SessionConfig converts the session section.
func (c *Config) SessionConfig() *session.Config {
	sc := session.DefaultConfig()
	sc.ReadTimeout = c.Session.ReadTimeout
	sc.WriteTimeout = c.Session.WriteTimeout
	sc.HeartbeatInterval = c.Session.HeartbeatInterval
	sc.MaxMessageSize = c.Session.MaxMessageSize
	sc.PollInterval = c.Session.PollInterval
	sc.RateLimit = rate.Limit(c.Session.RateLimit)
	sc.RateBurst = c.Session.RateBurst
	sc.Echo = c.Echo
	return sc
}

// ServerConfig converts the file to a server configuration. Content
// sources and discovery need live clients and are left to the caller.
func (c *Config) ServerConfig() *server.ServerConfig {
	sc := server.DefaultServerConfig().
		WithAddress(c.Listen).
		WithLinkName(c.Link).
		WithLoopbackOnly(c.LoopbackOnly)
	sc.SessionConfig = c.SessionConfig()
	sc.MetricsPath = c.MetricsPath
	sc.ShutdownTimeout = c.ShutdownTimeout
	sc.DiscoveryTTL = c.Discovery.TTL
	sc.PublicURL = c.Discovery.PublicURL
	if c.AllowAnyOrigin {
		sc.CheckOrigin = server.AllowAllOrigins
	}
	return sc
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", s, err)
	}
	return level, nil
}
