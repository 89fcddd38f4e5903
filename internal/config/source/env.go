package source

import (
	"os"
	"strconv"
	"time"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
)

// EnvSource loads configuration from environment variables named PREFIX_KEY
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new EnvSource with the specified prefix
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{prefix: prefix}
}

// Name returns the source name
func (s *EnvSource) Name() string {
	return "env"
}

// Priority returns the source priority
func (s *EnvSource) Priority() int {
	return PriorityEnv
}

// LoadInto loads environment variables into the config structure
func (s *EnvSource) LoadInto(cfg *schema.Root) error {
	// Server
	s.loadString("SERVER_HOST", &cfg.Server.Host)
	s.loadInt("SERVER_PORT", &cfg.Server.Port)
	s.loadString("SERVER_PATH", &cfg.Server.Path)
	s.loadInt("SERVER_SEND_BUFFER", &cfg.Server.SendBuffer)

	// Log
	s.loadString("LOG_LEVEL", &cfg.Log.Level)
	s.loadString("LOG_FORMAT", &cfg.Log.Format)
	s.loadString("LOG_FILE", &cfg.Log.File)
	s.loadBool("LOG_CONSOLE", &cfg.Log.Console)

	// Upstream
	s.loadInt("UPSTREAM_EIO_VERSION", &cfg.Upstream.EIOVersion)
	s.loadDuration("UPSTREAM_HANDSHAKE_TIMEOUT", &cfg.Upstream.HandshakeTimeout)
	s.loadBool("UPSTREAM_RECONNECTION_ENABLED", &cfg.Upstream.Reconnection.Enabled)
	s.loadInt("UPSTREAM_RECONNECTION_ATTEMPTS", &cfg.Upstream.Reconnection.Attempts)
	s.loadDuration("UPSTREAM_RECONNECTION_DELAY", &cfg.Upstream.Reconnection.Delay)
	s.loadDuration("UPSTREAM_RECONNECTION_DELAY_MAX", &cfg.Upstream.Reconnection.DelayMax)

	// Metrics
	s.loadBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	s.loadString("METRICS_TYPE", &cfg.Metrics.Type)
	s.loadString("METRICS_PATH", &cfg.Metrics.Path)

	// Mirror
	s.loadBool("MIRROR_ENABLED", &cfg.Mirror.Enabled)
	s.loadString("MIRROR_TYPE", &cfg.Mirror.Type)
	s.loadString("MIRROR_CHANNEL", &cfg.Mirror.Channel)
	s.loadString("REDIS_ADDR", &cfg.Mirror.Redis.Addr)
	s.loadSecret("REDIS_PASSWORD", &cfg.Mirror.Redis.Password)
	s.loadInt("REDIS_DB", &cfg.Mirror.Redis.DB)

	// Console
	s.loadBool("CONSOLE_ENABLED", &cfg.Console.Enabled)

	return nil
}

func (s *EnvSource) getEnv(key string) (string, bool) {
	if v := os.Getenv(s.prefix + "_" + key); v != "" {
		return v, true
	}
	return "", false
}

func (s *EnvSource) loadString(key string, target *string) {
	if v, ok := s.getEnv(key); ok {
		*target = v
	}
}

func (s *EnvSource) loadSecret(key string, target *schema.Secret) {
	if v, ok := s.getEnv(key); ok {
		*target = schema.Secret(v)
	}
}

func (s *EnvSource) loadBool(key string, target *bool) {
	if v, ok := s.getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func (s *EnvSource) loadInt(key string, target *int) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func (s *EnvSource) loadDuration(key string, target *time.Duration) {
	if v, ok := s.getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}
