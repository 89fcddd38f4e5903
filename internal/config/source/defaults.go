package source

import (
	"time"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
)

// DefaultSource provides default configuration values
type DefaultSource struct{}

// NewDefaultSource creates a new DefaultSource
func NewDefaultSource() *DefaultSource {
	return &DefaultSource{}
}

// Name returns the source name
func (s *DefaultSource) Name() string {
	return "defaults"
}

// Priority returns the source priority
func (s *DefaultSource) Priority() int {
	return PriorityDefaults
}

// LoadInto loads default values into the configuration
func (s *DefaultSource) LoadInto(cfg *schema.Root) error {
	*cfg = Defaults()
	return nil
}

// Defaults returns a fully populated default configuration
func Defaults() schema.Root {
	return schema.Root{
		Server: schema.ServerConfig{
			Host:       "127.0.0.1",
			Port:       8765,
			Path:       "/ws",
			SendBuffer: 64,
		},
		Log: schema.LogConfig{
			Level:   "info",
			Format:  schema.LogFormatText,
			File:    "proxy.log",
			Console: true,
		},
		Upstream: schema.UpstreamConfig{
			EIOVersion:       3,
			HandshakeTimeout: 20 * time.Second,
			Reconnection: schema.ReconnectionConfig{
				Enabled:       true,
				Attempts:      100,
				Delay:         time.Second,
				DelayMax:      5 * time.Second,
				Randomization: 0.5,
			},
		},
		Metrics: schema.MetricsConfig{
			Enabled: false,
			Type:    schema.MetricsTypeMemory,
			Path:    "/metrics",
		},
		Mirror: schema.MirrorConfig{
			Enabled: false,
			Type:    schema.MirrorTypeMemory,
			Channel: "tincan.envelopes",
			Redis: schema.RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Console: schema.ConsoleConfig{
			Enabled: true,
		},
	}
}
