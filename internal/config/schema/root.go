// Package schema defines configuration structure types
package schema

import "time"

// Root is the top-level relay configuration
type Root struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Mirror   MirrorConfig   `yaml:"mirror" json:"mirror"`
	Console  ConsoleConfig  `yaml:"console" json:"console"`
}

// ServerConfig configures the downstream WebSocket listener
type ServerConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Path       string `yaml:"path" json:"path"`               // WebSocket endpoint path
	SendBuffer int    `yaml:"send_buffer" json:"send_buffer"` // per-connection outbound queue length
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`     // debug/info/warn/error
	Format  string `yaml:"format" json:"format"`   // text/json
	File    string `yaml:"file" json:"file"`       // log file path, empty disables file output
	Console bool   `yaml:"console" json:"console"` // also output to stdout
}

// UpstreamConfig configures the Socket.IO session
type UpstreamConfig struct {
	EIOVersion       int                `yaml:"eio_version" json:"eio_version"` // 3 (Socket.IO v2) or 4
	HandshakeTimeout time.Duration      `yaml:"handshake_timeout" json:"handshake_timeout"`
	Reconnection     ReconnectionConfig `yaml:"reconnection" json:"reconnection"`
}

// ReconnectionConfig is the bounded reconnect policy after an unexpected drop
type ReconnectionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Attempts      int           `yaml:"attempts" json:"attempts"` // 0 = unlimited
	Delay         time.Duration `yaml:"delay" json:"delay"`
	DelayMax      time.Duration `yaml:"delay_max" json:"delay_max"`
	Randomization float64       `yaml:"randomization" json:"randomization"`
}

// MetricsConfig selects the metrics backend
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"` // memory/prometheus
	Path    string `yaml:"path" json:"path"` // HTTP path when type is prometheus
}

// MirrorConfig publishes every outbound envelope to a message broker
type MirrorConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type"` // memory/redis
	Channel string      `yaml:"channel" json:"channel"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password Secret `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// ConsoleConfig controls the interactive operator console
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Constants for enumerated values
const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	MetricsTypeMemory     = "memory"
	MetricsTypePrometheus = "prometheus"

	MirrorTypeMemory = "memory"
	MirrorTypeRedis  = "redis"
)
