// Package validator provides configuration validation
package validator

import (
	"fmt"
	"strings"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string // Field path (e.g., "server.port")
	Value   string // Current value
	Message string // Error message
	Hint    string // Fix suggestion
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a formatted error message
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n\n")
	for i, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Field))
		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     Current value: %s\n", err.Value))
		}
		sb.WriteString(fmt.Sprintf("     Error: %s\n", err.Message))
		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     Hint: %s\n", err.Hint))
		}
	}
	return sb.String()
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Hint:    hint,
	})
}

// ValidationRule is a function that validates configuration
type ValidationRule func(cfg *schema.Root, result *ValidationResult)

// Validator validates configuration
type Validator struct {
	rules []ValidationRule
}

// NewValidator creates a new Validator with default rules
func NewValidator() *Validator {
	v := &Validator{}
	v.AddRule(validateServer)
	v.AddRule(validateLog)
	v.AddRule(validateUpstream)
	v.AddRule(validateMetrics)
	v.AddRule(validateMirror)
	return v
}

// AddRule adds a validation rule
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Validate validates the configuration
func (v *Validator) Validate(cfg *schema.Root) *ValidationResult {
	result := &ValidationResult{}
	for _, rule := range v.rules {
		rule(cfg, result)
	}
	return result
}

// ValidateConfig is a convenience function that creates a validator and validates
func ValidateConfig(cfg *schema.Root) *ValidationResult {
	return NewValidator().Validate(cfg)
}

// ============================================================================
// Validation Rules
// ============================================================================

func validateServer(cfg *schema.Root, result *ValidationResult) {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		result.AddError("server.port", fmt.Sprintf("%d", cfg.Server.Port),
			"port must be between 1 and 65535", "The default listener port is 8765")
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		result.AddError("server.path", cfg.Server.Path,
			"path must start with '/'", "e.g. /ws")
	}
	if cfg.Server.SendBuffer < 1 {
		result.AddError("server.send_buffer", fmt.Sprintf("%d", cfg.Server.SendBuffer),
			"send_buffer must be at least 1", "Set a positive queue length, e.g. 64")
	}
}

func validateLog(cfg *schema.Root, result *ValidationResult) {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		result.AddError("log.level", cfg.Log.Level,
			"unknown log level", "Use one of debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case schema.LogFormatText, schema.LogFormatJSON:
	default:
		result.AddError("log.format", cfg.Log.Format,
			"unknown log format", "Use text or json")
	}
}

func validateUpstream(cfg *schema.Root, result *ValidationResult) {
	up := cfg.Upstream
	if up.EIOVersion != 3 && up.EIOVersion != 4 {
		result.AddError("upstream.eio_version", fmt.Sprintf("%d", up.EIOVersion),
			"eio_version must be 3 or 4", "Use 3 for Socket.IO v2 servers, 4 for v3/v4 servers")
	}
	if up.HandshakeTimeout <= 0 {
		result.AddError("upstream.handshake_timeout", up.HandshakeTimeout.String(),
			"handshake_timeout must be positive", "e.g. 20s")
	}

	rc := up.Reconnection
	if !rc.Enabled {
		return
	}
	if rc.Attempts < 0 {
		result.AddError("upstream.reconnection.attempts", fmt.Sprintf("%d", rc.Attempts),
			"attempts must not be negative", "Use 0 for unlimited attempts")
	}
	if rc.Delay <= 0 {
		result.AddError("upstream.reconnection.delay", rc.Delay.String(),
			"delay must be positive", "e.g. 1s")
	}
	if rc.DelayMax < rc.Delay {
		result.AddError("upstream.reconnection.delay_max", rc.DelayMax.String(),
			"delay_max must not be less than delay", "e.g. 5s")
	}
	if rc.Randomization < 0 || rc.Randomization > 1 {
		result.AddError("upstream.reconnection.randomization", fmt.Sprintf("%g", rc.Randomization),
			"randomization must be between 0 and 1", "e.g. 0.5")
	}
}

func validateMetrics(cfg *schema.Root, result *ValidationResult) {
	if !cfg.Metrics.Enabled {
		return
	}
	switch cfg.Metrics.Type {
	case schema.MetricsTypeMemory:
	case schema.MetricsTypePrometheus:
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			result.AddError("metrics.path", cfg.Metrics.Path, "path must start with '/'", "e.g. /metrics")
		} else if cfg.Metrics.Path == cfg.Server.Path {
			result.AddError("metrics.path", cfg.Metrics.Path,
				"metrics path collides with server.path", "Use a distinct path such as /metrics")
		}
	default:
		result.AddError("metrics.type", cfg.Metrics.Type,
			"unknown metrics type", "Use memory or prometheus")
	}
}

func validateMirror(cfg *schema.Root, result *ValidationResult) {
	if !cfg.Mirror.Enabled {
		return
	}
	if cfg.Mirror.Channel == "" {
		result.AddError("mirror.channel", "", "channel is required when mirror is enabled", "")
	}
	switch cfg.Mirror.Type {
	case schema.MirrorTypeMemory:
	case schema.MirrorTypeRedis:
		if cfg.Mirror.Redis.Addr == "" {
			result.AddError("mirror.redis.addr", "", "addr is required for the redis mirror", "e.g. localhost:6379")
		}
	default:
		result.AddError("mirror.type", cfg.Mirror.Type, "unknown mirror type", "Use memory or redis")
	}
}
