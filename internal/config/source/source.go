// Package source provides configuration source abstractions and implementations
package source

import "github.com/BlacK-CHi/tincanOpener/internal/config/schema"

// Source loads configuration into a strongly-typed Root structure
type Source interface {
	// Name returns the source name for logging and error messages
	Name() string

	// Priority returns the source priority (higher = more important)
	Priority() int

	// LoadInto overlays the values this source knows about
	LoadInto(cfg *schema.Root) error
}

// Source priorities
const (
	PriorityDefaults = 1
	PriorityYAML     = 2
	PriorityEnv      = 3
	PriorityCLI      = 4
)

// ByPriority implements sort.Interface for []Source based on Priority
type ByPriority []Source

func (a ByPriority) Len() int           { return len(a) }
func (a ByPriority) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByPriority) Less(i, j int) bool { return a[i].Priority() < a[j].Priority() }

// OverrideSource applies programmatic overrides, typically from CLI flags
type OverrideSource struct {
	apply func(cfg *schema.Root)
}

// NewOverrideSource creates an OverrideSource
func NewOverrideSource(apply func(cfg *schema.Root)) *OverrideSource {
	return &OverrideSource{apply: apply}
}

// Name returns the source name
func (s *OverrideSource) Name() string { return "cli" }

// Priority returns the source priority
func (s *OverrideSource) Priority() int { return PriorityCLI }

// LoadInto applies the overrides
func (s *OverrideSource) LoadInto(cfg *schema.Root) error {
	if s.apply != nil {
		s.apply(cfg)
	}
	return nil
}
