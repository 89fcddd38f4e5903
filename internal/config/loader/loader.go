// Package loader provides multi-source configuration loading
package loader

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	"github.com/BlacK-CHi/tincanOpener/internal/config/source"
	"github.com/BlacK-CHi/tincanOpener/internal/config/validator"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// DefaultEnvPrefix is the environment variable prefix
const DefaultEnvPrefix = "TINCAN"

// DefaultConfigFile is used when no --config flag is given
const DefaultConfigFile = "config.yaml"

// Loader loads configuration from multiple sources in priority order
type Loader struct {
	sources []source.Source
}

// NewLoader creates a new Loader
func NewLoader() *Loader {
	return &Loader{}
}

// AddSource adds a configuration source
func (l *Loader) AddSource(s source.Source) {
	l.sources = append(l.sources, s)
}

// Load loads configuration from all sources in priority order and validates the result
func (l *Loader) Load() (*schema.Root, error) {
	if len(l.sources) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "no configuration sources registered")
	}

	sorted := make([]source.Source, len(l.sources))
	copy(sorted, l.sources)
	sort.Stable(source.ByPriority(sorted))

	cfg := &schema.Root{}
	for _, s := range sorted {
		corelog.Debugf("Loading configuration from source: %s (priority %d)", s.Name(), s.Priority())
		if err := s.LoadInto(cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError,
				"failed to load configuration from source %s", s.Name())
		}
	}

	if result := validator.ValidateConfig(cfg); !result.IsValid() {
		return nil, coreerrors.New(coreerrors.CodeConfigError, result.Error())
	}
	return cfg, nil
}

// LoaderBuilder helps build a Loader with common configurations
type LoaderBuilder struct {
	prefix     string
	configFile string
	overrides  func(cfg *schema.Root)
}

// NewLoaderBuilder creates a new LoaderBuilder
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{prefix: DefaultEnvPrefix}
}

// WithPrefix sets the environment variable prefix
func (b *LoaderBuilder) WithPrefix(prefix string) *LoaderBuilder {
	b.prefix = prefix
	return b
}

// WithConfigFile sets the configuration file path
func (b *LoaderBuilder) WithConfigFile(path string) *LoaderBuilder {
	b.configFile = path
	return b
}

// WithOverrides applies CLI flag values above every other source
func (b *LoaderBuilder) WithOverrides(fn func(cfg *schema.Root)) *LoaderBuilder {
	b.overrides = fn
	return b
}

// Build creates the configured Loader
func (b *LoaderBuilder) Build() *Loader {
	l := NewLoader()
	l.AddSource(source.NewDefaultSource())
	if b.configFile != "" {
		l.AddSource(source.NewYAMLSource(b.configFile))
	}
	l.AddSource(source.NewEnvSource(b.prefix))
	if b.overrides != nil {
		l.AddSource(source.NewOverrideSource(b.overrides))
	}
	return l
}

// EnsureConfigFile writes the default configuration to path if no file exists there
func EnsureConfigFile(path string) (bool, error) {
	expanded, err := source.ExpandPath(path)
	if err != nil {
		return false, coreerrors.Wrap(err, coreerrors.CodeConfigError, "failed to expand config path")
	}
	if _, err := os.Stat(expanded); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to stat %q", expanded)
	}
	if err := WriteDefaults(expanded); err != nil {
		return false, err
	}
	return true, nil
}

// WriteDefaults writes the default configuration as YAML, replacing any existing file
func WriteDefaults(path string) error {
	defaults := source.Defaults()
	data, err := yaml.Marshal(&defaults)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeConfigError, "failed to encode default config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to create %q", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to write %q", path)
	}
	return nil
}

// Load creates the config file with defaults when missing, then loads all sources
func Load(configFile string, overrides func(cfg *schema.Root)) (*schema.Root, error) {
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	created, err := EnsureConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	if created {
		corelog.Infof("Created default configuration file: %s", configFile)
	}
	return NewLoaderBuilder().
		WithConfigFile(configFile).
		WithOverrides(overrides).
		Build().
		Load()
}
