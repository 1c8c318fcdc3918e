package confloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "PAIRMESH_"

// EnvSectionSeparator separates nested sections in environment variable
// names when keys themselves contain underscores.
const EnvSectionSeparator = "__"

// Loader merges the configuration sources into a target struct. Every Load
// starts from an empty koanf instance, so calling it again after the file
// changed is a full reload.
type Loader struct {
	envPrefix string
	filePath  string
	overrides map[string]any

	mu   sync.Mutex
	keys []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. Empty means no file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values applied after the environment, keyed by
// dotted configuration key ("server.http.addr"). Command-line flags use it.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file path, if any.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load unmarshals file, environment and overrides, in that order, on top
// of the values already in target. Durations accept Go duration strings.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	prefix := l.envPrefix
	envProvider := env.Provider(prefix, ".", func(name string) string {
		return EnvKey(prefix, name)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.keys = k.Keys()
	l.mu.Unlock()
	return nil
}

// Keys returns the keys set by any source during the last Load, sorted.
func (l *Loader) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

// EnvKey maps an environment variable name to a configuration key.
//
// When a name contains "__", only "__" splits sections and single
// underscores stay inside keys:
//
//	PAIRMESH_STORAGE__BLOB_DIR=/srv/blobs   -> storage.blob_dir
//	PAIRMESH_LOG_LEVEL=debug                -> log.level
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	if strings.Contains(s, EnvSectionSeparator) {
		return strings.ReplaceAll(s, EnvSectionSeparator, ".")
	}
	return strings.ReplaceAll(s, "_", ".")
}
