// pkg/config/source.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Layer priorities. A layer with a higher value overrides keys set by a
// lower one; values in between are free for extra layers.
const (
	PriorityDefaults = 10
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
)

// ConfigSource is one layer of the extraction tool's configuration: the
// built-in pacing and timeouts, the YAML file under the user's config dir,
// INSIGHTS_* variables, and the global CLI flags.
type ConfigSource interface {
	// Name identifies the layer in load errors.
	Name() string
	// Priority orders the layer; see the Priority constants.
	Priority() int
	// Load merges the layer's keys into k.
	Load(k *koanf.Koanf) error
}

// DefaultSource seeds every key from DefaultConfig.
type DefaultSource struct{}

func (s *DefaultSource) Name() string  { return "defaults" }
func (s *DefaultSource) Priority() int { return PriorityDefaults }

func (s *DefaultSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("load built-in defaults: %w", err)
	}
	return nil
}

// FileSource reads a YAML config file. A run without a config file is
// normal, so an empty Path or a missing file loads nothing.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return PriorityFile }

func (s *FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	info, err := os.Stat(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat config file %s: %w", s.Path, err)
	case info.IsDir():
		return fmt.Errorf("config path %s is a directory", s.Path)
	}
	if err := k.Load(file.Provider(s.Path), yaml.Parser()); err != nil {
		return fmt.Errorf("parse config file %s: %w", s.Path, err)
	}
	return nil
}

// EnvPrefix is the prefix of every environment variable read by EnvSource.
const EnvPrefix = "INSIGHTS_"

// EnvSource maps INSIGHTS_* variables onto config keys. The section is
// matched first so multi-word sections and keys keep their underscores:
//
//	INSIGHTS_LOG_LEVEL                   -> log.level
//	INSIGHTS_PACING_NAVIGATION_DELAY     -> pacing.navigation_delay
//	INSIGHTS_LOGIN_HISTORY_DOWNLOAD_DIR  -> login_history.download_dir
type EnvSource struct {
	Prefix string // defaults to EnvPrefix
}

func (s *EnvSource) Name() string  { return "env" }
func (s *EnvSource) Priority() int { return PriorityEnv }

func (s *EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	mapKey := func(name string) string { return envKey(strings.TrimPrefix(name, prefix)) }
	if err := k.Load(env.Provider(prefix, ".", mapKey), nil); err != nil {
		return fmt.Errorf("load %s* environment: %w", prefix, err)
	}
	return nil
}

// sections are the top-level config keys. login_history must be tried
// before log.
var sections = []string{"login_history", "browser", "modules", "output", "pacing", "store", "log"}

func envKey(raw string) string {
	key := strings.ToLower(raw)
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return strings.ReplaceAll(key, "_", ".")
}

// FlagSource applies the global flags the user actually set, so an
// untouched flag never masks a value from the file or the environment.
// Debug forces log.level to debug.
type FlagSource struct {
	Flags *pflag.FlagSet
	Debug bool
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return PriorityFlags }

func (s *FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		if err := k.Load(posflag.Provider(s.Flags, ".", k), nil); err != nil {
			return fmt.Errorf("load command-line flags: %w", err)
		}
	}
	if s.Debug {
		if err := k.Set("log.level", "debug"); err != nil {
			return fmt.Errorf("force debug level: %w", err)
		}
	}
	return nil
}

// DefaultSources is the layer stack used by Manager.Load.
func DefaultSources(configPath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	return []ConfigSource{
		&DefaultSource{},
		&FileSource{Path: configPath},
		&EnvSource{Prefix: EnvPrefix},
		&FlagSource{Flags: flags, Debug: debug},
	}
}
