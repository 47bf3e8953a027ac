// Package config loads the settings of a fake consul client.
//
// Settings come from, in increasing order of precedence, built-in
// defaults, an optional YAML file and FAKECONSUL_ environment
// variables:
//
//	snapshot:
//	  driver: file   # or bbolt
//	  dir: /tmp
//	log:
//	  level: info
//	  format: json   # or console
//
// FAKECONSUL_SNAPSHOT_DRIVER=bbolt overrides snapshot.driver.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jrife/fakeconsul/storage/snapshot/plugins"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/file"
	"github.com/jrife/fakeconsul/utils/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable Load reads
const EnvPrefix = "FAKECONSUL_"

// Config is the root configuration
type Config struct {
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Log      log.Config     `koanf:"log"`
}

// SnapshotConfig selects where the stores keep their snapshots
type SnapshotConfig struct {
	// Driver is the name of a snapshot plugin
	Driver string `koanf:"driver"`
	// Dir is the directory holding the snapshot files
	Dir string `koanf:"dir"`
}

// Default returns the configuration used when
// nothing is overridden
func Default() *Config {
	var config Config

	applyDefaults(&config)

	return &config
}

// Load reads the YAML file at path, if path is not empty, then
// applies environment overrides, fills in defaults and validates
// the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)

		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
		}
	}

	// FAKECONSUL_SNAPSHOT_DRIVER -> snapshot.driver
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", 2)

		if len(parts) == 1 {
			return parts[0]
		}

		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("could not load environment variables: %w", err)
	}

	var config Config

	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Snapshot.Driver == "" {
		config.Snapshot.Driver = file.DriverName
	}

	if config.Snapshot.Dir == "" {
		config.Snapshot.Dir = os.TempDir()
	}

	if config.Log.Level == "" {
		config.Log.Level = zapcore.InfoLevel.String()
	}

	if config.Log.Format == "" {
		config.Log.Format = log.FormatJSON
	}
}

// Validate returns an error if config names an unknown
// driver, log level or log format
func (config *Config) Validate() error {
	if plugins.Plugin(config.Snapshot.Driver) == nil {
		return fmt.Errorf("unknown snapshot driver %q, expected one of %s", config.Snapshot.Driver, strings.Join(plugins.Names(), ", "))
	}

	if _, err := zapcore.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", config.Log.Level, err)
	}

	switch config.Log.Format {
	case log.FormatJSON, log.FormatConsole:
	default:
		return fmt.Errorf("unknown log format %q", config.Log.Format)
	}

	return nil
}
