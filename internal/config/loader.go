package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "CHEMMAP"

// Load failures. Returned errors wrap one of these, so errors.Is works.
var (
	ErrConfigFileNotFound = errors.New(errors.ErrCodeNotFound, "config file not found")
	ErrConfigParse        = errors.New(errors.ErrCodeSerialization, "config parse failed")
	ErrConfigValidation   = errors.New(errors.ErrCodeValidation, "config validation failed")
)

// newViper builds a Viper instance reading YAML, with CHEMMAP_ environment
// overrides where "." maps to "_" (matching.min_score is
// CHEMMAP_MATCHING_MIN_SCORE).
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// leaf of Config is bound explicitly.
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	v.SetDefault("matching.min_score", DefaultMinScore)
	v.SetDefault("matching.skip_solvents", true)
	v.SetDefault("metrics.enabled", true)
	return v
}

func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")
		if f.Type.Kind() == reflect.Struct && f.Anonymous && opts == "squash" {
			bindEnvs(v, f.Type, prefix)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, f.Type, prefix+name+".")
			continue
		}
		_ = v.BindEnv(prefix + name)
	}
}

// Load reads the YAML file at configPath, merges CHEMMAP_* environment
// overrides, applies defaults and validates. An empty path is the same as
// LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigFileNotFound, configPath, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigParse, configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from CHEMMAP_* variables and defaults alone.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return cfg, nil
}

// MustLoad is Load that panics. Meant for main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// Watch re-reads configPath on every change and hands the new Config to
// onChange. A change that fails to parse or validate is logged and skipped,
// so the caller keeps running on the last good config. Watch returns after
// the initial read; the watch itself runs in viper's goroutine.
func Watch(configPath string, onChange func(*Config), log logging.Logger) error {
	if log == nil {
		log = logging.NewNopLogger()
	}
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigFileNotFound, configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			log.Warn("ignoring invalid config change", logging.String("file", e.Name), logging.Err(err))
			return
		}
		log.Info("config reloaded", logging.String("file", e.Name), logging.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
