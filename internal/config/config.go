// Package config resolves server and CLI settings from flags, AMRVIZ_*
// environment variables and an optional config file, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/ghodss/yaml"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. AMRVIZ_STORAGE.
const EnvPrefix = "AMRVIZ"

// Session store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds the resolved settings.
type Config struct {
	Storage      string        `mapstructure:"storage"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	SessionStore string        `mapstructure:"session_store"`
	SessionDir   string        `mapstructure:"session_dir"`
	RedisURL     string        `mapstructure:"redis_url"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	Solver       string        `mapstructure:"solver"`
	SolversFile  string        `mapstructure:"solvers_file"`
	CleanOnStart bool          `mapstructure:"clean_on_start"`
	Metrics      bool          `mapstructure:"metrics"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage", "./data")
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("session_store", StoreMemory)
	v.SetDefault("session_dir", "~/.amrviz/sessions")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("lock_ttl", 10*time.Minute)
	v.SetDefault("solver", "native")
	v.SetDefault("solvers_file", "solvers.yaml")
	v.SetDefault("clean_on_start", true)
	v.SetDefault("metrics", true)
}

// NewViper creates a viper instance reading cfgFile, or .amrviz.yaml from
// the working directory and then the home directory when cfgFile is empty.
// A missing default config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return v, nil
	}

	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigName(".amrviz")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and checks the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	var err error
	if cfg.Storage, err = expand(cfg.Storage); err != nil {
		return cfg, err
	}
	if cfg.SessionDir, err = expand(cfg.SessionDir); err != nil {
		return cfg, err
	}
	if cfg.SolversFile, err = expand(cfg.SolversFile); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func expand(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	return homedir.Expand(path)
}

// Validate checks the settings that have a closed set of values.
func (c Config) Validate() error {
	switch c.SessionStore {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown session_store %q (want memory, file or redis)", c.SessionStore)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Storage == "" {
		return fmt.Errorf("storage directory must be set")
	}
	return nil
}

// LoadParams reads solve parameters from a YAML or JSON file. The keys
// are the JSON payload keys of POST /solve; absent keys keep their default.
func LoadParams(path string) (domain.SolveParams, error) {
	p := domain.DefaultSolveParams()
	path, err := homedir.Expand(path)
	if err != nil {
		return p, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return p, fmt.Errorf("failed to read params: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}
