package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the per-project configuration directory.
const DirName = ".reflectdb"

// EnvPrefix prefixes every environment override, e.g. REFLECTDB_SCAN_WORKERS.
const EnvPrefix = "REFLECTDB"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// LoaderOption configures a Loader.
type LoaderOption func(*loader)

// WithConfigFile reads path instead of searching rootDir/.reflectdb. A
// missing explicit file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(l *loader) { l.configFile = path }
}

// NewLoader creates a configuration loader for the given root directory.
func NewLoader(rootDir string, opts ...LoaderOption) Loader {
	l := &loader{rootDir: rootDir}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (REFLECTDB_*)
// 2. Config file (.reflectdb/config.yaml, config.yml, or WithConfigFile)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DirName))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"scan.include", "scan.exclude", "scan.workers",
		"output.path", "output.format",
		"specs.full", "specs.partial",
		"codegen.root", "codegen.prefix", "codegen.dir",
		"log.verbose",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing searched-for file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.configFile != "" {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("scan.include", defaults.Scan.Include)
	v.SetDefault("scan.exclude", defaults.Scan.Exclude)
	v.SetDefault("scan.workers", defaults.Scan.Workers)

	v.SetDefault("output.path", defaults.Output.Path)
	v.SetDefault("output.format", defaults.Output.Format)

	v.SetDefault("specs.full", defaults.Specs.Full)
	v.SetDefault("specs.partial", defaults.Specs.Partial)

	v.SetDefault("codegen.root", defaults.Codegen.Root)
	v.SetDefault("codegen.prefix", defaults.Codegen.Prefix)
	v.SetDefault("codegen.dir", defaults.Codegen.Dir)

	v.SetDefault("log.verbose", defaults.Log.Verbose)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
