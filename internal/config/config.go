package config

import "runtime"

// Config is the complete reflectdb configuration, loaded from
// .reflectdb/config.yaml with environment variable overrides.
type Config struct {
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Specs   SpecsConfig   `yaml:"specs" mapstructure:"specs"`
	Codegen CodegenConfig `yaml:"codegen" mapstructure:"codegen"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ScanConfig selects the source files to scan.
type ScanConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns, relative to the scan root
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
	Workers int      `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig says where the scanned database goes.
type OutputConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"` // auto, binary, text or sqlite
}

// SpecsConfig adds reflection specs on top of the ones declared in source.
type SpecsConfig struct {
	Full    []string `yaml:"full" mapstructure:"full"`       // fully reflected qualified names
	Partial []string `yaml:"partial" mapstructure:"partial"` // names reflected without their members
}

// CodegenConfig controls utility header generation.
type CodegenConfig struct {
	Root   string `yaml:"root" mapstructure:"root"`     // class every base chain must end at; empty follows primary bases
	Prefix string `yaml:"prefix" mapstructure:"prefix"` // macro prefix
	Dir    string `yaml:"dir" mapstructure:"dir"`       // output directory; empty writes next to each source
}

type LogConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// Format names accepted by OutputConfig.Format.
const (
	FormatAuto   = "auto"
	FormatBinary = "binary"
	FormatText   = "text"
	FormatSQLite = "sqlite"
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Include: []string{
				"**/*.h",
				"**/*.hpp",
				"**/*.cpp",
			},
			Exclude: []string{
				"build/**",
				"third_party/**",
				".git/**",
			},
			Workers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Path:   "reflect.cppbin",
			Format: FormatAuto,
		},
		Codegen: CodegenConfig{
			Prefix: "REFLECTDB",
		},
	}
}
