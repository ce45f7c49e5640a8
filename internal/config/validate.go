package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidWorkers indicates a worker count below one
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrInvalidPattern indicates a glob that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrEmptyInclude indicates no include patterns
	ErrEmptyInclude = errors.New("empty include patterns")

	// ErrEmptySpec indicates a blank reflection spec name
	ErrEmptySpec = errors.New("empty reflection spec name")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateScan(&cfg.Scan); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}
	if err := validateSpecs(&cfg.Specs); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validateScan(cfg *ScanConfig) error {
	var errs []error

	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidWorkers, cfg.Workers))
	}
	if len(cfg.Include) == 0 {
		errs = append(errs, ErrEmptyInclude)
	}
	if _, err := CompilePatterns(cfg.Include); err != nil {
		errs = append(errs, err)
	}
	if _, err := CompilePatterns(cfg.Exclude); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validateOutput(cfg *OutputConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "", FormatAuto, FormatBinary, FormatText, FormatSQLite:
		return nil
	}
	return fmt.Errorf("%w: must be auto, binary, text or sqlite, got '%s'", ErrInvalidFormat, cfg.Format)
}

func validateSpecs(cfg *SpecsConfig) error {
	for _, names := range [][]string{cfg.Full, cfg.Partial} {
		for _, n := range names {
			if strings.TrimSpace(n) == "" {
				return ErrEmptySpec
			}
		}
	}
	return nil
}

// CompilePatterns compiles slash-separated glob patterns.
func CompilePatterns(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
