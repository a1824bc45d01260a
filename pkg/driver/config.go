package driver

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sigil/pkg/checker"
	"sigil/pkg/vm"
)

// Config is the session configuration, usually read from a YAML file:
//
//	log:     { verbosity: 0, path: "" }
//	compile: { workers: 4, max_class_nesting: 64, disassemble: false }
//	vm:      { max_frames: 512 }
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Compile CompileConfig `yaml:"compile"`
	VM      VMConfig      `yaml:"vm"`
}

// LogConfig controls commonlog. Verbosity uses commonlog's scale; path ""
// logs to stderr.
type LogConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Path      string `yaml:"path"`
}

type CompileConfig struct {
	// Workers bounds concurrent compilations in CompileFiles.
	Workers         int  `yaml:"workers"`
	MaxClassNesting int  `yaml:"max_class_nesting"`
	Disassemble     bool `yaml:"disassemble"` // log the bytecode of every compiled script
}

type VMConfig struct {
	MaxFrames int `yaml:"max_frames"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Compile: CompileConfig{
			Workers:         4,
			MaxClassNesting: checker.DefaultMaxClassNesting,
		},
		VM: VMConfig{MaxFrames: vm.DefaultMaxFrames},
	}
}

// ConfigError lists every problem found in a configuration.
type ConfigError struct {
	Source   string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parseConfig(data, path)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown keys are
// errors.
func ParseConfig(data []byte) (Config, error) {
	return parseConfig(data, "<input>")
}

func parseConfig(data []byte, name string) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Source: name, Problems: []string{err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		var cerr *ConfigError
		if stderrors.As(err, &cerr) {
			cerr.Source = name
		}
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var problems []string
	if c.Compile.Workers < 1 {
		problems = append(problems, fmt.Sprintf("compile.workers must be at least 1, got %d", c.Compile.Workers))
	}
	if c.Compile.MaxClassNesting < 1 {
		problems = append(problems, fmt.Sprintf("compile.max_class_nesting must be at least 1, got %d", c.Compile.MaxClassNesting))
	}
	if c.VM.MaxFrames < 1 {
		problems = append(problems, fmt.Sprintf("vm.max_frames must be at least 1, got %d", c.VM.MaxFrames))
	}
	if len(problems) > 0 {
		return &ConfigError{Source: "<config>", Problems: problems}
	}
	return nil
}
