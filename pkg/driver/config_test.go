package driver

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sigil/pkg/checker"
	"sigil/pkg/vm"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, cfg Config)
		wantErr string
	}{
		{
			name:  "empty input keeps defaults",
			input: "",
			check: func(t *testing.T, cfg Config) {
				if cfg != DefaultConfig() {
					t.Errorf("got %+v, want defaults", cfg)
				}
			},
		},
		{
			name:  "partial override",
			input: "compile:\n  workers: 8\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.Compile.Workers != 8 {
					t.Errorf("workers = %d, want 8", cfg.Compile.Workers)
				}
				if cfg.Compile.MaxClassNesting != checker.DefaultMaxClassNesting {
					t.Errorf("max_class_nesting = %d, want default", cfg.Compile.MaxClassNesting)
				}
				if cfg.VM.MaxFrames != vm.DefaultMaxFrames {
					t.Errorf("max_frames = %d, want default", cfg.VM.MaxFrames)
				}
			},
		},
		{
			name:  "all sections",
			input: "log:\n  verbosity: 2\n  path: /tmp/sigil.log\ncompile:\n  disassemble: true\n  max_class_nesting: 3\nvm:\n  max_frames: 16\n",
			check: func(t *testing.T, cfg Config) {
				want := Config{
					Log:     LogConfig{Verbosity: 2, Path: "/tmp/sigil.log"},
					Compile: CompileConfig{Workers: 4, MaxClassNesting: 3, Disassemble: true},
					VM:      VMConfig{MaxFrames: 16},
				}
				if cfg != want {
					t.Errorf("got %+v, want %+v", cfg, want)
				}
			},
		},
		{name: "unknown key", input: "compile:\n  threads: 2\n", wantErr: "field threads not found"},
		{name: "wrong type", input: "vm:\n  max_frames: many\n", wantErr: "max_frames"},
		{name: "zero workers", input: "compile:\n  workers: 0\n", wantErr: "compile.workers must be at least 1"},
		{name: "all problems reported", input: "compile:\n  workers: 0\n  max_class_nesting: 0\nvm:\n  max_frames: 0\n", wantErr: "vm.max_frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				var cerr *ConfigError
				if !stderrors.As(err, &cerr) || cerr.Source != "<input>" {
					t.Errorf("expected *ConfigError from <input>, got %#v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sigil.yaml")
	if err := os.WriteFile(path, []byte("compile:\n  workers: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	var cerr *ConfigError
	if !stderrors.As(err, &cerr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cerr.Source != path {
		t.Errorf("Source = %q, want %q", cerr.Source, path)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); !stderrors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
