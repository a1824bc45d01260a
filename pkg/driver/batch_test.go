package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"sigil/pkg/privatename"
)

func writeScripts(t *testing.T, scripts map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, src := range scripts {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return dir, paths
}

func TestCompileFiles(t *testing.T) {
	scripts := map[string]string{}
	for i := 0; i < 12; i++ {
		scripts[fmt.Sprintf("ok%02d.js", i)] = fmt.Sprintf("class C%d { #a = %d; get() { return this.#a; } }", i, i)
	}
	scripts["dup.js"] = "class D { #a; #a; }"
	scripts["unresolved.js"] = "function f(o) { return o.#gone; }"
	_, paths := writeScripts(t, scripts)
	paths = append(paths, filepath.Join(t.TempDir(), "missing.js"))

	cfg := DefaultConfig()
	cfg.Compile.Workers = 3
	results, err := CompileFiles(context.Background(), cfg, paths)
	if err != nil {
		t.Fatalf("CompileFiles() error = %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results for %d paths", len(results), len(paths))
	}

	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d is for %s, want %s", i, r.Path, paths[i])
		}
		switch filepath.Base(r.Path) {
		case "dup.js":
			if len(r.Errors) == 0 || !stderrors.Is(r.Errors[0], privatename.ErrDuplicatePrivateName) {
				t.Errorf("dup.js: expected DuplicatePrivateName, got %v", r.Errors)
			}
		case "unresolved.js":
			if len(r.Errors) == 0 || !stderrors.Is(r.Errors[0], privatename.ErrUnresolvedPrivateName) {
				t.Errorf("unresolved.js: expected UnresolvedPrivateName, got %v", r.Errors)
			}
		case "missing.js":
			if len(r.Errors) == 0 || !stderrors.Is(r.Errors[0], os.ErrNotExist) {
				t.Errorf("missing.js: expected not-exist, got %v", r.Errors)
			}
		default:
			if len(r.Errors) > 0 || r.Script == nil {
				t.Errorf("%s: unexpected errors %v", r.Path, r.Errors)
			}
		}
	}
}

func TestCompileFilesCancelled(t *testing.T) {
	_, paths := writeScripts(t, map[string]string{"a.js": "1;", "b.js": "2;"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := CompileFiles(ctx, DefaultConfig(), paths)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, r := range results {
		if len(r.Errors) == 0 || !stderrors.Is(r.Errors[0], context.Canceled) {
			t.Errorf("%s: expected a cancellation error, got %v", r.Path, r.Errors)
		}
	}
}
