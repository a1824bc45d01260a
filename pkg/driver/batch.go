package driver

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"sigil/pkg/compiler"
	"sigil/pkg/errors"
	"sigil/pkg/source"
	"sigil/pkg/vm"
)

// FileResult is the outcome of compiling one file in a batch.
type FileResult struct {
	Path   string
	Script *vm.FunctionObject // nil when Errors is not empty
	Errors []errors.SigilError
}

// CompileFiles compiles independent files concurrently, at most
// cfg.Compile.Workers at a time. Every goroutine builds its own parser,
// checker and compiler; only the class ID allocator is shared.
//
// A file that fails to compile does not stop the others. The returned
// error is only set when ctx is cancelled, in which case files not yet
// started are reported with the context error.
func CompileFiles(ctx context.Context, cfg Config, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Compile.Workers)
	log.Infof("compiling %d files with %d workers", len(paths), cfg.Compile.Workers)

	for i, path := range paths {
		i, path := i, path
		results[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Errors = []errors.SigilError{&errors.CompileError{Msg: err.Error(), Cause: err}}
				return err
			}
			results[i].Script, results[i].Errors = compileFile(path, cfg)
			return nil
		})
	}
	err := g.Wait()

	failed := 0
	for _, r := range results {
		if len(r.Errors) > 0 {
			failed++
		}
	}
	log.Infof("compiled %d files, %d failed", len(paths), failed)
	return results, err
}

func compileFile(path string, cfg Config) (*vm.FunctionObject, []errors.SigilError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, []errors.SigilError{&errors.CompileError{
			Msg:   fmt.Sprintf("reading %s: %v", path, err),
			Cause: err,
		}}
	}
	// Globals are resolved per file here; a batch has no VM to share.
	return compileSource(source.FromFile(path, string(content)), compiler.Options{
		MaxClassNesting: cfg.Compile.MaxClassNesting,
	}, cfg.Compile.Disassemble)
}
