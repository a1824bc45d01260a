package driver

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"sigil/pkg/compiler"
	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/source"
	"sigil/pkg/vm"
)

const debugDriver = false

func debugPrintf(format string, args ...interface{}) {
	if debugDriver {
		fmt.Printf(format, args...)
	}
}

// Session represents a persistent interpreter session. Globals defined by
// one run are visible to the next.
type Session struct {
	cfg Config
	vm  *vm.VM
}

// NewSession creates a session with a fresh VM. Class IDs come from the
// process-wide allocator, so they stay unique across sessions.
func NewSession(cfg Config) *Session {
	return NewSessionWithOutput(cfg, nil)
}

// NewSessionWithOutput is NewSession with print-like natives writing to
// out instead of os.Stdout.
func NewSessionWithOutput(cfg Config, out io.Writer) *Session {
	return &Session{
		cfg: cfg,
		vm:  vm.New(vm.Options{MaxFrames: cfg.VM.MaxFrames, Stdout: out}),
	}
}

// NewDefaultSession creates a session with DefaultConfig.
func NewDefaultSession() *Session {
	return NewSession(DefaultConfig())
}

// VM returns the session's virtual machine, for installing natives.
func (s *Session) VM() *vm.VM { return s.vm }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// CompileString parses, checks and compiles source code without running
// it. Globals resolve against the session's VM.
func (s *Session) CompileString(sourceCode string) (*vm.FunctionObject, []errors.SigilError) {
	return s.CompileSource(source.NewEvalSource(sourceCode))
}

// CompileSource compiles one source file.
func (s *Session) CompileSource(sf *source.SourceFile) (*vm.FunctionObject, []errors.SigilError) {
	return compileSource(sf, compiler.Options{
		MaxClassNesting: s.cfg.Compile.MaxClassNesting,
		Globals:         s.vm,
	}, s.cfg.Compile.Disassemble)
}

func compileSource(sf *source.SourceFile, opts compiler.Options, disassemble bool) (*vm.FunctionObject, []errors.SigilError) {
	log.Debugf("compiling %s", sf.DisplayPath())
	program, parseErrs := parser.NewParser(lexer.NewLexerWithSource(sf)).ParseProgram()
	if len(parseErrs) > 0 {
		log.Infof("%s: %d parse errors", sf.DisplayPath(), len(parseErrs))
		return nil, parseErrs
	}
	script, errs := compiler.NewCompiler(opts).Compile(program)
	if len(errs) > 0 {
		log.Infof("%s: %d compile errors", sf.DisplayPath(), len(errs))
		return nil, errs
	}
	if disassemble {
		log.Debugf("bytecode of %s:\n%s", sf.DisplayPath(), script.Chunk.DisassembleChunk(sf.DisplayPath()))
	}
	return script, nil
}

// RunString compiles and executes source code in the session.
func (s *Session) RunString(sourceCode string) (vm.Value, []errors.SigilError) {
	return s.RunSource(source.NewEvalSource(sourceCode))
}

// RunFile reads, compiles and executes a file.
func (s *Session) RunFile(path string) (vm.Value, []errors.SigilError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return vm.Undefined, []errors.SigilError{&errors.CompileError{
			Msg:   fmt.Sprintf("reading %s: %v", path, err),
			Cause: err,
		}}
	}
	return s.RunSource(source.FromFile(path, string(content)))
}

// RunSource compiles and executes one source file. Nothing runs when
// compilation reports an error. An uncaught private access failure is
// returned as the *privatename.Error that caused it.
func (s *Session) RunSource(sf *source.SourceFile) (vm.Value, []errors.SigilError) {
	script, errs := s.CompileSource(sf)
	if len(errs) > 0 {
		return vm.Undefined, errs
	}
	debugPrintf("// [Driver] running %s\n", sf.DisplayPath())
	result, errs := s.vm.Interpret(script)
	if len(errs) > 0 {
		s.vm.Reset()
		log.Infof("%s: uncaught %s", sf.DisplayPath(), errs[0].Message())
		return vm.Undefined, unwrapPrivateErrors(errs)
	}
	return result, nil
}

func unwrapPrivateErrors(errs []errors.SigilError) []errors.SigilError {
	out := make([]errors.SigilError, len(errs))
	for i, err := range errs {
		var perr *privatename.Error
		if stderrors.As(err, &perr) {
			out[i] = perr
			continue
		}
		out[i] = err
	}
	return out
}
