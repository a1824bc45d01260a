package harness

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/dlclark/regexp2"

	"sigil/pkg/driver"
	"sigil/pkg/errors"
	"sigil/pkg/source"
	"sigil/pkg/vm"
)

// ResultType is what a script is expected to end with.
type ResultType int

const (
	// ExpectPass: the script runs to completion; its value is not checked.
	ExpectPass ResultType = iota
	ExpectValue
	ExpectRuntimeError
	ExpectCompileError
)

func (t ResultType) String() string {
	switch t {
	case ExpectPass:
		return "pass"
	case ExpectValue:
		return "value"
	case ExpectRuntimeError:
		return "runtime_error"
	case ExpectCompileError:
		return "compile_error"
	}
	return fmt.Sprintf("ResultType(%d)", int(t))
}

// Expectation is read from the first directive comment of a script:
//
//	// expect: 42
//	// expect_runtime_error: Cannot read private member #x
//	// expect_compile_error: must be declared in an enclosing class
//
// Values compare against the Inspect form of the completion value; errors
// match when any reported error contains the text.
type Expectation struct {
	ResultType ResultType
	Value      string
}

var directiveRegex = regexp2.MustCompile(`^\s*//\s*(expect(?:_runtime_error|_compile_error)?):\s*(.*?)\s*$`, regexp2.ECMAScript)

// ParseExpectation extracts the expectation from a script's comments. A
// script without a directive must simply run without errors.
func ParseExpectation(content string) (Expectation, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		m, err := directiveRegex.FindStringMatch(scanner.Text())
		if err != nil {
			return Expectation{}, err
		}
		if m == nil {
			continue
		}
		exp := Expectation{Value: m.GroupByNumber(2).String()}
		switch m.GroupByNumber(1).String() {
		case "expect":
			exp.ResultType = ExpectValue
		case "expect_runtime_error":
			exp.ResultType = ExpectRuntimeError
		case "expect_compile_error":
			exp.ResultType = ExpectCompileError
		}
		return exp, nil
	}
	if err := scanner.Err(); err != nil {
		return Expectation{}, fmt.Errorf("reading script: %w", err)
	}
	return Expectation{ResultType: ExpectPass}, nil
}

// Result is the outcome of running one script.
type Result struct {
	Path   string
	Value  vm.Value
	Errors []errors.SigilError
	Output string // everything print wrote
}

// RunScript runs a script in a fresh session with the assertion natives
// installed.
func RunScript(cfg driver.Config, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return RunSource(cfg, source.FromFile(path, string(content))), nil
}

// RunSource is RunScript for source already in memory.
func RunSource(cfg driver.Config, sf *source.SourceFile) *Result {
	var out bytes.Buffer
	s := driver.NewSessionWithOutput(cfg, &out)
	Install(s)
	log.Debugf("running %s", sf.DisplayPath())
	value, errs := s.RunSource(sf)
	return &Result{Path: sf.DisplayPath(), Value: value, Errors: errs, Output: out.String()}
}

// Check compares a result with an expectation and describes the mismatch,
// or returns nil.
func Check(exp Expectation, res *Result) error {
	var compileErrs, runtimeErrs []errors.SigilError
	for _, err := range res.Errors {
		if err.Kind() == "Runtime" {
			runtimeErrs = append(runtimeErrs, err)
		} else {
			compileErrs = append(compileErrs, err)
		}
	}

	switch exp.ResultType {
	case ExpectCompileError:
		if len(compileErrs) == 0 {
			return fmt.Errorf("expected compile error containing %q, got %s", exp.Value, outcome(res))
		}
		return matchAny(exp, compileErrs)
	case ExpectRuntimeError:
		if len(compileErrs) > 0 {
			return fmt.Errorf("unexpected compile errors:\n%s", formatErrors(res.Path, compileErrs))
		}
		if len(runtimeErrs) == 0 {
			return fmt.Errorf("expected runtime error containing %q, got value %s", exp.Value, res.Value.Inspect())
		}
		return matchAny(exp, runtimeErrs)
	case ExpectValue:
		if len(res.Errors) > 0 {
			return fmt.Errorf("expected value %s, got errors:\n%s", exp.Value, formatErrors(res.Path, res.Errors))
		}
		if got := res.Value.Inspect(); got != exp.Value {
			return fmt.Errorf("expected value %s, got %s", exp.Value, got)
		}
		return nil
	default:
		if len(res.Errors) > 0 {
			return fmt.Errorf("unexpected errors:\n%s", formatErrors(res.Path, res.Errors))
		}
		return nil
	}
}

func matchAny(exp Expectation, errs []errors.SigilError) error {
	for _, err := range errs {
		if strings.Contains(err.Error(), exp.Value) {
			return nil
		}
	}
	return fmt.Errorf("expected %s containing %q, got:\n%s", exp.ResultType, exp.Value, formatErrors("", errs))
}

func outcome(res *Result) string {
	if len(res.Errors) > 0 {
		return "errors:\n" + formatErrors(res.Path, res.Errors)
	}
	return "value " + res.Value.Inspect()
}

func formatErrors(path string, errs []errors.SigilError) string {
	var b strings.Builder
	for _, err := range errs {
		fmt.Fprintf(&b, "%sError: %s\n", err.Kind(), err.Message())
		if path != "" {
			fmt.Fprintf(&b, "    at %s:%d:%d\n", path, err.Pos().Line, err.Pos().Column)
		}
	}
	return b.String()
}
