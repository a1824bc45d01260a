// Package harness installs the mjsunit-style assertion natives used by the
// private-name regression scripts and runs those scripts against their
// expectation comments.
package harness

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"sigil/pkg/driver"
	"sigil/pkg/vm"
)

var log = commonlog.GetLogger(driver.HarnessLogName)

// AssertionErrorName is the constructor thrown by failed assertions.
const AssertionErrorName = "MjsUnitAssertionError"

type natives struct {
	session   *driver.Session
	assertErr vm.Value
}

// Install defines the assertion natives as globals of the session:
//
//	assertThrows(code, ErrorCtor?)    code is a function or a source string
//	assertDoesNotThrow(code)
//	assertEquals(expected, actual, message?)
//	assertTrue(value, message?) / assertFalse(value, message?)
//	assertUnreachable(message?)
//	print(...values)
//
// A failed assertion throws an MjsUnitAssertionError, which scripts can
// catch like any other error.
func Install(s *driver.Session) {
	m := s.VM()
	n := &natives{
		session:   s,
		assertErr: m.NewErrorType(AssertionErrorName, m.ErrorConstructor(vm.ErrorKindError)),
	}
	m.SetGlobal("assertThrows", m.NewNativeFunction("assertThrows", 2, n.assertThrows))
	m.SetGlobal("assertDoesNotThrow", m.NewNativeFunction("assertDoesNotThrow", 1, n.assertDoesNotThrow))
	m.SetGlobal("assertEquals", m.NewNativeFunction("assertEquals", 3, n.assertEquals))
	m.SetGlobal("assertTrue", m.NewNativeFunction("assertTrue", 2, n.assertBool(true)))
	m.SetGlobal("assertFalse", m.NewNativeFunction("assertFalse", 2, n.assertBool(false)))
	m.SetGlobal("assertUnreachable", m.NewNativeFunction("assertUnreachable", 1, n.assertUnreachable))
	m.SetGlobal("print", m.NewNativeFunction("print", 0, n.print))
}

func arg(args []Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Undefined
}

// Value is shorthand inside this package.
type Value = vm.Value

func (n *natives) fail(m *vm.VM, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	errVal, err := m.Construct(n.assertErr, []Value{vm.String(msg)})
	if err != nil {
		return err
	}
	return m.Throw(errVal)
}

func withMessage(args []Value, i int, msg string) string {
	if extra := arg(args, i); !extra.IsUndefined() {
		return extra.ToString() + ": " + msg
	}
	return msg
}

// invoke runs code, which is either a function called with no receiver or
// a source string compiled in the session. Early errors in a string come
// back as a thrown SyntaxError.
func (n *natives) invoke(m *vm.VM, code Value) (thrown Value, threw bool, err error) {
	if code.IsString() {
		script, errs := n.session.CompileString(code.AsString())
		if len(errs) > 0 {
			return m.NewError(vm.ErrorKindSyntaxError, errs[0].Message()), true, nil
		}
		if _, errs := m.Interpret(script); len(errs) > 0 {
			return thrownValue(errs[0])
		}
		return vm.Undefined, false, nil
	}
	if !code.IsCallable() {
		return vm.Undefined, false, n.fail(m, "expected a function or a source string, got %s", code.Inspect())
	}
	if _, callErr := m.Call(code, vm.Undefined, nil); callErr != nil {
		return thrownValue(callErr)
	}
	return vm.Undefined, false, nil
}

func thrownValue(err error) (Value, bool, error) {
	var exc *vm.Exception
	if stderrors.As(err, &exc) {
		return exc.Value, true, nil
	}
	// Not a language exception: let it propagate.
	return vm.Undefined, false, err
}

func (n *natives) assertThrows(m *vm.VM, this Value, args []Value) (Value, error) {
	thrown, threw, err := n.invoke(m, arg(args, 0))
	if err != nil {
		return vm.Undefined, err
	}
	if !threw {
		return vm.Undefined, n.fail(m, "expected the code to throw")
	}
	ctor := arg(args, 1)
	if ctor.IsUndefined() {
		return vm.Undefined, nil
	}
	ok, err := m.InstanceOf(thrown, ctor)
	if err != nil {
		return vm.Undefined, err
	}
	if !ok {
		log.Debugf("assertThrows: got %s", describe(m, thrown))
		return vm.Undefined, n.fail(m, "expected %s to be thrown, got %s", ctor.Inspect(), describe(m, thrown))
	}
	return vm.Undefined, nil
}

func (n *natives) assertDoesNotThrow(m *vm.VM, this Value, args []Value) (Value, error) {
	thrown, threw, err := n.invoke(m, arg(args, 0))
	if err != nil {
		return vm.Undefined, err
	}
	if threw {
		return vm.Undefined, n.fail(m, "expected the code not to throw, got %s", describe(m, thrown))
	}
	return vm.Undefined, nil
}

func (n *natives) assertEquals(m *vm.VM, this Value, args []Value) (Value, error) {
	expected, actual := arg(args, 0), arg(args, 1)
	if expected.SameValue(actual) {
		return vm.Undefined, nil
	}
	return vm.Undefined, n.fail(m, "%s", withMessage(args, 2,
		fmt.Sprintf("expected <%s> found <%s>", expected.Inspect(), actual.Inspect())))
}

func (n *natives) assertBool(want bool) vm.NativeFn {
	return func(m *vm.VM, this Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.IsBoolean() && v.AsBoolean() == want {
			return vm.Undefined, nil
		}
		return vm.Undefined, n.fail(m, "%s", withMessage(args, 1,
			fmt.Sprintf("expected <%t> found <%s>", want, v.Inspect())))
	}
}

func (n *natives) assertUnreachable(m *vm.VM, this Value, args []Value) (Value, error) {
	return vm.Undefined, n.fail(m, "%s", withMessage(args, 0, "unreachable code reached"))
}

func (n *natives) print(m *vm.VM, this Value, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := m.ToString(a)
		if err != nil {
			return vm.Undefined, err
		}
		parts[i] = s
	}
	fmt.Fprintln(m.Stdout(), strings.Join(parts, " "))
	return vm.Undefined, nil
}

// describe renders a thrown value as "Name: message" when it looks like an
// error.
func describe(m *vm.VM, v Value) string {
	if !v.IsObject() {
		return v.Inspect()
	}
	s, err := m.ToString(v)
	if err != nil {
		return v.Inspect()
	}
	return s
}
