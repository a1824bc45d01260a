package vm

import (
	stderrors "errors"
	"fmt"

	"sigil/pkg/errors"
	"sigil/pkg/privatename"
)

const debugExceptions = false

// Exception is a thrown language value travelling through Go code. It is
// what Interpret, Call and natives see; it satisfies errors.SigilError so
// the driver can display it with the compile errors.
type Exception struct {
	Value    Value
	Position errors.Position
	// Cause is the Go-level failure the exception was made from, if any:
	// a *privatename.Error for failed private accesses.
	Cause error
}

func (e *Exception) Error() string {
	return fmt.Sprintf("Runtime Error at %d:%d: %s", e.Position.Line, e.Position.Column, e.Message())
}

func (e *Exception) Pos() errors.Position { return e.Position }
func (e *Exception) Kind() string         { return "Runtime" }
func (e *Exception) Unwrap() error        { return e.Cause }

// Message renders the exception the way an uncaught one is reported.
func (e *Exception) Message() string {
	return "Uncaught " + describeThrown(e.Value)
}

// describeThrown renders error objects as "Name: message" without running
// user code.
func describeThrown(v Value) string {
	h := v.header()
	if h == nil {
		return v.ToString()
	}
	name, hasName := dataProperty(h, "name")
	if !hasName || !name.IsString() {
		return v.Inspect()
	}
	msg, _ := dataProperty(h, "message")
	if !msg.IsString() || msg.str == "" {
		return name.str
	}
	return name.str + ": " + msg.str
}

func dataProperty(h *Object, name string) (Value, bool) {
	p, ok := h.lookup(name)
	if !ok || p.Accessor {
		return Undefined, false
	}
	return p.Value, true
}

// --- Raising ---

func (vm *VM) newException(kind byte, msg string) *Exception {
	return &Exception{Value: vm.NewError(kind, msg), Position: vm.currentPosition()}
}

func (vm *VM) typeError(format string, args ...interface{}) *Exception {
	return vm.newException(ErrorKindTypeError, fmt.Sprintf(format, args...))
}

func (vm *VM) referenceError(format string, args ...interface{}) *Exception {
	return vm.newException(ErrorKindReferenceError, fmt.Sprintf(format, args...))
}

func (vm *VM) rangeError(format string, args ...interface{}) *Exception {
	return vm.newException(ErrorKindRangeError, fmt.Sprintf(format, args...))
}

// Throw wraps a value so natives can throw it.
func (vm *VM) Throw(v Value) error {
	return &Exception{Value: v, Position: vm.currentPosition()}
}

// toException turns any error reaching the interpreter loop into a
// language exception. Private access failures become TypeErrors that keep
// the structured error as their cause.
func (vm *VM) toException(err error) *Exception {
	var exc *Exception
	if stderrors.As(err, &exc) {
		if !exc.Position.IsValid() {
			exc.Position = vm.currentPosition()
		}
		return exc
	}
	pos := vm.currentPosition()
	var perr *privatename.Error
	if stderrors.As(err, &perr) {
		located := perr.WithPosition(pos)
		return &Exception{Value: vm.NewError(ErrorKindTypeError, perr.Msg), Position: pos, Cause: located}
	}
	var serr errors.SigilError
	if stderrors.As(err, &serr) {
		kind := ErrorKindError
		if serr.Kind() == "Syntax" {
			kind = ErrorKindSyntaxError
		}
		return &Exception{Value: vm.NewError(kind, serr.Message()), Position: pos, Cause: err}
	}
	return &Exception{Value: vm.NewError(ErrorKindError, err.Error()), Position: pos, Cause: err}
}

// raise converts err and unwinds to the innermost handler at or above
// stopDepth. It returns nil when a handler took over, or the exception when
// none did; in that case every frame above stopDepth is gone.
func (vm *VM) raise(err error, stopDepth int) *Exception {
	exc := vm.toException(err)
	if debugExceptions {
		fmt.Printf("[DEBUG exceptions.go] raise %s at depth %d (stop %d)\n", exc.Message(), vm.frameCount, stopDepth)
	}
	if vm.unwind(exc, stopDepth) {
		return nil
	}
	return exc
}

// unwind searches the exception tables from the current frame outwards.
// Handlers are listed innermost first, so the first match wins.
func (vm *VM) unwind(exc *Exception, stopDepth int) bool {
	for vm.frameCount > stopDepth {
		frame := &vm.frames[vm.frameCount-1]
		chunk := frame.closure.Fn.Chunk
		pc := frame.ip - 1
		for i := range chunk.ExceptionTable {
			handler := &chunk.ExceptionTable[i]
			if pc >= handler.TryStart && pc < handler.TryEnd {
				vm.closeUpvalues(frame.base + handler.CloseFrom)
				frame.registers[handler.CatchReg] = exc.Value
				frame.ip = handler.HandlerPC
				if debugExceptions {
					fmt.Printf("[DEBUG exceptions.go] caught in %s at pc %d\n", frame.closure.Fn.Name, handler.HandlerPC)
				}
				return true
			}
		}
		vm.closeUpvalues(frame.base)
		vm.popFrame()
	}
	return false
}
