package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"sigil/pkg/errors"
)

const vmDebug = false

func debugPrintf(format string, args ...interface{}) {
	if vmDebug {
		fmt.Printf(format, args...)
	}
}

// RegFileSize is the most registers one function may use; the compiler
// stays below it.
const RegFileSize = 256

// DefaultMaxFrames bounds the call stack when Options.MaxFrames is zero.
const DefaultMaxFrames = 512

// regsPerFrame sizes the register stack: frames use what their function
// needs, so the average is well below RegFileSize.
const regsPerFrame = 64

// CallFrame represents a single active function call.
type CallFrame struct {
	closure *ClosureObject
	ip      int // Instruction pointer within closure.Fn.Chunk.Code
	// registers is this frame's window into the VM's register stack;
	// base is where the window starts.
	registers      []Value
	base           int
	targetRegister byte // Which register in the caller receives the result

	args      []Value // arguments as passed, for forwarding to super(...)
	construct bool    // entered through new or super(...)
	newTarget Value
}

// Options configure a VM.
type Options struct {
	MaxFrames int       // 0 means DefaultMaxFrames
	Stdout    io.Writer // nil means os.Stdout
}

// VM represents the virtual machine state. A VM is single-threaded; run
// one per goroutine.
type VM struct {
	opts Options

	frames     []CallFrame
	frameCount int

	// Register file, treated as a stack. It is allocated once so pointers
	// held by open upvalues stay valid.
	registerStack []Value
	nextRegSlot   int

	// Upvalues still pointing into registerStack, oldest first.
	openUpvalues []*Upvalue

	globals     []Value
	globalIndex map[string]int
	globalNames []string

	realm *Realm
}

// New creates a VM with the builtins installed.
func New(opts Options) *VM {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = DefaultMaxFrames
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	vm := &VM{
		opts:          opts,
		frames:        make([]CallFrame, opts.MaxFrames),
		registerStack: make([]Value, opts.MaxFrames*regsPerFrame),
		openUpvalues:  make([]*Upvalue, 0, 16),
		globalIndex:   make(map[string]int),
	}
	vm.realm = newRealm(vm)
	return vm
}

// Stdout is where print-like natives write.
func (vm *VM) Stdout() io.Writer { return vm.opts.Stdout }

// Reset drops any frames left over from an aborted run. Globals survive.
func (vm *VM) Reset() {
	vm.frameCount = 0
	vm.nextRegSlot = 0
	vm.openUpvalues = vm.openUpvalues[:0]
}

// --- Globals ---

// GlobalIndex returns the slot of the named global, creating an unset one
// on first use. The compiler resolves free identifiers through it.
func (vm *VM) GlobalIndex(name string) int {
	if idx, ok := vm.globalIndex[name]; ok {
		return idx
	}
	idx := len(vm.globals)
	vm.globals = append(vm.globals, unset)
	vm.globalIndex[name] = idx
	vm.globalNames = append(vm.globalNames, name)
	return idx
}

// SetGlobal defines or overwrites a global binding.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globals[vm.GlobalIndex(name)] = v
}

// GetGlobal returns the value of a global and whether it is defined.
func (vm *VM) GetGlobal(name string) (Value, bool) {
	idx, ok := vm.globalIndex[name]
	if !ok || vm.globals[idx].typ == typeUnset {
		return Undefined, false
	}
	return vm.globals[idx], true
}

// --- Execution ---

// Interpret runs a compiled script on top of the current VM state and
// returns its completion value. An uncaught exception is returned as the
// single error.
func (vm *VM) Interpret(script *FunctionObject) (Value, []errors.SigilError) {
	closure := vm.newClosure(script, nil)
	stop := vm.frameCount
	if err := vm.pushFrame(closure, Undefined, nil, 0, false, Undefined); err != nil {
		return Undefined, []errors.SigilError{vm.toException(err)}
	}
	result, err := vm.run(stop)
	if err != nil {
		return Undefined, []errors.SigilError{vm.toException(err)}
	}
	return result, nil
}

func (vm *VM) newClosure(fn *FunctionObject, upvalues []*Upvalue) *ClosureObject {
	cl := &ClosureObject{Fn: fn, Upvalues: upvalues}
	cl.proto = ObjectValue(vm.realm.FunctionPrototype)
	if fn.Kind == FuncNormal {
		proto := NewObject(ObjectValue(vm.realm.ObjectPrototype))
		proto.SetOwnNonEnumerable("constructor", ClosureValue(cl))
		cl.put("prototype", &Property{Value: ObjectValue(proto), Writable: true})
	}
	return cl
}

// pushFrame enters a closure. Arguments beyond the arity are dropped
// (they stay reachable through frame.args); missing ones are undefined.
func (vm *VM) pushFrame(cl *ClosureObject, this Value, args []Value, target byte, construct bool, newTarget Value) error {
	fn := cl.Fn
	size := fn.RegisterSize
	if size <= 0 {
		size = 1
	}
	if vm.frameCount >= len(vm.frames) || vm.nextRegSlot+size > len(vm.registerStack) {
		return vm.rangeError("Maximum call stack size exceeded")
	}
	frame := &vm.frames[vm.frameCount]
	frame.closure = cl
	frame.ip = 0
	frame.base = vm.nextRegSlot
	frame.registers = vm.registerStack[frame.base : frame.base+size]
	frame.targetRegister = target
	frame.construct = construct
	frame.newTarget = newTarget
	frame.args = append(frame.args[:0], args...)

	for i := range frame.registers {
		frame.registers[i] = Undefined
	}
	n := len(args)
	if n > fn.Arity {
		n = fn.Arity
	}
	copy(frame.registers, args[:n])
	if fn.ThisRegister >= 0 {
		if fn.Kind == FuncDerivedConstructor {
			frame.registers[fn.ThisRegister] = Uninitialized
		} else {
			frame.registers[fn.ThisRegister] = this
		}
	}
	if fn.CalleeRegister >= 0 {
		frame.registers[fn.CalleeRegister] = ClosureValue(cl)
	}
	if fn.NewTargetRegister >= 0 {
		frame.registers[fn.NewTargetRegister] = newTarget
	}

	vm.nextRegSlot += size
	vm.frameCount++
	debugPrintf("// [VM] enter %s (depth %d, base %d)\n", fn.Name, vm.frameCount, frame.base)
	return nil
}

func (vm *VM) popFrame() {
	vm.frameCount--
	frame := &vm.frames[vm.frameCount]
	vm.nextRegSlot = frame.base
	frame.closure = nil
}

// finishFrame leaves the current frame with result and applies the
// constructor return rules. The frame is gone even when an error is
// returned, so the error belongs to the caller.
func (vm *VM) finishFrame(result Value) (Value, error) {
	frame := &vm.frames[vm.frameCount-1]
	fn := frame.closure.Fn
	var err error
	if frame.construct && !result.IsObject() {
		switch {
		case fn.Kind == FuncDerivedConstructor && !result.IsUndefined():
			err = vm.typeError("Derived constructors may only return object or undefined")
		case fn.ThisRegister < 0:
			err = vm.typeError("%s is not a constructor", fn.Name)
		default:
			this := frame.registers[fn.ThisRegister]
			if this.IsUninitialized() {
				err = vm.referenceError("Must call super constructor in derived class before accessing 'this' or returning from derived constructor")
			}
			result = this
		}
	}
	vm.closeUpvalues(frame.base)
	vm.popFrame()
	return result, err
}

// run executes frames until the frame count drops back to stopDepth. It
// returns the value of the frame that returned there, or the exception
// that no handler above stopDepth caught.
func (vm *VM) run(stopDepth int) (Value, error) {
	var (
		frame     *CallFrame
		code      []byte
		constants []Value
		registers []Value
		ip        int
	)
	reload := func() {
		frame = &vm.frames[vm.frameCount-1]
		code = frame.closure.Fn.Chunk.Code
		constants = frame.closure.Fn.Chunk.Constants
		registers = frame.registers
		ip = frame.ip
	}
	readUint16 := func() uint16 {
		v := uint16(code[ip])<<8 | uint16(code[ip+1])
		ip += 2
		return v
	}
	reload()

	for {
		if ip >= len(code) {
			// Running off the end is an implicit `return undefined`.
			frame.ip = ip
			result, err := vm.finishFrame(Undefined)
			if vm.frameCount == stopDepth {
				return result, err
			}
			reload()
			if err != nil {
				if exc := vm.raise(err, stopDepth); exc != nil {
					return Undefined, exc
				}
				reload()
				continue
			}
			registers[vm.frames[vm.frameCount].targetRegister] = result
			continue
		}

		op := OpCode(code[ip])
		ip++
		var err error

		switch op {
		case OpLoadConst:
			reg := code[ip]
			ip++
			registers[reg] = constants[readUint16()]

		case OpLoadNull:
			registers[code[ip]] = Null
			ip++

		case OpLoadUndefined:
			registers[code[ip]] = Undefined
			ip++

		case OpLoadTrue:
			registers[code[ip]] = True
			ip++

		case OpLoadFalse:
			registers[code[ip]] = False
			ip++

		case OpLoadUninitialized:
			registers[code[ip]] = Uninitialized
			ip++

		case OpMove:
			registers[code[ip]] = registers[code[ip+1]]
			ip += 2

		case OpCheckInitialized:
			reg := code[ip]
			ip++
			name := constants[readUint16()].AsString()
			if registers[reg].IsUninitialized() {
				if name == "this" {
					err = vm.referenceError("Must call super constructor in derived class before accessing 'this' or returning from derived constructor")
				} else {
					err = vm.referenceError("Cannot access '%s' before initialization", name)
				}
			}

		case OpCheckThisUnbound:
			reg := code[ip]
			ip++
			if !registers[reg].IsUninitialized() {
				err = vm.referenceError("Super constructor may only be called once")
			}

		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpRemainder,
			OpEqual, OpNotEqual, OpStrictEqual, OpStrictNotEqual,
			OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpIn, OpInstanceof:
			dest, left, right := code[ip], registers[code[ip+1]], registers[code[ip+2]]
			ip += 3
			frame.ip = ip
			var result Value
			result, err = vm.binaryOp(op, left, right)
			if err == nil {
				registers[dest] = result
			}

		case OpNegate:
			registers[code[ip]] = Number(-registers[code[ip+1]].ToFloat())
			ip += 2

		case OpNot:
			registers[code[ip]] = Bool(registers[code[ip+1]].IsFalsey())
			ip += 2

		case OpTypeof:
			registers[code[ip]] = String(registers[code[ip+1]].TypeofString())
			ip += 2

		case OpToNumber:
			registers[code[ip]] = Number(registers[code[ip+1]].ToFloat())
			ip += 2

		case OpJump:
			offset := int16(readUint16())
			ip += int(offset)

		case OpJumpIfFalse, OpJumpIfTrue, OpJumpIfNotNullish:
			v := registers[code[ip]]
			ip++
			offset := int16(readUint16())
			var jump bool
			switch op {
			case OpJumpIfFalse:
				jump = v.IsFalsey()
			case OpJumpIfTrue:
				jump = v.IsTruthy()
			default:
				jump = !v.IsNullish()
			}
			if jump {
				ip += int(offset)
			}

		case OpGetGlobal:
			reg := code[ip]
			ip++
			idx := readUint16()
			v := vm.globals[idx]
			switch v.typ {
			case typeUnset:
				err = vm.referenceError("%s is not defined", vm.globalNames[idx])
			case TypeUninitialized:
				err = vm.referenceError("Cannot access '%s' before initialization", vm.globalNames[idx])
			default:
				registers[reg] = v
			}

		case OpSetGlobal:
			idx := readUint16()
			vm.globals[idx] = registers[code[ip]]
			ip++

		case OpLoadFree:
			registers[code[ip]] = *frame.closure.Upvalues[code[ip+1]].Resolve()
			ip += 2

		case OpSetUpvalue:
			*frame.closure.Upvalues[code[ip]].Resolve() = registers[code[ip+1]]
			ip += 2

		case OpCloseUpvalues:
			vm.closeUpvalues(frame.base + int(code[ip]))
			ip++

		case OpClosure:
			dest := code[ip]
			ip++
			fn := constants[readUint16()].AsFunction()
			count := int(code[ip])
			ip++
			upvalues := make([]*Upvalue, count)
			for i := 0; i < count; i++ {
				isLocal, index := code[ip], code[ip+1]
				ip += 2
				if isLocal == 1 {
					upvalues[i] = vm.captureUpvalue(frame.base + int(index))
				} else {
					upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			registers[dest] = ClosureValue(vm.newClosure(fn, upvalues))

		case OpCall, OpCallMethod, OpNew:
			dest, funcReg, argc := code[ip], int(code[ip+1]), int(code[ip+2])
			ip += 3
			frame.ip = ip
			callee := registers[funcReg]
			var pushed bool
			var result Value
			switch op {
			case OpCall:
				pushed, result, err = vm.callValue(callee, Undefined, registers[funcReg+1:funcReg+1+argc], dest)
			case OpCallMethod:
				pushed, result, err = vm.callValue(callee, registers[funcReg+1], registers[funcReg+2:funcReg+2+argc], dest)
			default:
				pushed, result, err = vm.constructValue(callee, registers[funcReg+1:funcReg+1+argc], callee, dest)
			}
			if pushed {
				reload()
				continue
			}
			if err == nil {
				registers[dest] = result
			}

		case OpSuperCall:
			dest, baseReg, argc := code[ip], int(code[ip+1]), int(code[ip+2])
			ip += 3
			frame.ip = ip
			var args []Value
			if argc == int(NoRegister) {
				args = append([]Value(nil), frame.args...)
			} else {
				args = registers[baseReg+2 : baseReg+2+argc]
			}
			var pushed bool
			var result Value
			pushed, result, err = vm.superCall(registers[baseReg], registers[baseReg+1], args, dest)
			if pushed {
				reload()
				continue
			}
			if err == nil {
				registers[dest] = result
			}

		case OpReturn, OpReturnUndefined:
			result := Undefined
			if op == OpReturn {
				result = registers[code[ip]]
				ip++
			}
			frame.ip = ip
			result, err = vm.finishFrame(result)
			if vm.frameCount == stopDepth {
				return result, err
			}
			reload()
			if err == nil {
				registers[vm.frames[vm.frameCount].targetRegister] = result
				continue
			}

		case OpMakeEmptyObject:
			registers[code[ip]] = ObjectValue(NewObject(ObjectValue(vm.realm.ObjectPrototype)))
			ip++

		case OpGetProp:
			dest, obj := code[ip], registers[code[ip+1]]
			ip += 2
			name := constants[readUint16()].AsString()
			frame.ip = ip
			var v Value
			if v, err = vm.GetProperty(obj, name); err == nil {
				registers[dest] = v
			}

		case OpSetProp:
			obj, val := registers[code[ip]], registers[code[ip+1]]
			ip += 2
			name := constants[readUint16()].AsString()
			frame.ip = ip
			err = vm.SetProperty(obj, name, val)

		case OpGetIndex:
			dest, obj, key := code[ip], registers[code[ip+1]], registers[code[ip+2]]
			ip += 3
			frame.ip = ip
			var name string
			if name, err = vm.propertyKey(key); err == nil {
				var v Value
				if v, err = vm.GetProperty(obj, name); err == nil {
					registers[dest] = v
				}
			}

		case OpSetIndex:
			obj, key, val := registers[code[ip]], registers[code[ip+1]], registers[code[ip+2]]
			ip += 3
			frame.ip = ip
			var name string
			if name, err = vm.propertyKey(key); err == nil {
				err = vm.SetProperty(obj, name, val)
			}

		case OpDefineField:
			obj, val := registers[code[ip]], registers[code[ip+1]]
			ip += 2
			name := constants[readUint16()].AsString()
			if h := obj.header(); h != nil {
				h.put(name, &Property{Value: val, Enumerable: true, Writable: true})
			}

		case OpThrow:
			v := registers[code[ip]]
			ip++
			err = &Exception{Value: v}

		case OpThrowError:
			kind := code[ip]
			ip++
			msg := constants[readUint16()].AsString()
			err = vm.newException(kind, msg)

		case OpClass:
			dest, ctorReg, parentReg, envReg := code[ip], code[ip+1], code[ip+2], code[ip+3]
			ip += 4
			tmpl := constants[readUint16()].AsClassTemplate()
			frame.ip = ip
			parent := Undefined
			if parentReg != NoRegister {
				parent = registers[parentReg]
			}
			var env *PrivateEnvironment
			if envReg != NoRegister {
				env = registers[envReg].asPrivateEnv()
			}
			var class Value
			if class, err = vm.defineClass(tmpl, registers[ctorReg], parent, env); err == nil {
				registers[dest] = class
			}

		case OpDefineMethod:
			obj, val := registers[code[ip]], registers[code[ip+1]]
			ip += 2
			name := constants[readUint16()].AsString()
			kind := code[ip]
			ip++
			vm.defineMethod(obj.header(), name, val, kind)

		case OpSetFieldInit:
			class, init := registers[code[ip]], registers[code[ip+1]]
			ip += 2
			class.AsClosure().Class.FieldInit = init

		case OpInitInstance:
			obj, fn := registers[code[ip]], registers[code[ip+1]]
			ip += 2
			frame.ip = ip
			err = vm.initializeInstance(obj, fn.AsClosure())

		case OpPrivateEnv:
			reg := code[ip]
			ip++
			tmpl := constants[readUint16()].AsClassTemplate()
			registers[reg] = privateEnvValue(newPrivateEnvironment(tmpl))

		case OpDefinePrivateMethod:
			env, val := registers[code[ip]].asPrivateEnv(), registers[code[ip+1]]
			ip += 2
			name := constants[readUint16()].AsString()
			kind := code[ip]
			ip++
			env.define(name, val, kind)

		case OpGetPrivate:
			dest, obj, env := code[ip], registers[code[ip+1]], registers[code[ip+2]].asPrivateEnv()
			ip += 3
			name := constants[readUint16()].AsString()
			frame.ip = ip
			var v Value
			if v, err = vm.getPrivate(obj, env, name); err == nil {
				registers[dest] = v
			}

		case OpSetPrivate:
			obj, env, val := registers[code[ip]], registers[code[ip+1]].asPrivateEnv(), registers[code[ip+2]]
			ip += 3
			name := constants[readUint16()].AsString()
			frame.ip = ip
			err = vm.setPrivate(obj, env, name, val)

		case OpHasPrivate:
			dest, obj, env := code[ip], registers[code[ip+1]], registers[code[ip+2]].asPrivateEnv()
			ip += 3
			name := constants[readUint16()].AsString()
			frame.ip = ip
			var has bool
			if has, err = vm.hasPrivate(obj, env, name); err == nil {
				registers[dest] = Bool(has)
			}

		case OpDefinePrivateField:
			obj, env, val := registers[code[ip]], registers[code[ip+1]].asPrivateEnv(), registers[code[ip+2]]
			ip += 3
			name := constants[readUint16()].AsString()
			frame.ip = ip
			err = vm.definePrivateField(obj, env, name, val)

		default:
			frame.ip = ip
			return Undefined, &errors.RuntimeError{
				Position: vm.currentPosition(),
				Msg:      fmt.Sprintf("Unknown opcode %s", op),
			}
		}

		if err != nil {
			frame.ip = ip
			if exc := vm.raise(err, stopDepth); exc != nil {
				return Undefined, exc
			}
			reload()
		}
	}
}

// binaryOp evaluates the two-operand opcodes. It may call into user code
// (toString during concatenation).
func (vm *VM) binaryOp(op OpCode, left, right Value) (Value, error) {
	switch op {
	case OpAdd:
		if left.IsNumber() && right.IsNumber() {
			return Number(left.num + right.num), nil
		}
		if left.IsString() || right.IsString() || left.IsObject() || right.IsObject() {
			ls, err := vm.ToString(left)
			if err != nil {
				return Undefined, err
			}
			rs, err := vm.ToString(right)
			if err != nil {
				return Undefined, err
			}
			return String(ls + rs), nil
		}
		return Number(left.ToFloat() + right.ToFloat()), nil
	case OpSubtract:
		return Number(left.ToFloat() - right.ToFloat()), nil
	case OpMultiply:
		return Number(left.ToFloat() * right.ToFloat()), nil
	case OpDivide:
		return Number(left.ToFloat() / right.ToFloat()), nil
	case OpRemainder:
		return Number(math.Mod(left.ToFloat(), right.ToFloat())), nil
	case OpEqual:
		return Bool(left.Equals(right)), nil
	case OpNotEqual:
		return Bool(!left.Equals(right)), nil
	case OpStrictEqual:
		return Bool(left.StrictlyEquals(right)), nil
	case OpStrictNotEqual:
		return Bool(!left.StrictlyEquals(right)), nil
	case OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		return Bool(compare(op, left, right)), nil
	case OpIn:
		return vm.hasProperty(left, right)
	case OpInstanceof:
		ok, err := vm.InstanceOf(left, right)
		return Bool(ok), err
	}
	panic(fmt.Sprintf("vm: %s is not a binary operator", op))
}

func compare(op OpCode, left, right Value) bool {
	if left.IsString() && right.IsString() {
		switch op {
		case OpLess:
			return left.str < right.str
		case OpGreater:
			return left.str > right.str
		case OpLessEqual:
			return left.str <= right.str
		default:
			return left.str >= right.str
		}
	}
	l, r := left.ToFloat(), right.ToFloat()
	switch op {
	case OpLess:
		return l < r
	case OpGreater:
		return l > r
	case OpLessEqual:
		return l <= r
	default:
		return l >= r
	}
}

// --- Upvalues ---

func (vm *VM) captureUpvalue(slot int) *Upvalue {
	for _, uv := range vm.openUpvalues {
		if uv.slot == slot {
			return uv
		}
	}
	uv := &Upvalue{Location: &vm.registerStack[slot], slot: slot}
	vm.openUpvalues = append(vm.openUpvalues, uv)
	return uv
}

// closeUpvalues closes every open upvalue at or above slot.
func (vm *VM) closeUpvalues(slot int) {
	kept := vm.openUpvalues[:0]
	for _, uv := range vm.openUpvalues {
		if uv.slot >= slot {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	for i := len(kept); i < len(vm.openUpvalues); i++ {
		vm.openUpvalues[i] = nil
	}
	vm.openUpvalues = kept
}

func (vm *VM) currentPosition() errors.Position {
	if vm.frameCount == 0 {
		return errors.Position{}
	}
	frame := &vm.frames[vm.frameCount-1]
	fn := frame.closure.Fn
	return errors.Position{Line: fn.Chunk.GetLine(frame.ip - 1), Column: 1, Source: fn.Source}
}
