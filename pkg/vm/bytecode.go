package vm

import (
	"fmt"
	"strings"
)

// OpCode defines the type for bytecode instructions.
type OpCode uint8

// NoRegister in a register operand means "absent".
const NoRegister byte = 255

// Enum for Opcodes (Register Machine)
const (
	// Format: OpCode <DestReg> <Operand1> <Operand2> ...
	// Constant, name and global indices are 16 bit, big endian.

	OpLoadConst         OpCode = iota // Rx ConstIdx: Rx = Constants[ConstIdx]
	OpLoadNull                        // Rx
	OpLoadUndefined                   // Rx
	OpLoadTrue                        // Rx
	OpLoadFalse                       // Rx
	OpLoadUninitialized               // Rx: Rx = TDZ marker
	OpMove                            // Rx Ry: Rx = Ry

	OpCheckInitialized // Rx NameIdx: ReferenceError if Rx holds the TDZ marker
	OpCheckThisUnbound // Rx: ReferenceError if Rx (a `this` binding) is already bound

	// Arithmetic (Dest, Left, Right)
	OpAdd       // Rx Ry Rz: Rx = Ry + Rz (numeric add or string concatenation)
	OpSubtract  // Rx Ry Rz
	OpMultiply  // Rx Ry Rz
	OpDivide    // Rx Ry Rz
	OpRemainder // Rx Ry Rz

	// Comparison (Dest, Left, Right)
	OpEqual
	OpNotEqual
	OpStrictEqual
	OpStrictNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpIn         // Rx Ry Rz: Rx = (Ry in Rz)
	OpInstanceof // Rx Ry Rz: Rx = (Ry instanceof Rz)

	// Unary
	OpNegate   // Rx Ry
	OpNot      // Rx Ry
	OpTypeof   // Rx Ry
	OpToNumber // Rx Ry

	// Control Flow. Offsets are signed and relative to the next instruction.
	OpJump              // Offset
	OpJumpIfFalse       // Rx Offset
	OpJumpIfTrue        // Rx Offset
	OpJumpIfNotNullish  // Rx Offset

	// Variables
	OpGetGlobal      // Rx GlobalIdx: ReferenceError if the global was never defined
	OpSetGlobal      // GlobalIdx Ry
	OpLoadFree       // Rx UpvalueIdx
	OpSetUpvalue     // UpvalueIdx Ry
	OpCloseUpvalues  // Rx: close open upvalues pointing at Rx or above in this frame

	// Functions
	OpClosure         // Rx FuncConstIdx UpvalueCount [IsLocal Index]...
	OpCall            // Rx FuncReg ArgCount: args in FuncReg+1...
	OpCallMethod      // Rx FuncReg ArgCount: this in FuncReg+1, args after it
	OpNew             // Rx CtorReg ArgCount: args in CtorReg+1...
	OpReturn          // Rx
	OpReturnUndefined //

	// Objects
	OpMakeEmptyObject // Rx
	OpGetProp         // Rx Ry NameIdx: Rx = Ry.name
	OpSetProp         // Rx Ry NameIdx: Rx.name = Ry
	OpGetIndex        // Rx Ry Rz: Rx = Ry[Rz]
	OpSetIndex        // Rx Ry Rz: Rx[Ry] = Rz
	OpDefineField     // ObjReg ValueReg NameIdx: enumerable own data property

	// Exceptions
	OpThrow      // Rx
	OpThrowError // ErrorKind MessageIdx: throw a fresh builtin error

	// Classes
	OpClass         // Rx CtorReg ParentReg EnvReg TemplateIdx: turn the closure in CtorReg into class Rx
	OpDefineMethod  // ObjReg ValueReg NameIdx Kind: non-enumerable method or accessor half
	OpSetFieldInit  // ClassReg InitReg
	OpSuperCall     // Rx BaseReg ArgCount: BaseReg = active function, BaseReg+1 = new.target, args after; ArgCount 255 forwards the frame's arguments
	OpInitInstance  // ObjReg FuncReg: install brands and run field initialisers of FuncReg's class on ObjReg

	// Private names
	OpPrivateEnv          // Rx TemplateIdx: fresh private environment for one class evaluation
	OpDefinePrivateMethod // EnvReg ValueReg NameIdx Kind
	OpGetPrivate          // Rx ObjReg EnvReg NameIdx: Rx = ObjReg.#name
	OpSetPrivate          // ObjReg EnvReg ValueReg NameIdx: ObjReg.#name = ValueReg
	OpHasPrivate          // Rx ObjReg EnvReg NameIdx: Rx = #name in ObjReg
	OpDefinePrivateField  // ObjReg EnvReg ValueReg NameIdx
)

// Method kinds for OpDefineMethod / OpDefinePrivateMethod.
const (
	MethodPlain byte = iota
	MethodGetter
	MethodSetter
)

// Error kinds for OpThrowError.
const (
	ErrorKindError byte = iota
	ErrorKindTypeError
	ErrorKindReferenceError
	ErrorKindSyntaxError
	ErrorKindRangeError
)

var opNames = [...]string{
	OpLoadConst:           "OpLoadConst",
	OpLoadNull:            "OpLoadNull",
	OpLoadUndefined:       "OpLoadUndefined",
	OpLoadTrue:            "OpLoadTrue",
	OpLoadFalse:           "OpLoadFalse",
	OpLoadUninitialized:   "OpLoadUninitialized",
	OpMove:                "OpMove",
	OpCheckInitialized:    "OpCheckInitialized",
	OpCheckThisUnbound:    "OpCheckThisUnbound",
	OpAdd:                 "OpAdd",
	OpSubtract:            "OpSubtract",
	OpMultiply:            "OpMultiply",
	OpDivide:              "OpDivide",
	OpRemainder:           "OpRemainder",
	OpEqual:               "OpEqual",
	OpNotEqual:            "OpNotEqual",
	OpStrictEqual:         "OpStrictEqual",
	OpStrictNotEqual:      "OpStrictNotEqual",
	OpLess:                "OpLess",
	OpGreater:             "OpGreater",
	OpLessEqual:           "OpLessEqual",
	OpGreaterEqual:        "OpGreaterEqual",
	OpIn:                  "OpIn",
	OpInstanceof:          "OpInstanceof",
	OpNegate:              "OpNegate",
	OpNot:                 "OpNot",
	OpTypeof:              "OpTypeof",
	OpToNumber:            "OpToNumber",
	OpJump:                "OpJump",
	OpJumpIfFalse:         "OpJumpIfFalse",
	OpJumpIfTrue:          "OpJumpIfTrue",
	OpJumpIfNotNullish:    "OpJumpIfNotNullish",
	OpGetGlobal:           "OpGetGlobal",
	OpSetGlobal:           "OpSetGlobal",
	OpLoadFree:            "OpLoadFree",
	OpSetUpvalue:          "OpSetUpvalue",
	OpCloseUpvalues:       "OpCloseUpvalues",
	OpClosure:             "OpClosure",
	OpCall:                "OpCall",
	OpCallMethod:          "OpCallMethod",
	OpNew:                 "OpNew",
	OpReturn:              "OpReturn",
	OpReturnUndefined:     "OpReturnUndefined",
	OpMakeEmptyObject:     "OpMakeEmptyObject",
	OpGetProp:             "OpGetProp",
	OpSetProp:             "OpSetProp",
	OpGetIndex:            "OpGetIndex",
	OpSetIndex:            "OpSetIndex",
	OpDefineField:         "OpDefineField",
	OpThrow:               "OpThrow",
	OpThrowError:          "OpThrowError",
	OpClass:               "OpClass",
	OpDefineMethod:        "OpDefineMethod",
	OpSetFieldInit:        "OpSetFieldInit",
	OpSuperCall:           "OpSuperCall",
	OpInitInstance:        "OpInitInstance",
	OpPrivateEnv:          "OpPrivateEnv",
	OpDefinePrivateMethod: "OpDefinePrivateMethod",
	OpGetPrivate:          "OpGetPrivate",
	OpSetPrivate:          "OpSetPrivate",
	OpHasPrivate:          "OpHasPrivate",
	OpDefinePrivateField:  "OpDefinePrivateField",
}

// String returns a human-readable name for the OpCode.
func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("UnknownOpcode(%d)", op)
}

// ExceptionHandler is one entry of a chunk's exception table.
type ExceptionHandler struct {
	TryStart  int // PC where the try block starts (inclusive)
	TryEnd    int // PC where the try block ends (exclusive)
	HandlerPC int // where to jump when an exception is caught
	CatchReg  int // register receiving the exception
	CloseFrom int // open upvalues at or above this register are closed first
}

// Chunk represents a sequence of bytecode instructions and associated data.
type Chunk struct {
	Code           []byte
	Constants      []Value
	Lines          []int // source line of every byte in Code
	ExceptionTable []ExceptionHandler
}

// NewChunk creates a new, empty Chunk.
func NewChunk() *Chunk {
	return &Chunk{}
}

// GetLine returns the source line of the instruction at offset, or 0.
func (c *Chunk) GetLine(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// WriteOpCode adds an opcode to the chunk.
func (c *Chunk) WriteOpCode(op OpCode, line int) {
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
}

// WriteByte adds an operand byte; it inherits the line of its opcode.
func (c *Chunk) WriteByte(b byte) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, c.lastLine())
}

// WriteUint16 adds a 16-bit operand, big endian.
func (c *Chunk) WriteUint16(val uint16) {
	c.WriteByte(byte(val >> 8))
	c.WriteByte(byte(val & 0xff))
}

func (c *Chunk) lastLine() int {
	if len(c.Lines) == 0 {
		return 0
	}
	return c.Lines[len(c.Lines)-1]
}

// AddConstant adds a value to the constant pool, reusing an equal
// primitive, and returns its index.
func (c *Chunk) AddConstant(v Value) uint16 {
	if v.typ == TypeString || v.typ == TypeNumber {
		for i, existing := range c.Constants {
			if existing.SameValue(v) {
				return uint16(i)
			}
		}
	}
	c.Constants = append(c.Constants, v)
	idx := len(c.Constants) - 1
	if idx > 65535 {
		panic("Too many constants in one chunk.")
	}
	return uint16(idx)
}

func (c *Chunk) readUint16(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

// --- Disassembly ---

// operand shapes for the disassembler
const (
	fmtNone = iota
	fmtR
	fmtRR
	fmtRRR
	fmtRK   // register, constant
	fmtRRK  // register, register, constant
	fmtRRRK // three registers, constant
	fmtJump
	fmtRJump
	fmtKR // constant, register
	fmtRU // register, upvalue index
	fmtUR // upvalue index, register
	fmtCall
	fmtRRKB // register, register, constant, kind byte
	fmtBK   // byte, constant
	fmtClass
	fmtClosure
)

var opFormats = map[OpCode]int{
	OpLoadConst: fmtRK, OpLoadNull: fmtR, OpLoadUndefined: fmtR, OpLoadTrue: fmtR, OpLoadFalse: fmtR,
	OpLoadUninitialized: fmtR, OpMove: fmtRR, OpCheckInitialized: fmtRK, OpCheckThisUnbound: fmtR,
	OpAdd: fmtRRR, OpSubtract: fmtRRR, OpMultiply: fmtRRR, OpDivide: fmtRRR, OpRemainder: fmtRRR,
	OpEqual: fmtRRR, OpNotEqual: fmtRRR, OpStrictEqual: fmtRRR, OpStrictNotEqual: fmtRRR,
	OpLess: fmtRRR, OpGreater: fmtRRR, OpLessEqual: fmtRRR, OpGreaterEqual: fmtRRR,
	OpIn: fmtRRR, OpInstanceof: fmtRRR,
	OpNegate: fmtRR, OpNot: fmtRR, OpTypeof: fmtRR, OpToNumber: fmtRR,
	OpJump: fmtJump, OpJumpIfFalse: fmtRJump, OpJumpIfTrue: fmtRJump, OpJumpIfNotNullish: fmtRJump,
	OpGetGlobal: fmtRK, OpSetGlobal: fmtKR, OpLoadFree: fmtRU, OpSetUpvalue: fmtUR, OpCloseUpvalues: fmtR,
	OpClosure: fmtClosure, OpCall: fmtCall, OpCallMethod: fmtCall, OpNew: fmtCall,
	OpReturn: fmtR, OpReturnUndefined: fmtNone,
	OpMakeEmptyObject: fmtR, OpGetProp: fmtRRK, OpSetProp: fmtRRK, OpGetIndex: fmtRRR, OpSetIndex: fmtRRR,
	OpDefineField: fmtRRK, OpThrow: fmtR, OpThrowError: fmtBK,
	OpClass: fmtClass, OpDefineMethod: fmtRRKB, OpSetFieldInit: fmtRR, OpSuperCall: fmtCall, OpInitInstance: fmtRR,
	OpPrivateEnv: fmtRK, OpDefinePrivateMethod: fmtRRKB, OpGetPrivate: fmtRRRK, OpSetPrivate: fmtRRRK,
	OpHasPrivate: fmtRRRK, OpDefinePrivateField: fmtRRRK,
}

// DisassembleChunk returns a human-readable listing of the chunk.
func (c *Chunk) DisassembleChunk(name string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("== %s ==\n", name))
	offset := 0
	for offset < len(c.Code) {
		offset = c.disassembleInstruction(&builder, offset)
	}

	if len(c.ExceptionTable) > 0 {
		builder.WriteString("\n=== Exception Table ===\n")
		for i, handler := range c.ExceptionTable {
			builder.WriteString(fmt.Sprintf("Handler %d: TryStart=%d, TryEnd=%d, HandlerPC=%d, CatchReg=R%d\n",
				i, handler.TryStart, handler.TryEnd, handler.HandlerPC, handler.CatchReg))
		}
	}

	for _, k := range c.Constants {
		if k.typ == TypeFunction {
			fn := k.AsFunction()
			fnName := fn.Name
			if fnName == "" {
				fnName = "<anonymous>"
			}
			builder.WriteString("\n")
			builder.WriteString(fn.Chunk.DisassembleChunk(fnName))
		}
	}
	return builder.String()
}

func (c *Chunk) constantString(idx uint16) string {
	if int(idx) >= len(c.Constants) {
		return "<bad constant>"
	}
	k := c.Constants[idx]
	switch k.typ {
	case TypeFunction:
		return "<fn " + k.AsFunction().Name + ">"
	case TypeClassTemplate:
		return "<class " + k.AsClassTemplate().Name + ">"
	}
	return k.Inspect()
}

// disassembleInstruction appends one instruction to the builder and returns
// the offset of the next one.
func (c *Chunk) disassembleInstruction(builder *strings.Builder, offset int) int {
	builder.WriteString(fmt.Sprintf("%04d %4d ", offset, c.GetLine(offset)))
	op := OpCode(c.Code[offset])
	format, ok := opFormats[op]
	if !ok {
		builder.WriteString(fmt.Sprintf("%s\n", op))
		return offset + 1
	}
	o := offset + 1
	r := func(i int) string { return fmt.Sprintf("R%d", c.Code[o+i]) }
	switch format {
	case fmtNone:
		builder.WriteString(fmt.Sprintf("%s\n", op))
		return o
	case fmtR:
		builder.WriteString(fmt.Sprintf("%-22s %s\n", op, r(0)))
		return o + 1
	case fmtRR:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s\n", op, r(0), r(1)))
		return o + 2
	case fmtRRR:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, %s\n", op, r(0), r(1), r(2)))
		return o + 3
	case fmtRK:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s\n", op, r(0), c.constantString(c.readUint16(o+1))))
		return o + 3
	case fmtKR:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s\n", op, c.constantString(c.readUint16(o)), r(2)))
		return o + 3
	case fmtRRK:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, %s\n", op, r(0), r(1), c.constantString(c.readUint16(o+2))))
		return o + 4
	case fmtRRRK:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, %s, %s\n", op, r(0), r(1), r(2), c.constantString(c.readUint16(o+3))))
		return o + 5
	case fmtRRKB:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, %s, kind=%d\n", op, r(0), r(1), c.constantString(c.readUint16(o+2)), c.Code[o+4]))
		return o + 5
	case fmtBK:
		builder.WriteString(fmt.Sprintf("%-22s kind=%d, %s\n", op, c.Code[o], c.constantString(c.readUint16(o+1))))
		return o + 3
	case fmtJump:
		jump := int(int16(c.readUint16(o)))
		builder.WriteString(fmt.Sprintf("%-22s %d -> %d\n", op, jump, o+2+jump))
		return o + 2
	case fmtRJump:
		jump := int(int16(c.readUint16(o + 1)))
		builder.WriteString(fmt.Sprintf("%-22s %s, %d -> %d\n", op, r(0), jump, o+3+jump))
		return o + 3
	case fmtRU:
		builder.WriteString(fmt.Sprintf("%-22s %s, U%d\n", op, r(0), c.Code[o+1]))
		return o + 2
	case fmtUR:
		builder.WriteString(fmt.Sprintf("%-22s U%d, %s\n", op, c.Code[o], r(1)))
		return o + 2
	case fmtCall:
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, args=%d\n", op, r(0), r(1), c.Code[o+2]))
		return o + 3
	case fmtClass:
		builder.WriteString(fmt.Sprintf("%-22s %s, ctor=%s, parent=%s, env=%s, %s\n", op, r(0), r(1), r(2), r(3), c.constantString(c.readUint16(o+4))))
		return o + 6
	case fmtClosure:
		count := int(c.Code[o+3])
		builder.WriteString(fmt.Sprintf("%-22s %s, %s, upvalues=%d", op, r(0), c.constantString(c.readUint16(o+1)), count))
		o += 4
		for i := 0; i < count; i++ {
			if c.Code[o] == 1 {
				builder.WriteString(fmt.Sprintf(" local:R%d", c.Code[o+1]))
			} else {
				builder.WriteString(fmt.Sprintf(" upvalue:U%d", c.Code[o+1]))
			}
			o += 2
		}
		builder.WriteString("\n")
		return o
	}
	builder.WriteString(fmt.Sprintf("%s\n", op))
	return o
}
