package compiler

import (
	"sigil/pkg/vm"
)

// --- Emission Helpers ---

func (c *Compiler) emitOpCode(op vm.OpCode, line int) {
	c.chunk.WriteOpCode(op, line)
}

func (c *Compiler) emitByte(b byte) {
	c.chunk.WriteByte(b)
}

func (c *Compiler) emitUint16(val uint16) {
	c.chunk.WriteUint16(val)
}

func (c *Compiler) emitLoadConstant(dest Register, constIdx uint16, line int) {
	c.emitOpCode(vm.OpLoadConst, line)
	c.emitByte(byte(dest))
	c.emitUint16(constIdx)
}

func (c *Compiler) emitLoadNewConstant(dest Register, val vm.Value, line int) {
	c.emitLoadConstant(dest, c.chunk.AddConstant(val), line)
}

func (c *Compiler) emitLoadNull(dest Register, line int) {
	c.emitOpCode(vm.OpLoadNull, line)
	c.emitByte(byte(dest))
}

func (c *Compiler) emitLoadUndefined(dest Register, line int) {
	c.emitOpCode(vm.OpLoadUndefined, line)
	c.emitByte(byte(dest))
}

func (c *Compiler) emitLoadBool(dest Register, b bool, line int) {
	if b {
		c.emitOpCode(vm.OpLoadTrue, line)
	} else {
		c.emitOpCode(vm.OpLoadFalse, line)
	}
	c.emitByte(byte(dest))
}

func (c *Compiler) emitLoadUninitialized(dest Register, line int) {
	c.emitOpCode(vm.OpLoadUninitialized, line)
	c.emitByte(byte(dest))
}

func (c *Compiler) emitMove(dest, src Register, line int) {
	if dest == src {
		return
	}
	c.emitOpCode(vm.OpMove, line)
	c.emitByte(byte(dest))
	c.emitByte(byte(src))
}

func (c *Compiler) emitCheckInitialized(reg Register, name string, line int) {
	c.emitOpCode(vm.OpCheckInitialized, line)
	c.emitByte(byte(reg))
	c.emitUint16(c.nameConstant(name))
}

func (c *Compiler) emitCheckThisUnbound(reg Register, line int) {
	c.emitOpCode(vm.OpCheckThisUnbound, line)
	c.emitByte(byte(reg))
}

// emitBinary emits one of the Rx Ry Rz operators.
func (c *Compiler) emitBinary(op vm.OpCode, dest, left, right Register, line int) {
	c.emitOpCode(op, line)
	c.emitByte(byte(dest))
	c.emitByte(byte(left))
	c.emitByte(byte(right))
}

// emitUnary emits one of the Rx Ry operators.
func (c *Compiler) emitUnary(op vm.OpCode, dest, src Register, line int) {
	c.emitOpCode(op, line)
	c.emitByte(byte(dest))
	c.emitByte(byte(src))
}

func (c *Compiler) emitGetGlobal(dest Register, idx uint16, line int) {
	c.emitOpCode(vm.OpGetGlobal, line)
	c.emitByte(byte(dest))
	c.emitUint16(idx)
}

func (c *Compiler) emitSetGlobal(idx uint16, src Register, line int) {
	c.emitOpCode(vm.OpSetGlobal, line)
	c.emitUint16(idx)
	c.emitByte(byte(src))
}

func (c *Compiler) emitLoadFree(dest Register, upvalueIndex uint8, line int) {
	c.emitOpCode(vm.OpLoadFree, line)
	c.emitByte(byte(dest))
	c.emitByte(upvalueIndex)
}

func (c *Compiler) emitSetUpvalue(upvalueIndex uint8, src Register, line int) {
	c.emitOpCode(vm.OpSetUpvalue, line)
	c.emitByte(upvalueIndex)
	c.emitByte(byte(src))
}

func (c *Compiler) emitCloseUpvalues(from Register, line int) {
	c.emitOpCode(vm.OpCloseUpvalues, line)
	c.emitByte(byte(from))
}

func (c *Compiler) emitCall(op vm.OpCode, dest, funcReg Register, argCount int, line int) {
	c.emitOpCode(op, line)
	c.emitByte(byte(dest))
	c.emitByte(byte(funcReg))
	c.emitByte(byte(argCount))
}

func (c *Compiler) emitReturn(src Register, line int) {
	c.emitOpCode(vm.OpReturn, line)
	c.emitByte(byte(src))
}

func (c *Compiler) emitMakeEmptyObject(dest Register, line int) {
	c.emitOpCode(vm.OpMakeEmptyObject, line)
	c.emitByte(byte(dest))
}

func (c *Compiler) emitGetProp(dest, obj Register, name string, line int) {
	c.emitOpCode(vm.OpGetProp, line)
	c.emitByte(byte(dest))
	c.emitByte(byte(obj))
	c.emitUint16(c.nameConstant(name))
}

func (c *Compiler) emitSetProp(obj, val Register, name string, line int) {
	c.emitOpCode(vm.OpSetProp, line)
	c.emitByte(byte(obj))
	c.emitByte(byte(val))
	c.emitUint16(c.nameConstant(name))
}

func (c *Compiler) emitDefineField(obj, val Register, name string, line int) {
	c.emitOpCode(vm.OpDefineField, line)
	c.emitByte(byte(obj))
	c.emitByte(byte(val))
	c.emitUint16(c.nameConstant(name))
}

func (c *Compiler) emitThrowError(kind byte, msg string, line int) {
	c.emitOpCode(vm.OpThrowError, line)
	c.emitByte(kind)
	c.emitUint16(c.nameConstant(msg))
}

func (c *Compiler) emitDefineMethod(op vm.OpCode, target, fn Register, name string, kind byte, line int) {
	c.emitOpCode(op, line)
	c.emitByte(byte(target))
	c.emitByte(byte(fn))
	c.emitUint16(c.nameConstant(name))
	c.emitByte(kind)
}

// emitPrivate emits the four-operand private access opcodes.
func (c *Compiler) emitPrivate(op vm.OpCode, a, b, d Register, name string, line int) {
	c.emitOpCode(op, line)
	c.emitByte(byte(a))
	c.emitByte(byte(b))
	c.emitByte(byte(d))
	c.emitUint16(c.nameConstant(name))
}

// emitPlaceholderJump emits a jump with a zero offset and returns the
// position of the offset for patchJump. srcReg is ignored for OpJump.
func (c *Compiler) emitPlaceholderJump(op vm.OpCode, srcReg Register, line int) int {
	c.emitOpCode(op, line)
	if op != vm.OpJump {
		c.emitByte(byte(srcReg))
	}
	pos := len(c.chunk.Code)
	c.emitUint16(0)
	return pos
}

// patchJump makes the jump whose offset is at placeholderPos land on the
// current end of the code.
func (c *Compiler) patchJump(placeholderPos int) {
	offset := len(c.chunk.Code) - (placeholderPos + 2)
	if offset > 32767 {
		panic(errJumpTooLong)
	}
	c.chunk.Code[placeholderPos] = byte(uint16(offset) >> 8)
	c.chunk.Code[placeholderPos+1] = byte(uint16(offset))
}

// emitLoop jumps back to loopStart.
func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emitOpCode(vm.OpJump, line)
	offset := loopStart - (len(c.chunk.Code) + 2)
	if offset < -32768 {
		panic(errJumpTooLong)
	}
	c.emitUint16(uint16(int16(offset)))
}

func (c *Compiler) nameConstant(name string) uint16 {
	return c.chunk.AddConstant(vm.String(name))
}
