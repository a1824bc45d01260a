package compiler

import "fmt"

// Debug flag for register allocation tracing
const debugRegAlloc = false

// Register represents a virtual machine register index.
type Register uint8

// NoHint marks an absent register operand. It matches vm.NoRegister.
const NoHint Register = 255

// maxRegisters leaves the top indices free for the NoHint sentinel.
const maxRegisters = 250

// errOutOfRegisters is the panic value of an exhausted allocator; Compile
// turns it into a CompileError.
var errOutOfRegisters = fmt.Errorf("function needs more than %d registers", maxRegisters)

// RegisterAllocator manages the registers of one function.
//
// Temporaries come from Alloc and go back with Free. Variables come from
// AllocLocal, which always takes a fresh register above every register
// handed out so far: a variable's register is never shared, so an open
// upvalue pointing at it can only ever see that variable.
type RegisterAllocator struct {
	nextReg  Register // Index of the next fresh register
	maxReg   Register // Highest register index allocated so far
	freeRegs []Register
}

// NewRegisterAllocator creates a new allocator for a function.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{freeRegs: make([]Register, 0, 16)}
}

// Alloc allocates a temporary register, reusing freed ones first.
func (ra *RegisterAllocator) Alloc() Register {
	if n := len(ra.freeRegs); n > 0 {
		reg := ra.freeRegs[n-1]
		ra.freeRegs = ra.freeRegs[:n-1]
		if debugRegAlloc {
			fmt.Printf("[REGALLOC] REUSE R%d (%d free)\n", reg, len(ra.freeRegs))
		}
		return reg
	}
	return ra.fresh()
}

// AllocLocal allocates a register for a variable.
func (ra *RegisterAllocator) AllocLocal() Register {
	reg := ra.fresh()
	if debugRegAlloc {
		fmt.Printf("[REGALLOC] LOCAL R%d\n", reg)
	}
	return reg
}

func (ra *RegisterAllocator) fresh() Register {
	if ra.nextReg >= maxRegisters {
		panic(errOutOfRegisters)
	}
	reg := ra.nextReg
	ra.nextReg++
	if reg > ra.maxReg {
		ra.maxReg = reg
	}
	return reg
}

// AllocContiguous allocates count consecutive fresh registers and returns
// the first. Calls need their callee and arguments side by side.
func (ra *RegisterAllocator) AllocContiguous(count int) Register {
	if count <= 0 {
		panic("AllocContiguous: count must be positive")
	}
	if int(ra.nextReg)+count > maxRegisters {
		panic(errOutOfRegisters)
	}
	first := ra.nextReg
	ra.nextReg += Register(count)
	if ra.nextReg-1 > ra.maxReg {
		ra.maxReg = ra.nextReg - 1
	}
	if debugRegAlloc {
		fmt.Printf("[REGALLOC] CONTIGUOUS R%d-R%d\n", first, ra.nextReg-1)
	}
	return first
}

// Free returns a temporary register.
func (ra *RegisterAllocator) Free(reg Register) {
	if debugRegAlloc {
		fmt.Printf("[REGALLOC] FREE R%d\n", reg)
	}
	ra.freeRegs = append(ra.freeRegs, reg)
}

// FreeContiguous returns a block from AllocContiguous.
func (ra *RegisterAllocator) FreeContiguous(first Register, count int) {
	for i := count - 1; i >= 0; i-- {
		ra.Free(first + Register(i))
	}
}

// Peek returns the index of the next fresh register.
func (ra *RegisterAllocator) Peek() Register {
	return ra.nextReg
}

// MaxRegs returns the number of register slots the function needs.
func (ra *RegisterAllocator) MaxRegs() int {
	if ra.nextReg == 0 {
		return 0
	}
	return int(ra.maxReg) + 1
}

func (r Register) String() string {
	return fmt.Sprintf("R%d", r)
}
