package compiler

import (
	"testing"
)

func TestNewRegisterAllocator(t *testing.T) {
	ra := NewRegisterAllocator()

	if ra.nextReg != 0 {
		t.Errorf("Expected nextReg to be 0, got %d", ra.nextReg)
	}
	if ra.MaxRegs() != 0 {
		t.Errorf("Expected no registers in use, got %d", ra.MaxRegs())
	}
	if len(ra.freeRegs) != 0 {
		t.Errorf("Expected empty free list, got %v", ra.freeRegs)
	}
}

func TestBasicAllocation(t *testing.T) {
	ra := NewRegisterAllocator()

	for want := Register(0); want < 3; want++ {
		if got := ra.Alloc(); got != want {
			t.Errorf("Expected register %d, got %d", want, got)
		}
	}
	if ra.MaxRegs() != 3 {
		t.Errorf("Expected MaxRegs 3, got %d", ra.MaxRegs())
	}
}

func TestFreeListReuse(t *testing.T) {
	ra := NewRegisterAllocator()

	_ = ra.Alloc()     // R0
	reg2 := ra.Alloc() // R1
	_ = ra.Alloc()     // R2

	ra.Free(reg2)
	if got := ra.Alloc(); got != reg2 {
		t.Errorf("Expected freed register %d to be reused, got %d", reg2, got)
	}
	if got := ra.Alloc(); got != 3 {
		t.Errorf("Expected fresh register 3 once the free list is empty, got %d", got)
	}
}

func TestAllocLocalNeverReuses(t *testing.T) {
	ra := NewRegisterAllocator()

	tmp := ra.Alloc() // R0
	ra.Free(tmp)

	local := ra.AllocLocal()
	if local == tmp {
		t.Errorf("AllocLocal reused freed register %d", tmp)
	}
	if local != 1 {
		t.Errorf("Expected local in R1, got %d", local)
	}
	// The freed temporary is still available to Alloc.
	if got := ra.Alloc(); got != tmp {
		t.Errorf("Expected Alloc to reuse R%d, got %d", tmp, got)
	}
}

func TestAllocContiguous(t *testing.T) {
	ra := NewRegisterAllocator()

	r := ra.Alloc()
	ra.Free(r)

	first := ra.AllocContiguous(4)
	if first != 1 {
		t.Errorf("Expected block to start at fresh register 1, got %d", first)
	}
	if ra.Peek() != 5 {
		t.Errorf("Expected next fresh register 5, got %d", ra.Peek())
	}
	if ra.MaxRegs() != 5 {
		t.Errorf("Expected MaxRegs 5, got %d", ra.MaxRegs())
	}

	ra.FreeContiguous(first, 4)
	if len(ra.freeRegs) != 5 {
		t.Errorf("Expected 5 registers on the free list, got %d", len(ra.freeRegs))
	}
	if got := ra.Alloc(); got != first {
		t.Errorf("Expected the block's first register to come back first, got %d", got)
	}
}

func TestOutOfRegistersPanics(t *testing.T) {
	ra := NewRegisterAllocator()
	for i := 0; i < maxRegisters; i++ {
		ra.AllocLocal()
	}

	defer func() {
		if r := recover(); r != errOutOfRegisters {
			t.Errorf("Expected errOutOfRegisters panic, got %v", r)
		}
	}()
	ra.Alloc()
}

func TestAllocContiguousOverflowPanics(t *testing.T) {
	ra := NewRegisterAllocator()
	ra.AllocContiguous(maxRegisters - 2)

	defer func() {
		if r := recover(); r != errOutOfRegisters {
			t.Errorf("Expected errOutOfRegisters panic, got %v", r)
		}
	}()
	ra.AllocContiguous(3)
}
