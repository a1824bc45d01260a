package privatename

import (
	"fmt"
	"sync/atomic"
)

// ClassID identifies one class declaration. IDs are never reused within a
// process, so two textually identical classes never share one.
type ClassID uint32

// NoClass is the zero ClassID; no declaration is ever assigned it.
const NoClass ClassID = 0

func (id ClassID) String() string {
	return fmt.Sprintf("class#%d", uint32(id))
}

// IDAllocator hands out ClassIDs. It is safe for concurrent use, which lets
// independent compilations share one allocator.
type IDAllocator struct {
	last atomic.Uint32
}

// Next returns a fresh ClassID.
func (a *IDAllocator) Next() ClassID {
	return ClassID(a.last.Add(1))
}

var defaultAllocator IDAllocator

// NextClassID allocates from the process-wide allocator.
func NextClassID() ClassID {
	return defaultAllocator.Next()
}
