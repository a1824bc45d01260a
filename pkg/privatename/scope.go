package privatename

import (
	"fmt"

	"sigil/pkg/errors"
)

// ScopeStack holds the tables of the classes enclosing the current point of
// a traversal, outermost first. It belongs to a single traversal.
type ScopeStack struct {
	tables []*Table
}

// NewScopeStack returns an empty stack.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{}
}

// Enter pushes t and returns the function that pops it. Calling release
// restores the depth the stack had before Enter, dropping anything pushed
// later that was not released, and is a no-op on repeated calls. It is
// meant to be deferred.
func (s *ScopeStack) Enter(t *Table) (release func()) {
	if !t.Sealed() {
		panic(fmt.Sprintf("privatename: entering unsealed table of %s", t.ClassID()))
	}
	depth := len(s.tables)
	s.tables = append(s.tables, t)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(s.tables) < depth {
			return
		}
		for i := depth; i < len(s.tables); i++ {
			s.tables[i] = nil
		}
		s.tables = s.tables[:depth]
	}
}

// Depth returns the number of tables on the stack.
func (s *ScopeStack) Depth() int { return len(s.tables) }

// Innermost returns the table on top of the stack, or nil.
func (s *ScopeStack) Innermost() *Table {
	if len(s.tables) == 0 {
		return nil
	}
	return s.tables[len(s.tables)-1]
}

// Lookup searches from the innermost table outwards and returns the first
// declaration of identifier.
func (s *ScopeStack) Lookup(identifier string) (*Descriptor, bool) {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if d, ok := s.tables[i].Lookup(identifier); ok {
			return d, true
		}
	}
	return nil, false
}

// Resolve binds a reference to identifier at pos, or reports
// UnresolvedPrivateName.
func (s *ScopeStack) Resolve(identifier string, pos errors.Position) (*Descriptor, *Error) {
	if d, ok := s.Lookup(identifier); ok {
		return d, nil
	}
	return nil, newError(UnresolvedPrivateName, identifier, NoClass, pos,
		fmt.Sprintf("Private field '%s' must be declared in an enclosing class", identifier))
}
