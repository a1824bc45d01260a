package privatename

import (
	"fmt"

	"sigil/pkg/errors"
)

// Kind is what a private name denotes inside its declaring class.
type Kind uint8

const (
	Field Kind = iota + 1
	Method
	AccessorGetter
	AccessorSetter
	AccessorBoth
)

func (k Kind) String() string {
	switch k {
	case Field:
		return "field"
	case Method:
		return "method"
	case AccessorGetter:
		return "getter"
	case AccessorSetter:
		return "setter"
	case AccessorBoth:
		return "accessor"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsAccessor reports whether k is one of the accessor kinds.
func (k Kind) IsAccessor() bool {
	return k == AccessorGetter || k == AccessorSetter || k == AccessorBoth
}

// HasGetter reports whether reads go through a getter.
func (k Kind) HasGetter() bool { return k == AccessorGetter || k == AccessorBoth }

// HasSetter reports whether writes go through a setter.
func (k Kind) HasSetter() bool { return k == AccessorSetter || k == AccessorBoth }

// Key is the identity of a private name: the same identifier declared by
// two classes yields two different keys.
type Key struct {
	Identifier string
	ClassID    ClassID
}

// Descriptor describes one private name declared by one class.
type Descriptor struct {
	Identifier string // includes the leading '#'
	Kind       Kind
	ClassID    ClassID
	Static     bool
	Pos        errors.Position // first declaration site
}

// Key returns the descriptor's identity.
func (d *Descriptor) Key() Key {
	return Key{Identifier: d.Identifier, ClassID: d.ClassID}
}

func (d *Descriptor) String() string {
	static := ""
	if d.Static {
		static = "static "
	}
	return fmt.Sprintf("%s%s %s@%d", static, d.Kind, d.Identifier, uint32(d.ClassID))
}
