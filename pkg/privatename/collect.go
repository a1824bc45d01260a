package privatename

import (
	"fmt"

	"sigil/pkg/errors"
)

// MemberKind is the syntactic form of a class element as seen by Collect.
type MemberKind uint8

const (
	MemberField MemberKind = iota + 1
	MemberMethod
	MemberGetter
	MemberSetter
)

// Member is one class element in declaration order.
type Member struct {
	Name    string // private names include '#'
	Private bool
	Kind    MemberKind
	Static  bool
	Pos     errors.Position
}

// Collect builds the private-name table of one class body. Every member is
// examined before the outcome is decided, so all conflicts are reported in
// one pass. On failure no table is returned.
//
// Merge rules: a getter and a setter with the same identifier and the same
// staticness merge into AccessorBoth regardless of order; any other repeat
// of an identifier is a DuplicatePrivateName.
func Collect(id ClassID, members []Member) (*Table, []*Error) {
	t := NewTable(id)
	var errs []*Error

	for _, m := range members {
		if !m.Private {
			continue
		}
		if m.Name == "#constructor" {
			e := newError(DuplicatePrivateName, m.Name, id, m.Pos, "Classes may not have a private field named '#constructor'")
			e.sentinel = ErrReservedPrivateName
			errs = append(errs, e)
			continue
		}

		existing, ok := t.entries[m.Name]
		if !ok {
			t.Declare(&Descriptor{
				Identifier: m.Name,
				Kind:       initialKind(m.Kind),
				ClassID:    id,
				Static:     m.Static,
				Pos:        m.Pos,
			})
			continue
		}

		if merged, ok := mergeAccessor(existing.Kind, m.Kind); ok {
			if existing.Static != m.Static {
				errs = append(errs, newError(DuplicatePrivateName, m.Name, id, m.Pos,
					fmt.Sprintf("Identifier '%s' has already been declared with a different 'static' placement", m.Name)))
				continue
			}
			existing.Kind = merged
			continue
		}

		errs = append(errs, newError(DuplicatePrivateName, m.Name, id, m.Pos,
			fmt.Sprintf("Identifier '%s' has already been declared", m.Name)))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	t.Seal()
	return t, nil
}

func initialKind(k MemberKind) Kind {
	switch k {
	case MemberField:
		return Field
	case MemberMethod:
		return Method
	case MemberGetter:
		return AccessorGetter
	case MemberSetter:
		return AccessorSetter
	}
	panic(fmt.Sprintf("privatename: unknown member kind %d", k))
}

// mergeAccessor reports the kind produced by adding an accessor half to an
// existing entry, and false when the two cannot coexist.
func mergeAccessor(existing Kind, incoming MemberKind) (Kind, bool) {
	switch {
	case incoming == MemberGetter && existing == AccessorSetter:
		return AccessorBoth, true
	case incoming == MemberSetter && existing == AccessorGetter:
		return AccessorBoth, true
	}
	return 0, false
}
