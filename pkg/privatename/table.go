package privatename

import "fmt"

// Table maps the private identifiers of one class declaration to their
// descriptors. It is filled by Collect and sealed afterwards; only lookups
// happen on a sealed table.
type Table struct {
	classID ClassID
	entries map[string]*Descriptor
	order   []string
	sealed  bool
}

// NewTable returns an empty table owned by the class with the given ID.
func NewTable(id ClassID) *Table {
	return &Table{classID: id, entries: make(map[string]*Descriptor)}
}

// ClassID returns the owning class.
func (t *Table) ClassID() ClassID { return t.classID }

// Declare adds d. Declaring on a sealed table, declaring an identifier
// twice, or declaring a descriptor of another class is a programming error.
func (t *Table) Declare(d *Descriptor) {
	if t.sealed {
		panic(fmt.Sprintf("privatename: Declare(%s) on sealed table of %s", d.Identifier, t.classID))
	}
	if d.ClassID != t.classID {
		panic(fmt.Sprintf("privatename: descriptor of %s declared in table of %s", d.ClassID, t.classID))
	}
	if _, exists := t.entries[d.Identifier]; exists {
		panic(fmt.Sprintf("privatename: %s declared twice in %s", d.Identifier, t.classID))
	}
	t.entries[d.Identifier] = d
	t.order = append(t.order, d.Identifier)
}

// Lookup returns the descriptor for identifier, if declared here.
func (t *Table) Lookup(identifier string) (*Descriptor, bool) {
	d, ok := t.entries[identifier]
	return d, ok
}

// Len returns the number of private names.
func (t *Table) Len() int { return len(t.order) }

// Descriptors returns the descriptors in declaration order.
func (t *Table) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(t.order))
	for i, name := range t.order {
		out[i] = t.entries[name]
	}
	return out
}

// HasInstanceNames reports whether any non-static private name exists, i.e.
// whether instances need the class brand.
func (t *Table) HasInstanceNames() bool {
	for _, d := range t.entries {
		if !d.Static {
			return true
		}
	}
	return false
}

// HasStaticNames reports whether any static private name exists.
func (t *Table) HasStaticNames() bool {
	for _, d := range t.entries {
		if d.Static {
			return true
		}
	}
	return false
}

// Seal makes the table read-only.
func (t *Table) Seal() { t.sealed = true }

// Sealed reports whether Seal was called.
func (t *Table) Sealed() bool { return t.sealed }
