package privatename

import "fmt"

// Brand marks an object as initialised by one evaluation of a class
// declaration. Each evaluation creates fresh brands, so objects from two
// evaluations of the same class expression cannot read each other's names.
type Brand struct {
	ClassID   ClassID
	Static    bool
	ClassName string // for messages; may be empty
}

// NewBrand creates the instance or static brand of one class evaluation.
func NewBrand(id ClassID, static bool, className string) *Brand {
	return &Brand{ClassID: id, Static: static, ClassName: className}
}

func (b *Brand) String() string {
	kind := "instance"
	if b.Static {
		kind = "static"
	}
	name := b.ClassName
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s brand of %s (%s)", kind, name, b.ClassID)
}

// BrandSet is the set of brands installed on one object. Brands are added
// while the object is being constructed and never removed. Once
// construction is over the set is only read, so concurrent readers need no
// locking.
type BrandSet struct {
	brands []*Brand
}

// Install adds b. Installing a brand the object already carries fails with
// InvalidPrivateAccess: private names are initialised once per object.
func (s *BrandSet) Install(b *Brand) error {
	if s.Has(b) {
		name := b.ClassName
		if name == "" {
			name = "anonymous class"
		}
		return newError(InvalidPrivateAccess, "", b.ClassID, noPosition,
			fmt.Sprintf("Cannot initialize private members of %s twice on the same object", name))
	}
	s.brands = append(s.brands, b)
	return nil
}

// Has reports whether b is installed. A nil set has no brands.
func (s *BrandSet) Has(b *Brand) bool {
	if s == nil || b == nil {
		return false
	}
	for _, have := range s.brands {
		if have == b {
			return true
		}
	}
	return false
}

// Len returns the number of installed brands.
func (s *BrandSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.brands)
}

// BrandHolder is anything that carries a BrandSet; the VM's objects do.
type BrandHolder interface {
	Brands() *BrandSet
}
