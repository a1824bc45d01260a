package privatename

import (
	stderrors "errors"
	"fmt"

	"sigil/pkg/errors"
)

// Code classifies private-name failures.
type Code uint8

const (
	// DuplicatePrivateName: a class body declares an identifier more often
	// than the merge rules allow. Static.
	DuplicatePrivateName Code = iota + 1
	// UnresolvedPrivateName: no enclosing class declares the identifier.
	// Static.
	UnresolvedPrivateName
	// InvalidPrivateAccess: the receiver lacks the brand, or the access
	// does not fit the member kind. Dynamic.
	InvalidPrivateAccess
)

func (c Code) String() string {
	switch c {
	case DuplicatePrivateName:
		return "DuplicatePrivateName"
	case UnresolvedPrivateName:
		return "UnresolvedPrivateName"
	case InvalidPrivateAccess:
		return "InvalidPrivateAccess"
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Sentinels for errors.Is. ErrReservedPrivateName wraps
// ErrDuplicatePrivateName: `#constructor` is rejected in the same phase.
var (
	ErrDuplicatePrivateName  = stderrors.New("duplicate private name")
	ErrUnresolvedPrivateName = stderrors.New("unresolved private name")
	ErrInvalidPrivateAccess  = stderrors.New("invalid private access")
	ErrReservedPrivateName   = fmt.Errorf("reserved private name: %w", ErrDuplicatePrivateName)
)

// Error is the structured failure reported by this package. It satisfies
// errors.SigilError so the compiler and the VM can return it unchanged.
type Error struct {
	Code       Code
	Identifier string
	ClassID    ClassID // declaring class; NoClass when unknown
	Position   errors.Position
	Msg        string

	sentinel error
}

func newError(code Code, identifier string, id ClassID, pos errors.Position, msg string) *Error {
	e := &Error{Code: code, Identifier: identifier, ClassID: id, Position: pos, Msg: msg}
	switch code {
	case DuplicatePrivateName:
		e.sentinel = ErrDuplicatePrivateName
	case UnresolvedPrivateName:
		e.sentinel = ErrUnresolvedPrivateName
	case InvalidPrivateAccess:
		e.sentinel = ErrInvalidPrivateAccess
	}
	return e
}

func (e *Error) Error() string {
	if e.Position.IsValid() {
		return fmt.Sprintf("%s Error at %d:%d: %s", e.Kind(), e.Position.Line, e.Position.Column, e.Msg)
	}
	return fmt.Sprintf("%s Error: %s", e.Kind(), e.Msg)
}

func (e *Error) Pos() errors.Position { return e.Position }
func (e *Error) Message() string      { return e.Msg }
func (e *Error) Unwrap() error        { return e.sentinel }

// Kind is "Syntax" for the early errors and "Runtime" for access failures.
func (e *Error) Kind() string {
	if e.Code == InvalidPrivateAccess {
		return "Runtime"
	}
	return "Syntax"
}

// Static reports whether the error is an early error.
func (e *Error) Static() bool { return e.Code != InvalidPrivateAccess }

// WithPosition returns a copy of e located at pos. The VM uses it to attach
// the failing instruction's line.
func (e *Error) WithPosition(pos errors.Position) *Error {
	c := *e
	c.Position = pos
	return &c
}

// FieldNotInitialized reports an access to a private field of a branded
// object before the field's initialiser has run.
func FieldNotInitialized(d *Descriptor, op Op) *Error {
	var msg string
	if op == OpWrite {
		msg = fmt.Sprintf("Cannot write private member %s to an object whose class did not declare it", d.Identifier)
	} else {
		msg = fmt.Sprintf("Cannot read private member %s from an object whose class did not declare it", d.Identifier)
	}
	return newError(InvalidPrivateAccess, d.Identifier, d.ClassID, errors.Position{}, msg)
}
