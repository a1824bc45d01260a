package privatename

import (
	"fmt"

	"sigil/pkg/errors"
)

// Op is the kind of private access being performed.
type Op uint8

const (
	OpRead  Op = iota + 1 // o.#x
	OpWrite               // o.#x = v
	OpHas                 // #x in o
)

// Action tells the runtime how to carry out an access Enforce allowed.
type Action uint8

const (
	ActionNone       Action = iota // nothing to perform (OpHas)
	ActionReadField                // load the field stored under (brand, identifier)
	ActionWriteField               // store the field stored under (brand, identifier)
	ActionReadMethod               // load the method closure
	ActionCallGetter               // call the getter with the receiver
	ActionCallSetter               // call the setter with the receiver and the value
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionReadField:
		return "read-field"
	case ActionWriteField:
		return "write-field"
	case ActionReadMethod:
		return "read-method"
	case ActionCallGetter:
		return "call-getter"
	case ActionCallSetter:
		return "call-setter"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

var noPosition errors.Position

// Enforce gates one access to the private name d through holder, whose
// brand for d's class in the current evaluation is brand. A nil holder
// stands for a non-object receiver.
//
// The brand check comes first. For OpHas no brand failure is reported;
// callers test holder.Brands().Has(brand) themselves.
func Enforce(holder BrandHolder, brand *Brand, d *Descriptor, op Op) (Action, error) {
	if holder == nil {
		return ActionNone, accessError(d, op, "a non-object")
	}
	if op == OpHas {
		return ActionNone, nil
	}
	if !holder.Brands().Has(brand) {
		return ActionNone, accessError(d, op, "an object whose class did not declare it")
	}

	switch d.Kind {
	case Field:
		if op == OpWrite {
			return ActionWriteField, nil
		}
		return ActionReadField, nil
	case Method:
		if op == OpWrite {
			return ActionNone, newError(InvalidPrivateAccess, d.Identifier, d.ClassID, noPosition,
				fmt.Sprintf("Private method '%s' is not writable", d.Identifier))
		}
		return ActionReadMethod, nil
	case AccessorGetter, AccessorSetter, AccessorBoth:
		if op == OpWrite {
			if !d.Kind.HasSetter() {
				return ActionNone, newError(InvalidPrivateAccess, d.Identifier, d.ClassID, noPosition,
					fmt.Sprintf("'%s' was defined without a setter", d.Identifier))
			}
			return ActionCallSetter, nil
		}
		if !d.Kind.HasGetter() {
			return ActionNone, newError(InvalidPrivateAccess, d.Identifier, d.ClassID, noPosition,
				fmt.Sprintf("'%s' was defined without a getter", d.Identifier))
		}
		return ActionCallGetter, nil
	}
	panic(fmt.Sprintf("privatename: descriptor %s has invalid kind", d))
}

func accessError(d *Descriptor, op Op, target string) *Error {
	var msg string
	switch op {
	case OpWrite:
		msg = fmt.Sprintf("Cannot write private member %s to %s", d.Identifier, target)
	case OpHas:
		msg = fmt.Sprintf("Cannot use 'in' operator to search for '%s' in %s", d.Identifier, target)
	default:
		msg = fmt.Sprintf("Cannot read private member %s from %s", d.Identifier, target)
	}
	return newError(InvalidPrivateAccess, d.Identifier, d.ClassID, noPosition, msg)
}
