package vm

import (
	"strconv"
	"unicode/utf8"
)

// GetProperty reads obj.name, running getters. Primitives other than
// undefined and null read through Object.prototype; strings also have
// length and indexed characters.
func (vm *VM) GetProperty(obj Value, name string) (Value, error) {
	var h *Object
	switch obj.typ {
	case TypeUndefined, TypeNull:
		return Undefined, vm.typeError("Cannot read properties of %s (reading '%s')", obj.ToString(), name)
	case TypeString:
		if name == "length" {
			return Number(float64(utf8.RuneCountInString(obj.str))), nil
		}
		if i, err := strconv.Atoi(name); err == nil && i >= 0 {
			runes := []rune(obj.str)
			if i < len(runes) {
				return String(string(runes[i])), nil
			}
			return Undefined, nil
		}
		h = vm.realm.ObjectPrototype
	case TypeNumber, TypeBoolean:
		h = vm.realm.ObjectPrototype
	default:
		h = obj.header()
	}
	if h == nil {
		return Undefined, nil
	}
	p, ok := h.lookup(name)
	if !ok {
		return Undefined, nil
	}
	if p.Accessor {
		if p.Getter.IsUndefined() {
			return Undefined, nil
		}
		return vm.Call(p.Getter, obj, nil)
	}
	return p.Value, nil
}

// SetProperty performs obj.name = v, running setters found on the
// prototype chain.
func (vm *VM) SetProperty(obj Value, name string, v Value) error {
	if obj.IsNullish() {
		return vm.typeError("Cannot set properties of %s (setting '%s')", obj.ToString(), name)
	}
	h := obj.header()
	if h == nil {
		return vm.typeError("Cannot create property '%s' on %s '%s'", name, obj.TypeofString(), obj.ToString())
	}
	if p, ok := h.lookup(name); ok {
		if p.Accessor {
			if p.Setter.IsUndefined() {
				return vm.typeError("Cannot set property %s of %s which has only a getter", name, obj.ToString())
			}
			_, err := vm.Call(p.Setter, obj, []Value{v})
			return err
		}
		if !p.Writable {
			return vm.typeError("Cannot assign to read only property '%s' of %s", name, obj.Inspect())
		}
	}
	h.SetOwn(name, v)
	return nil
}

// propertyKey converts a computed key to a property name.
func (vm *VM) propertyKey(key Value) (string, error) {
	if key.IsString() {
		return key.str, nil
	}
	return vm.ToString(key)
}

// hasProperty implements the public `in` operator.
func (vm *VM) hasProperty(key, obj Value) (Value, error) {
	name, err := vm.propertyKey(key)
	if err != nil {
		return Undefined, err
	}
	h := obj.header()
	if h == nil {
		return Undefined, vm.typeError("Cannot use 'in' operator to search for '%s' in %s", name, obj.ToString())
	}
	_, ok := h.lookup(name)
	return Bool(ok), nil
}

// InstanceOf implements `v instanceof ctor`.
func (vm *VM) InstanceOf(v, ctor Value) (bool, error) {
	if !ctor.IsCallable() {
		return false, vm.typeError("Right-hand side of 'instanceof' is not callable")
	}
	proto, err := vm.GetProperty(ctor, "prototype")
	if err != nil {
		return false, err
	}
	if !proto.IsObject() {
		return false, vm.typeError("Function has non-object prototype '%s' in instanceof check", proto.ToString())
	}
	target := proto.header()
	h := v.header()
	if h == nil {
		return false, nil
	}
	for p := h.proto.header(); p != nil; p = p.proto.header() {
		if p == target {
			return true, nil
		}
	}
	return false, nil
}

// ToString converts v to a string, calling a user-defined toString on
// objects.
func (vm *VM) ToString(v Value) (string, error) {
	if !v.IsObject() {
		return v.ToString(), nil
	}
	method, err := vm.GetProperty(v, "toString")
	if err != nil {
		return "", err
	}
	if !method.IsCallable() {
		return v.ToString(), nil
	}
	result, err := vm.Call(method, v, nil)
	if err != nil {
		return "", err
	}
	if result.IsObject() {
		return "", vm.typeError("Cannot convert object to primitive value")
	}
	return result.ToString(), nil
}

// defineMethod installs a class method or one half of an accessor.
// Methods are not enumerable.
func (vm *VM) defineMethod(h *Object, name string, fn Value, kind byte) {
	switch kind {
	case MethodGetter:
		h.DefineAccessor(name, fn, Undefined, false)
	case MethodSetter:
		h.DefineAccessor(name, Undefined, fn, false)
	default:
		h.SetOwnNonEnumerable(name, fn)
	}
}
