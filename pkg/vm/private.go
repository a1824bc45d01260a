package vm

import (
	"fmt"

	"sigil/pkg/privatename"
)

// define records a private method or accessor half for this evaluation.
func (e *PrivateEnvironment) define(name string, fn Value, kind byte) {
	switch kind {
	case MethodGetter:
		e.getters[name] = fn
	case MethodSetter:
		e.setters[name] = fn
	default:
		e.methods[name] = fn
	}
}

func (e *PrivateEnvironment) descriptor(name string) *privatename.Descriptor {
	d, ok := e.Table.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("vm: private name %s not declared in %s", name, e.Table.ClassID()))
	}
	return d
}

// brandHolder returns obj as a BrandHolder, or a nil interface for
// primitives so Enforce sees a non-object.
func brandHolder(obj Value) (*Object, privatename.BrandHolder) {
	h := obj.header()
	if h == nil {
		return nil, nil
	}
	return h, h
}

// getPrivate performs obj.#name after the brand check.
func (vm *VM) getPrivate(obj Value, env *PrivateEnvironment, name string) (Value, error) {
	d := env.descriptor(name)
	brand := env.brandFor(d)
	h, holder := brandHolder(obj)
	action, err := privatename.Enforce(holder, brand, d, privatename.OpRead)
	if err != nil {
		return Undefined, err
	}
	switch action {
	case privatename.ActionReadField:
		v, ok := h.privateField(brand, name)
		if !ok {
			return Undefined, privatename.FieldNotInitialized(d, privatename.OpRead)
		}
		return v, nil
	case privatename.ActionReadMethod:
		return env.methods[name], nil
	case privatename.ActionCallGetter:
		return vm.Call(env.getters[name], obj, nil)
	}
	panic(fmt.Sprintf("vm: unexpected action %s for read of %s", action, d))
}

// setPrivate performs obj.#name = v after the brand check.
func (vm *VM) setPrivate(obj Value, env *PrivateEnvironment, name string, v Value) error {
	d := env.descriptor(name)
	brand := env.brandFor(d)
	h, holder := brandHolder(obj)
	action, err := privatename.Enforce(holder, brand, d, privatename.OpWrite)
	if err != nil {
		return err
	}
	switch action {
	case privatename.ActionWriteField:
		if _, ok := h.privateField(brand, name); !ok {
			return privatename.FieldNotInitialized(d, privatename.OpWrite)
		}
		h.setPrivateField(brand, name, v)
		return nil
	case privatename.ActionCallSetter:
		_, err := vm.Call(env.setters[name], obj, []Value{v})
		return err
	}
	panic(fmt.Sprintf("vm: unexpected action %s for write of %s", action, d))
}

// hasPrivate implements `#name in obj`. The right operand must be an
// object; a field only counts once its initialiser has run.
func (vm *VM) hasPrivate(obj Value, env *PrivateEnvironment, name string) (bool, error) {
	d := env.descriptor(name)
	brand := env.brandFor(d)
	h, holder := brandHolder(obj)
	if _, err := privatename.Enforce(holder, brand, d, privatename.OpHas); err != nil {
		return false, err
	}
	if !h.Brands().Has(brand) {
		return false, nil
	}
	if d.Kind == privatename.Field {
		_, ok := h.privateField(brand, name)
		return ok, nil
	}
	return true, nil
}

// definePrivateField creates a private field while its class initialises
// obj.
func (vm *VM) definePrivateField(obj Value, env *PrivateEnvironment, name string, v Value) error {
	d := env.descriptor(name)
	brand := env.brandFor(d)
	h := obj.header()
	if h == nil {
		return vm.typeError("Cannot define private field %s on %s", name, obj.ToString())
	}
	if _, exists := h.privateField(brand, name); exists {
		return vm.typeError("Cannot initialize %s twice on the same object", name)
	}
	h.setPrivateField(brand, name, v)
	return nil
}
