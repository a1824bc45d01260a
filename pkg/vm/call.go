package vm

// callValue starts a call from the interpreter loop. Closures get a frame
// (pushed is true and the result arrives later in target); natives run to
// completion here.
func (vm *VM) callValue(callee, this Value, args []Value, target byte) (pushed bool, result Value, err error) {
	switch callee.typ {
	case TypeClosure:
		cl := callee.AsClosure()
		if cl.Class != nil {
			return false, Undefined, vm.typeError("Class constructor %s cannot be invoked without 'new'", functionName(callee))
		}
		if err := vm.pushFrame(cl, this, args, target, false, Undefined); err != nil {
			return false, Undefined, err
		}
		return true, Undefined, nil
	case TypeNativeFunction:
		result, err := callee.AsNativeFunction().Fn(vm, this, copyArgs(args))
		return false, result, err
	}
	return false, Undefined, vm.typeError("%s is not a function", callee.Inspect())
}

// constructValue starts `new callee(...args)` with the given new.target.
func (vm *VM) constructValue(callee Value, args []Value, newTarget Value, target byte) (pushed bool, result Value, err error) {
	switch callee.typ {
	case TypeClosure:
		cl := callee.AsClosure()
		switch {
		case cl.Class != nil && cl.Class.Template.Derived:
			// `this` stays uninitialised until super(...) returns.
			err = vm.pushFrame(cl, Uninitialized, args, target, true, newTarget)
		case cl.Class != nil || cl.Fn.Kind == FuncNormal:
			this := vm.createThis(newTarget)
			if cl.Class != nil {
				if err := vm.initializeInstance(this, cl); err != nil {
					return false, Undefined, err
				}
			}
			err = vm.pushFrame(cl, this, args, target, true, newTarget)
		default:
			return false, Undefined, vm.typeError("%s is not a constructor", callee.Inspect())
		}
		if err != nil {
			return false, Undefined, err
		}
		return true, Undefined, nil
	case TypeNativeFunction:
		n := callee.AsNativeFunction()
		if n.Construct != nil {
			result, err := n.Construct(vm, copyArgs(args), newTarget)
			return false, result, err
		}
	}
	return false, Undefined, vm.typeError("%s is not a constructor", callee.Inspect())
}

// superCall constructs the parent of the active class constructor fn.
func (vm *VM) superCall(fn, newTarget Value, args []Value, target byte) (bool, Value, error) {
	parent := fn.header().GetPrototype()
	if !vm.isConstructor(parent) {
		return false, Undefined, vm.typeError("Super constructor %s of anonymous class is not a constructor", parent.Inspect())
	}
	return vm.constructValue(parent, args, newTarget, target)
}

func (vm *VM) isConstructor(v Value) bool {
	switch v.typ {
	case TypeClosure:
		cl := v.AsClosure()
		return cl.Class != nil || cl.Fn.Kind == FuncNormal
	case TypeNativeFunction:
		return v.AsNativeFunction().Construct != nil
	}
	return false
}

// createThis allocates the receiver of a base constructor. Its prototype
// comes from new.target, so subclasses get theirs.
func (vm *VM) createThis(newTarget Value) Value {
	proto := ObjectValue(vm.realm.ObjectPrototype)
	if h := newTarget.header(); h != nil {
		if p, ok := dataProperty(h, "prototype"); ok && p.IsObject() {
			proto = p
		}
	}
	return ObjectValue(NewObject(proto))
}

// Call invokes fn with the given receiver from Go code, running the
// interpreter until it returns. Exceptions come back as *Exception.
func (vm *VM) Call(fn, this Value, args []Value) (Value, error) {
	stop := vm.frameCount
	pushed, result, err := vm.callValue(fn, this, args, 0)
	if err != nil || !pushed {
		return result, err
	}
	return vm.run(stop)
}

// Construct performs `new ctor(...args)` from Go code.
func (vm *VM) Construct(ctor Value, args []Value) (Value, error) {
	stop := vm.frameCount
	pushed, result, err := vm.constructValue(ctor, args, ctor, 0)
	if err != nil || !pushed {
		return result, err
	}
	return vm.run(stop)
}

// copyArgs detaches arguments from the register stack before natives keep
// them.
func copyArgs(args []Value) []Value {
	if len(args) == 0 {
		return nil
	}
	out := make([]Value, len(args))
	copy(out, args)
	return out
}
