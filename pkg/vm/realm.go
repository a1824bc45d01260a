package vm

// Realm holds the builtin objects of one VM.
type Realm struct {
	ObjectPrototype   *Object
	FunctionPrototype *Object
	ErrorPrototype    *Object

	errorCtors  [ErrorKindRangeError + 1]Value
	errorProtos [ErrorKindRangeError + 1]*Object
}

var errorNames = [...]string{
	ErrorKindError:          "Error",
	ErrorKindTypeError:      "TypeError",
	ErrorKindReferenceError: "ReferenceError",
	ErrorKindSyntaxError:    "SyntaxError",
	ErrorKindRangeError:     "RangeError",
}

func newRealm(vm *VM) *Realm {
	r := &Realm{}
	vm.realm = r
	r.ObjectPrototype = NewObject(Null)
	r.FunctionPrototype = NewObject(ObjectValue(r.ObjectPrototype))
	r.FunctionPrototype.class = "Function"

	vm.initObject()
	vm.initFunction()

	base := vm.NewErrorType("Error", Undefined)
	r.errorCtors[ErrorKindError] = base
	r.errorProtos[ErrorKindError] = base.header().props["prototype"].Value.AsPlainObject()
	r.ErrorPrototype = r.errorProtos[ErrorKindError]
	r.ErrorPrototype.SetOwnNonEnumerable("message", String(""))
	r.ErrorPrototype.SetOwnNonEnumerable("toString", vm.NewNativeFunction("toString", 0, errorToString))

	for kind := ErrorKindTypeError; kind <= ErrorKindRangeError; kind++ {
		ctor := vm.NewErrorType(errorNames[kind], base)
		r.errorCtors[kind] = ctor
		r.errorProtos[kind] = ctor.header().props["prototype"].Value.AsPlainObject()
	}
	return r
}

// NewNativeFunction wraps a Go function as a callable value.
func (vm *VM) NewNativeFunction(name string, arity int, fn NativeFn) Value {
	n := &NativeFunctionObject{Name: name, Arity: arity, Fn: fn}
	n.proto = ObjectValue(vm.realm.FunctionPrototype)
	return NativeFunctionValue(n)
}

// NewErrorType creates an error constructor named name whose prototype
// inherits from parent's (Error's when parent is undefined), installs it
// as a global and returns it. Subclassing it with `extends` works.
func (vm *VM) NewErrorType(name string, parent Value) Value {
	protoParent := ObjectValue(vm.realm.ObjectPrototype)
	if h := parent.header(); h != nil {
		if p, ok := dataProperty(h, "prototype"); ok {
			protoParent = p
		}
	}
	proto := NewObject(protoParent)
	proto.SetOwnNonEnumerable("name", String(name))

	n := &NativeFunctionObject{Name: name, Arity: 1}
	n.proto = ObjectValue(vm.realm.FunctionPrototype)
	if parent.IsObject() {
		n.proto = parent
	}
	ctorVal := NativeFunctionValue(n)
	n.Construct = func(vm *VM, args []Value, newTarget Value) (Value, error) {
		obj := vm.createThis(newTarget)
		h := obj.header()
		h.class = "Error"
		if len(args) > 0 && !args[0].IsUndefined() {
			msg, err := vm.ToString(args[0])
			if err != nil {
				return Undefined, err
			}
			h.SetOwnNonEnumerable("message", String(msg))
		}
		return obj, nil
	}
	n.Fn = func(vm *VM, this Value, args []Value) (Value, error) {
		return n.Construct(vm, args, ctorVal)
	}
	n.put("prototype", &Property{Value: ObjectValue(proto)})
	proto.SetOwnNonEnumerable("constructor", ctorVal)
	vm.SetGlobal(name, ctorVal)
	return ctorVal
}

// NewError creates an error object of a builtin kind.
func (vm *VM) NewError(kind byte, msg string) Value {
	if int(kind) >= len(vm.realm.errorProtos) {
		kind = ErrorKindError
	}
	obj := NewObject(ObjectValue(vm.realm.errorProtos[kind]))
	obj.class = "Error"
	obj.SetOwnNonEnumerable("message", String(msg))
	return ObjectValue(obj)
}

// ErrorConstructor returns the builtin constructor for kind.
func (vm *VM) ErrorConstructor(kind byte) Value {
	return vm.realm.errorCtors[kind]
}

func errorToString(vm *VM, this Value, args []Value) (Value, error) {
	if !this.IsObject() {
		return Undefined, vm.typeError("Error.prototype.toString called on non-object")
	}
	name, err := vm.GetProperty(this, "name")
	if err != nil {
		return Undefined, err
	}
	msg, err := vm.GetProperty(this, "message")
	if err != nil {
		return Undefined, err
	}
	n, m := "Error", ""
	if !name.IsUndefined() {
		if n, err = vm.ToString(name); err != nil {
			return Undefined, err
		}
	}
	if !msg.IsUndefined() {
		if m, err = vm.ToString(msg); err != nil {
			return Undefined, err
		}
	}
	switch {
	case m == "":
		return String(n), nil
	case n == "":
		return String(m), nil
	}
	return String(n + ": " + m), nil
}

func (vm *VM) initObject() {
	proto := vm.realm.ObjectPrototype
	proto.SetOwnNonEnumerable("toString", vm.NewNativeFunction("toString", 0, func(vm *VM, this Value, args []Value) (Value, error) {
		switch this.typ {
		case TypeUndefined:
			return String("[object Undefined]"), nil
		case TypeNull:
			return String("[object Null]"), nil
		case TypeClosure, TypeNativeFunction:
			return String("[object Function]"), nil
		case TypeObject:
			return String("[object " + this.AsPlainObject().className() + "]"), nil
		}
		return String(this.ToString()), nil
	}))
	proto.SetOwnNonEnumerable("hasOwnProperty", vm.NewNativeFunction("hasOwnProperty", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		h := this.header()
		if h == nil || len(args) == 0 {
			return False, nil
		}
		name, err := vm.propertyKey(args[0])
		if err != nil {
			return Undefined, err
		}
		return Bool(h.HasOwn(name)), nil
	}))

	ctor := &NativeFunctionObject{Name: "Object", Arity: 1}
	ctor.proto = ObjectValue(vm.realm.FunctionPrototype)
	ctor.Fn = func(vm *VM, this Value, args []Value) (Value, error) {
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		return ObjectValue(NewObject(ObjectValue(vm.realm.ObjectPrototype))), nil
	}
	ctor.Construct = func(vm *VM, args []Value, newTarget Value) (Value, error) {
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		return vm.createThis(newTarget), nil
	}
	ctorVal := NativeFunctionValue(ctor)
	ctor.put("prototype", &Property{Value: ObjectValue(proto)})
	ctor.SetOwnNonEnumerable("getPrototypeOf", vm.NewNativeFunction("getPrototypeOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		if len(args) == 0 || args[0].header() == nil {
			return Undefined, vm.typeError("Object.getPrototypeOf called on non-object")
		}
		return args[0].header().GetPrototype(), nil
	}))
	ctor.SetOwnNonEnumerable("create", vm.NewNativeFunction("create", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		if len(args) == 0 || !(args[0].IsObject() || args[0].IsNull()) {
			return Undefined, vm.typeError("Object prototype may only be an Object or null")
		}
		return ObjectValue(NewObject(args[0])), nil
	}))
	proto.SetOwnNonEnumerable("constructor", ctorVal)
	vm.SetGlobal("Object", ctorVal)
}

func (vm *VM) initFunction() {
	vm.realm.FunctionPrototype.SetOwnNonEnumerable("call", vm.NewNativeFunction("call", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		thisArg := Undefined
		if len(args) > 0 {
			thisArg = args[0]
			args = args[1:]
		}
		return vm.Call(this, thisArg, args)
	}))
}
