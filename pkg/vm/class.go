package vm

// defineClass turns the constructor closure produced for a class body into
// the class: it wires the prototype objects, resolves the heritage and
// attaches the class's private environment. The static brand goes on the
// constructor right away, so static initialisers can use static private
// names.
func (vm *VM) defineClass(tmpl *ClassTemplate, ctorVal, parent Value, env *PrivateEnvironment) (Value, error) {
	ctor := ctorVal.AsClosure()
	protoParent := ObjectValue(vm.realm.ObjectPrototype)
	ctorParent := ObjectValue(vm.realm.FunctionPrototype)

	if tmpl.Derived {
		switch {
		case parent.IsNull():
			protoParent = Null
		case !vm.isConstructor(parent):
			return Undefined, vm.typeError("Class extends value %s is not a constructor or null", parent.Inspect())
		default:
			pp, err := vm.GetProperty(parent, "prototype")
			if err != nil {
				return Undefined, err
			}
			if !pp.IsObject() && !pp.IsNull() {
				return Undefined, vm.typeError("Class extends value does not have valid prototype property %s", pp.Inspect())
			}
			protoParent = pp
			ctorParent = parent
		}
	}

	proto := NewObject(protoParent)
	proto.SetOwnNonEnumerable("constructor", ctorVal)
	ctor.put("prototype", &Property{Value: ObjectValue(proto)})
	ctor.SetPrototype(ctorParent)

	ctor.Class = &ClassInfo{Template: tmpl, Env: env, FieldInit: Undefined}
	if env != nil && tmpl.Table != nil && tmpl.Table.HasStaticNames() {
		if err := ctor.brands.Install(env.StaticBrand); err != nil {
			return Undefined, err
		}
	}
	debugPrintf("// [VM] class %s defined (derived=%v, private=%v)\n", tmpl.Name, tmpl.Derived, env != nil)
	return ctorVal, nil
}

// initializeInstance runs the part of construction that belongs to class
// cl: it brands obj for cl's instance private names and then runs cl's
// field initialisers with obj as `this`. Base classes do this before the
// constructor body, derived classes right after super(...) returns.
func (vm *VM) initializeInstance(obj Value, cl *ClosureObject) error {
	info := cl.Class
	if info == nil {
		return nil
	}
	h := obj.header()
	if h == nil {
		return vm.typeError("Cannot initialize a class instance on %s", obj.ToString())
	}
	if info.Env != nil && info.Template.Table != nil && info.Template.Table.HasInstanceNames() {
		if err := h.brands.Install(info.Env.Brand); err != nil {
			return err
		}
	}
	if info.FieldInit.IsCallable() {
		if _, err := vm.Call(info.FieldInit, obj, nil); err != nil {
			return err
		}
	}
	return nil
}
