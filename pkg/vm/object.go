package vm

import (
	"sigil/pkg/privatename"
	"sigil/pkg/source"
)

// Property is one own property. Accessor properties keep Getter/Setter
// (either may be Undefined); data properties keep Value.
type Property struct {
	Value      Value
	Getter     Value
	Setter     Value
	Accessor   bool
	Enumerable bool
	Writable   bool
}

// Object is the storage every object kind shares: public properties in
// insertion order, the prototype, the installed brands and the private
// fields stored under (brand, identifier).
type Object struct {
	proto Value // Null or an object value
	props map[string]*Property
	keys  []string
	class string // tag for Object.prototype.toString; "" means "Object"

	brands  privatename.BrandSet
	private map[privateKey]Value
}

type privateKey struct {
	brand *privatename.Brand
	name  string
}

// NewObject creates a plain object with the given prototype (Null for
// none).
func NewObject(proto Value) *Object {
	return &Object{proto: proto}
}

func (o *Object) className() string {
	if o.class == "" {
		return "Object"
	}
	return o.class
}

// Brands exposes the object's brand set to privatename.Enforce.
func (o *Object) Brands() *privatename.BrandSet { return &o.brands }

func (o *Object) GetPrototype() Value { return o.proto }

func (o *Object) SetPrototype(proto Value) { o.proto = proto }

// GetOwn returns the own property name.
func (o *Object) GetOwn(name string) (*Property, bool) {
	p, ok := o.props[name]
	return p, ok
}

func (o *Object) HasOwn(name string) bool {
	_, ok := o.props[name]
	return ok
}

// OwnKeys returns the own property names in insertion order.
func (o *Object) OwnKeys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) put(name string, p *Property) {
	if o.props == nil {
		o.props = make(map[string]*Property)
	}
	if _, exists := o.props[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.props[name] = p
}

// SetOwn creates or overwrites an enumerable, writable data property.
func (o *Object) SetOwn(name string, v Value) {
	if p, ok := o.props[name]; ok && !p.Accessor {
		p.Value = v
		return
	}
	o.put(name, &Property{Value: v, Enumerable: true, Writable: true})
}

// SetOwnNonEnumerable defines a writable, non-enumerable data property.
// Class methods and builtins are installed this way.
func (o *Object) SetOwnNonEnumerable(name string, v Value) {
	o.put(name, &Property{Value: v, Writable: true})
}

// DefineAccessor installs one half of an accessor pair, keeping the other
// half when the property is already an accessor.
func (o *Object) DefineAccessor(name string, getter, setter Value, enumerable bool) {
	p, ok := o.props[name]
	if !ok || !p.Accessor {
		p = &Property{Getter: Undefined, Setter: Undefined, Accessor: true, Enumerable: enumerable}
		o.put(name, p)
	}
	if !getter.IsUndefined() {
		p.Getter = getter
	}
	if !setter.IsUndefined() {
		p.Setter = setter
	}
}

// lookup finds name on the object or its prototype chain.
func (o *Object) lookup(name string) (*Property, bool) {
	for obj := o; obj != nil; obj = obj.proto.header() {
		if p, ok := obj.props[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// --- Private storage ---

func (o *Object) privateField(b *privatename.Brand, name string) (Value, bool) {
	v, ok := o.private[privateKey{b, name}]
	return v, ok
}

func (o *Object) setPrivateField(b *privatename.Brand, name string, v Value) {
	if o.private == nil {
		o.private = make(map[privateKey]Value)
	}
	o.private[privateKey{b, name}] = v
}

// --- Functions ---

// FunctionKind tells the VM how a compiled function binds `this` and
// whether it may be constructed.
type FunctionKind uint8

const (
	FuncNormal FunctionKind = iota // function declarations and expressions
	FuncArrow
	FuncMethod // methods, accessors, field and static initialisers
	FuncBaseConstructor
	FuncDerivedConstructor
)

// FunctionObject is the compiled blueprint of a function. Closures share
// it.
type FunctionObject struct {
	Arity        int
	Chunk        *Chunk
	Name         string
	UpvalueCount int
	RegisterSize int
	Kind         FunctionKind
	Source       *source.SourceFile // for error positions; may be nil

	// Registers the VM fills on entry; -1 when absent.
	ThisRegister      int
	CalleeRegister    int
	NewTargetRegister int
}

// NewFunctionObject returns a blueprint with no special registers.
func NewFunctionObject(name string, arity int, kind FunctionKind) *FunctionObject {
	return &FunctionObject{
		Name:              name,
		Arity:             arity,
		Kind:              kind,
		Chunk:             NewChunk(),
		ThisRegister:      -1,
		CalleeRegister:    -1,
		NewTargetRegister: -1,
	}
}

// Upvalue is a captured variable. While open, Location points into the
// register stack at slot; Close copies the value out.
type Upvalue struct {
	Location *Value
	Closed   Value
	slot     int
}

func (uv *Upvalue) Close() {
	if uv.Location != nil {
		uv.Closed = *uv.Location
		uv.Location = nil
	}
}

func (uv *Upvalue) Resolve() *Value {
	if uv.Location == nil {
		return &uv.Closed
	}
	return uv.Location
}

type ClosureObject struct {
	Object
	Fn       *FunctionObject
	Upvalues []*Upvalue
	Class    *ClassInfo // set when the closure is a class constructor
}

// NativeFn is a Go function callable from scripts.
type NativeFn func(vm *VM, this Value, args []Value) (Value, error)

// NativeCtor constructs an object for `new`; newTarget supplies the
// prototype.
type NativeCtor func(vm *VM, args []Value, newTarget Value) (Value, error)

type NativeFunctionObject struct {
	Object
	Name      string
	Arity     int
	Fn        NativeFn
	Construct NativeCtor // nil when not a constructor
}

// --- Classes ---

// ClassTemplate is what the compiler knows about a class declaration.
// Every evaluation of the declaration turns it into a fresh ClassInfo.
type ClassTemplate struct {
	ID      privatename.ClassID
	Name    string
	Derived bool               // has an extends clause
	Table   *privatename.Table // nil when the class declares no private names
}

// ClassInfo is the per-evaluation state hanging off a class constructor.
type ClassInfo struct {
	Template  *ClassTemplate
	Env       *PrivateEnvironment // nil without private names
	FieldInit Value               // instance field initialiser, or Undefined
}

// PrivateEnvironment holds what one evaluation of a class declaration
// created for its private names: fresh brands and the method and accessor
// closures. Fields live on the instances.
type PrivateEnvironment struct {
	Table       *privatename.Table
	Brand       *privatename.Brand
	StaticBrand *privatename.Brand
	methods     map[string]Value
	getters     map[string]Value
	setters     map[string]Value
}

func newPrivateEnvironment(t *ClassTemplate) *PrivateEnvironment {
	return &PrivateEnvironment{
		Table:       t.Table,
		Brand:       privatename.NewBrand(t.ID, false, t.Name),
		StaticBrand: privatename.NewBrand(t.ID, true, t.Name),
		methods:     make(map[string]Value),
		getters:     make(map[string]Value),
		setters:     make(map[string]Value),
	}
}

// brandFor returns the brand guarding d in this evaluation.
func (e *PrivateEnvironment) brandFor(d *privatename.Descriptor) *privatename.Brand {
	if d.Static {
		return e.StaticBrand
	}
	return e.Brand
}
