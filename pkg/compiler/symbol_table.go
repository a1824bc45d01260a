package compiler

// BindingKind says how a name was declared.
type BindingKind uint8

const (
	BindVar BindingKind = iota
	BindLet
	BindConst
	BindFunction
	BindClass
	BindParam
	BindHidden // compiler-introduced: this, the active function, new.target, private environments
)

// Symbol represents an entry in the symbol table.
type Symbol struct {
	Name        string
	Kind        BindingKind
	Register    Register // for locals
	IsGlobal    bool
	GlobalIndex uint16
	// TDZ marks bindings that hold the uninitialised marker until their
	// declaration runs; every read checks it.
	TDZ bool
}

// IsConst reports whether assignments to the binding are errors.
func (s Symbol) IsConst() bool {
	return s.Kind == BindConst || s.Kind == BindClass
}

// SymbolTable manages symbols for a single block scope.
type SymbolTable struct {
	Outer *SymbolTable
	store map[string]Symbol

	// watermark is the first register this scope may allocate locals
	// from; leaving the scope closes upvalues from there.
	watermark Register
	hasLocals bool
}

// NewSymbolTable creates the root table of a function.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]Symbol)}
}

// NewEnclosedSymbolTable creates a new symbol table enclosed by an outer scope.
func NewEnclosedSymbolTable(outer *SymbolTable) *SymbolTable {
	return &SymbolTable{Outer: outer, store: make(map[string]Symbol)}
}

// Define adds a local symbol to this scope.
func (st *SymbolTable) Define(name string, kind BindingKind, reg Register, tdz bool) Symbol {
	symbol := Symbol{Name: name, Kind: kind, Register: reg, TDZ: tdz}
	st.store[name] = symbol
	st.hasLocals = true
	return symbol
}

// DefineGlobal adds a global symbol to this scope.
func (st *SymbolTable) DefineGlobal(name string, kind BindingKind, globalIndex uint16) Symbol {
	symbol := Symbol{Name: name, Kind: kind, IsGlobal: true, GlobalIndex: globalIndex}
	st.store[name] = symbol
	return symbol
}

// Lookup finds a symbol in this scope only.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	symbol, ok := st.store[name]
	return symbol, ok
}

// Resolve looks a name up from this scope outwards within one function.
func (st *SymbolTable) Resolve(name string) (Symbol, *SymbolTable, bool) {
	for table := st; table != nil; table = table.Outer {
		if symbol, ok := table.store[name]; ok {
			return symbol, table, true
		}
	}
	return Symbol{}, nil, false
}
