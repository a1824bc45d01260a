package vm

import (
	"math"
	"strconv"
	"strings"
	"unsafe"
)

type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString

	TypeObject
	TypeClosure
	TypeNativeFunction

	// Internal values. They live in constant pools and registers and never
	// reach user code as ordinary values.
	TypeFunction      // compiled function blueprint
	TypeClassTemplate // static description of one class declaration
	TypePrivateEnv    // private environment of one class evaluation
	TypeUninitialized // TDZ marker for let/const/class and derived `this`
	typeUnset         // global slot that was never assigned
)

// String returns a human-readable name for the ValueType.
func (vt ValueType) String() string {
	switch vt {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeClosure:
		return "closure"
	case TypeNativeFunction:
		return "native function"
	case TypeFunction:
		return "function"
	case TypeClassTemplate:
		return "class template"
	case TypePrivateEnv:
		return "private environment"
	case TypeUninitialized:
		return "uninitialized"
	case typeUnset:
		return "unset"
	default:
		return "unknown"
	}
}

// Value is the VM's tagged value. Numbers and booleans live in num, strings
// in str, everything heap allocated behind obj.
type Value struct {
	typ ValueType
	num float64
	str string
	obj unsafe.Pointer
}

var (
	Undefined     = Value{typ: TypeUndefined}
	Null          = Value{typ: TypeNull}
	True          = Value{typ: TypeBoolean, num: 1}
	False         = Value{typ: TypeBoolean}
	Uninitialized = Value{typ: TypeUninitialized}
	unset         = Value{typ: typeUnset}
)

func Number(f float64) Value { return Value{typ: TypeNumber, num: f} }
func String(s string) Value  { return Value{typ: TypeString, str: s} }

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func ObjectValue(o *Object) Value {
	return Value{typ: TypeObject, obj: unsafe.Pointer(o)}
}

func ClosureValue(c *ClosureObject) Value {
	return Value{typ: TypeClosure, obj: unsafe.Pointer(c)}
}

func NativeFunctionValue(n *NativeFunctionObject) Value {
	return Value{typ: TypeNativeFunction, obj: unsafe.Pointer(n)}
}

func FunctionValue(f *FunctionObject) Value {
	return Value{typ: TypeFunction, obj: unsafe.Pointer(f)}
}

func ClassTemplateValue(t *ClassTemplate) Value {
	return Value{typ: TypeClassTemplate, obj: unsafe.Pointer(t)}
}

func privateEnvValue(e *PrivateEnvironment) Value {
	return Value{typ: TypePrivateEnv, obj: unsafe.Pointer(e)}
}

func (v Value) Type() ValueType { return v.typ }

func (v Value) IsUndefined() bool     { return v.typ == TypeUndefined }
func (v Value) IsNull() bool          { return v.typ == TypeNull }
func (v Value) IsNullish() bool       { return v.typ == TypeUndefined || v.typ == TypeNull }
func (v Value) IsBoolean() bool       { return v.typ == TypeBoolean }
func (v Value) IsNumber() bool        { return v.typ == TypeNumber }
func (v Value) IsString() bool        { return v.typ == TypeString }
func (v Value) IsUninitialized() bool { return v.typ == TypeUninitialized }

// IsObject reports whether v is an object in the language sense, functions
// included.
func (v Value) IsObject() bool {
	switch v.typ {
	case TypeObject, TypeClosure, TypeNativeFunction:
		return true
	}
	return false
}

func (v Value) IsCallable() bool {
	return v.typ == TypeClosure || v.typ == TypeNativeFunction
}

func (v Value) AsBoolean() bool   { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsString() string  { return v.str }

func (v Value) AsPlainObject() *Object {
	if v.typ != TypeObject {
		panic("value is not a plain object: " + v.typ.String())
	}
	return (*Object)(v.obj)
}

func (v Value) AsClosure() *ClosureObject {
	if v.typ != TypeClosure {
		panic("value is not a closure: " + v.typ.String())
	}
	return (*ClosureObject)(v.obj)
}

func (v Value) AsNativeFunction() *NativeFunctionObject {
	if v.typ != TypeNativeFunction {
		panic("value is not a native function: " + v.typ.String())
	}
	return (*NativeFunctionObject)(v.obj)
}

func (v Value) AsFunction() *FunctionObject {
	if v.typ != TypeFunction {
		panic("value is not a function blueprint: " + v.typ.String())
	}
	return (*FunctionObject)(v.obj)
}

func (v Value) AsClassTemplate() *ClassTemplate {
	if v.typ != TypeClassTemplate {
		panic("value is not a class template: " + v.typ.String())
	}
	return (*ClassTemplate)(v.obj)
}

func (v Value) asPrivateEnv() *PrivateEnvironment {
	if v.typ != TypePrivateEnv {
		return nil
	}
	return (*PrivateEnvironment)(v.obj)
}

// header returns the property and brand storage shared by every object
// kind, or nil for primitives.
func (v Value) header() *Object {
	switch v.typ {
	case TypeObject:
		return (*Object)(v.obj)
	case TypeClosure:
		return &(*ClosureObject)(v.obj).Object
	case TypeNativeFunction:
		return &(*NativeFunctionObject)(v.obj).Object
	}
	return nil
}

// IsFalsey implements ToBoolean, negated.
func (v Value) IsFalsey() bool {
	switch v.typ {
	case TypeUndefined, TypeNull, TypeUninitialized, typeUnset:
		return true
	case TypeBoolean:
		return v.num == 0
	case TypeNumber:
		return v.num == 0 || math.IsNaN(v.num)
	case TypeString:
		return v.str == ""
	}
	return false
}

func (v Value) IsTruthy() bool { return !v.IsFalsey() }

// ToFloat converts primitives with the language's ToNumber rules. Objects
// convert to NaN; the VM calls toString on them first where that matters.
func (v Value) ToFloat() float64 {
	switch v.typ {
	case TypeNumber, TypeBoolean:
		return v.num
	case TypeNull:
		return 0
	case TypeString:
		return parseStringToNumber(v.str)
	}
	return math.NaN()
}

func parseStringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(s, "_") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// formatNumber renders a float the way Number.prototype.toString does.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		return cleanExponentialFormat(strconv.FormatFloat(f, 'e', -1, 64))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// cleanExponentialFormat removes leading zeros from the exponent:
// "1e-07" -> "1e-7".
func cleanExponentialFormat(s string) string {
	i := strings.IndexAny(s, "eE")
	if i < 0 || i+2 > len(s) {
		return s
	}
	sign := s[i+1]
	if sign != '+' && sign != '-' {
		return s
	}
	digits := strings.TrimLeft(s[i+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return s[:i+1] + string(sign) + digits
}

// ToString converts without calling into user code: objects render as
// their default tags. The VM's toString handles user-defined toString.
func (v Value) ToString() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case TypeNumber:
		return formatNumber(v.num)
	case TypeString:
		return v.str
	case TypeObject:
		return "[object " + v.AsPlainObject().className() + "]"
	case TypeClosure, TypeNativeFunction:
		return "function " + functionName(v) + "() { [code] }"
	}
	return "<" + v.typ.String() + ">"
}

// Inspect renders a value for diagnostics: strings are quoted.
func (v Value) Inspect() string {
	switch v.typ {
	case TypeString:
		return strconv.Quote(v.str)
	case TypeClosure, TypeNativeFunction:
		name := functionName(v)
		if name == "" {
			return "[Function (anonymous)]"
		}
		if v.typ == TypeClosure && v.AsClosure().Class != nil {
			return "[class " + name + "]"
		}
		return "[Function: " + name + "]"
	}
	return v.ToString()
}

// TypeofString implements the typeof operator.
func (v Value) TypeofString() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull, TypeObject:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeClosure, TypeNativeFunction:
		return "function"
	}
	return "undefined"
}

// StrictlyEquals implements ===.
func (v Value) StrictlyEquals(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean, TypeNumber:
		return v.num == other.num
	case TypeString:
		return v.str == other.str
	}
	return v.obj == other.obj
}

// Equals implements == for the primitive cases; objects compare by
// identity.
func (v Value) Equals(other Value) bool {
	if v.typ == other.typ {
		return v.StrictlyEquals(other)
	}
	if v.IsNullish() && other.IsNullish() {
		return true
	}
	if v.IsNullish() || other.IsNullish() || v.IsObject() || other.IsObject() {
		return false
	}
	return v.ToFloat() == other.ToFloat()
}

// SameValue is like === except that NaN equals NaN and +0 differs from -0.
func (v Value) SameValue(other Value) bool {
	if v.typ == TypeNumber && other.typ == TypeNumber {
		if math.IsNaN(v.num) && math.IsNaN(other.num) {
			return true
		}
		if v.num == 0 && other.num == 0 {
			return math.Signbit(v.num) == math.Signbit(other.num)
		}
	}
	return v.StrictlyEquals(other)
}

func functionName(v Value) string {
	switch v.typ {
	case TypeClosure:
		c := v.AsClosure()
		if c.Class != nil && c.Class.Template.Name != "" {
			return c.Class.Template.Name
		}
		return c.Fn.Name
	case TypeNativeFunction:
		return v.AsNativeFunction().Name
	}
	return ""
}
