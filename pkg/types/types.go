// Package types models the small tagged-sum type system of the compiled
// language: integers, characters, pointers, arrays and function signatures.
package types

import "fmt"

type Kind int

const (
	IntKind Kind = iota
	CharKind
	PointerKind
	ArrayKind
	FuncKind
)

// Type is a closed tagged sum over the five kinds above. Only the fields
// relevant to a given Kind are populated; Types are treated as immutable
// values and shared by reference once built.
type Type struct {
	Kind   Kind
	Base   *Type   // Pointer: pointee. Array: element type. Func: return type.
	Len    int64   // Array: element count.
	Params []*Type // Func: parameter types, in order.
}

var (
	Int  = &Type{Kind: IntKind}
	Char = &Type{Kind: CharKind}
)

func NewPointer(base *Type) *Type { return &Type{Kind: PointerKind, Base: base} }

func NewArray(elem *Type, length int64) *Type { return &Type{Kind: ArrayKind, Base: elem, Len: length} }

func NewFunc(ret *Type, params []*Type) *Type { return &Type{Kind: FuncKind, Base: ret, Params: params} }

// Size reports the storage size in bytes, per the invariants: Int is 8,
// Char is 1, Pointer is 8, Array is Len*element-size, Func is not a storable
// value and has size 0.
func (t *Type) Size() int64 {
	switch t.Kind {
	case IntKind:
		return 8
	case CharKind:
		return 1
	case PointerKind:
		return 8
	case ArrayKind:
		return t.Len * t.Base.Size()
	case FuncKind:
		return 0
	default:
		panic(fmt.Sprintf("types: Size of unrecognized kind %d", t.Kind))
	}
}

func (t *Type) IsInteger() bool { return t.Kind == IntKind || t.Kind == CharKind }
func (t *Type) IsPointer() bool { return t.Kind == PointerKind }
func (t *Type) IsArray() bool   { return t.Kind == ArrayKind }

// Decay converts an array type to a pointer to its element, per the
// array-to-pointer decay rule; any other type is returned unchanged.
func (t *Type) Decay() *Type {
	if t.Kind == ArrayKind {
		return NewPointer(t.Base)
	}
	return t
}

// Widest implements the promotion rule for combining two integer types: char
// operands always promote to int before combining, mirroring C's usual
// arithmetic conversions, so the result is int even for char+char.
func Widest(a, b *Type) *Type {
	return Int
}

func (t *Type) String() string {
	switch t.Kind {
	case IntKind:
		return "int"
	case CharKind:
		return "char"
	case PointerKind:
		return t.Base.String() + "*"
	case ArrayKind:
		return fmt.Sprintf("%s[%d]", t.Base.String(), t.Len)
	case FuncKind:
		return fmt.Sprintf("func(...) %s", t.Base.String())
	default:
		return "<invalid type>"
	}
}
