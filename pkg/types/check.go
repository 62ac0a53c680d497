package types

import (
	"errors"

	"wizardc.dev/wizardc/pkg/token"
)

// CheckEqual implements the assignment/initializer compatibility rule:
// decay rhs arrays, then either both sides must be pointers of the same
// depth and leaf kind, or both must be integer types. Char and Int are
// mutually assignable (both are "integer").
func CheckEqual(lhs, rhs *Type) error {
	rhs = rhs.Decay()

	switch {
	case lhs.IsPointer() && rhs.IsPointer():
		if !ArePointerCompatible(lhs, rhs) {
			return errors.New("assignment between incompatible pointer types")
		}
		return nil
	case lhs.IsPointer() != rhs.IsPointer():
		return errors.New("assignment mismatch between pointer and non-pointer type")
	case lhs.IsInteger() && rhs.IsInteger():
		return nil
	default:
		return errors.New("assignment between incompatible types")
	}
}

// ArePointerCompatible reports whether a and b are pointers of the same
// nesting depth whose leaf (non-pointer) kind matches.
func ArePointerCompatible(a, b *Type) bool {
	for a.Kind == PointerKind && b.Kind == PointerKind {
		a, b = a.Base, b.Base
	}
	if a.Kind == PointerKind || b.Kind == PointerKind {
		return false // depths differ
	}
	return leafKind(a) == leafKind(b)
}

func leafKind(t *Type) Kind {
	if t.IsInteger() {
		return IntKind // char/int are interchangeable leaves for pointer compatibility
	}
	return t.Kind
}

// BinaryResult describes both the result type of a binary operation and any
// AST rewriting the parser must perform to realize pointer-arithmetic
// scaling, since that scaling is emitted as an explicit multiply/divide
// node rather than handled implicitly by the emitter.
type BinaryResult struct {
	Type *Type

	// ScaleRHS/ScaleLHS are non-zero when that operand is the integer side
	// of a pointer +/- int expression and must be multiplied by the
	// pointee size before the operation is emitted.
	ScaleLHS int64
	ScaleRHS int64

	// Divide is non-zero for pointer - pointer, meaning the raw subtraction
	// result must be divided by this pointee size.
	Divide int64
}

// CheckBinary implements check_binary: decay both operands, dispatch to
// pointer-arithmetic rules for + and - when either side is a pointer,
// reject pointers for * and /, and otherwise widen integers (promoting
// char to int uniformly, see DESIGN.md open-question resolution).
func CheckBinary(op token.Kind, lhs, rhs *Type) (*BinaryResult, error) {
	lhs, rhs = lhs.Decay(), rhs.Decay()

	switch op {
	case token.Plus, token.Minus:
		return checkAddSub(op, lhs, rhs)
	case token.Star, token.Slash:
		if lhs.IsPointer() || rhs.IsPointer() {
			return nil, errors.New("pointer operand not allowed in '*' or '/'")
		}
		return &BinaryResult{Type: Widest(lhs, rhs)}, nil
	case token.BitAnd:
		if lhs.IsPointer() || rhs.IsPointer() {
			return nil, errors.New("pointer operand not allowed in '&'")
		}
		return &BinaryResult{Type: Widest(lhs, rhs)}, nil
	case token.Lt, token.Le, token.Gt, token.Ge, token.Eq, token.Neq:
		return &BinaryResult{Type: Int}, nil
	default:
		return nil, errors.New("unsupported binary operator")
	}
}

func checkAddSub(op token.Kind, lhs, rhs *Type) (*BinaryResult, error) {
	switch {
	case lhs.IsPointer() && rhs.IsPointer():
		if op != token.Minus {
			return nil, errors.New("pointer + pointer is not a valid operation")
		}
		if !ArePointerCompatible(lhs, rhs) {
			return nil, errors.New("subtraction between incompatible pointer types")
		}
		return &BinaryResult{Type: Int, Divide: lhs.Base.Size()}, nil

	case lhs.IsPointer() && rhs.IsInteger():
		return &BinaryResult{Type: lhs, ScaleRHS: lhs.Base.Size()}, nil

	case rhs.IsPointer() && lhs.IsInteger():
		if op == token.Minus {
			return nil, errors.New("cannot subtract a pointer from an integer")
		}
		return &BinaryResult{Type: rhs, ScaleLHS: rhs.Base.Size()}, nil

	case lhs.IsInteger() && rhs.IsInteger():
		return &BinaryResult{Type: Widest(lhs, rhs)}, nil

	default:
		return nil, errors.New("incompatible operand types")
	}
}
