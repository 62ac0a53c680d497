package types_test

import (
	"testing"

	"wizardc.dev/wizardc/pkg/token"
	"wizardc.dev/wizardc/pkg/types"
)

func TestCheckEqualIntegersAndPointers(t *testing.T) {
	if err := types.CheckEqual(types.Int, types.Char); err != nil {
		t.Errorf("int = char should be allowed, got: %v", err)
	}
	p1 := types.NewPointer(types.Int)
	p2 := types.NewPointer(types.Char)
	if err := types.CheckEqual(p1, p2); err != nil {
		t.Errorf("int* = char* should be allowed (integer leaves unify), got: %v", err)
	}
	if err := types.CheckEqual(types.Int, p1); err == nil {
		t.Error("int = int* should be rejected")
	}
}

func TestCheckEqualArrayDecay(t *testing.T) {
	arr := types.NewArray(types.Int, 4)
	ptr := types.NewPointer(types.Int)
	if err := types.CheckEqual(ptr, arr); err != nil {
		t.Errorf("int* = int[4] should decay and be allowed, got: %v", err)
	}
}

func TestArePointerCompatibleDepth(t *testing.T) {
	pp := types.NewPointer(types.NewPointer(types.Int))
	p := types.NewPointer(types.Int)
	if types.ArePointerCompatible(pp, p) {
		t.Error("pointers of differing depth should not be compatible")
	}
	if !types.ArePointerCompatible(p, types.NewPointer(types.Char)) {
		t.Error("int* and char* should be compatible (integer leaves unify)")
	}
}

func TestCheckBinaryPointerArithmetic(t *testing.T) {
	ptr := types.NewPointer(types.Int)

	res, err := types.CheckBinary(token.Plus, ptr, types.Int)
	if err != nil {
		t.Fatalf("pointer + int should be allowed, got: %v", err)
	}
	if res.ScaleRHS != 8 {
		t.Errorf("scale factor = %d, want 8", res.ScaleRHS)
	}

	res, err = types.CheckBinary(token.Minus, ptr, ptr)
	if err != nil {
		t.Fatalf("pointer - pointer should be allowed, got: %v", err)
	}
	if res.Divide != 8 {
		t.Errorf("divide factor = %d, want 8", res.Divide)
	}

	if _, err := types.CheckBinary(token.Plus, ptr, ptr); err == nil {
		t.Error("pointer + pointer should be rejected")
	}
}

func TestCheckBinaryRejectsPointersForMulDivAndAnd(t *testing.T) {
	ptr := types.NewPointer(types.Int)
	if _, err := types.CheckBinary(token.Star, ptr, types.Int); err == nil {
		t.Error("pointer * int should be rejected")
	}
	if _, err := types.CheckBinary(token.Slash, types.Int, ptr); err == nil {
		t.Error("int / pointer should be rejected")
	}
	if _, err := types.CheckBinary(token.BitAnd, ptr, types.Int); err == nil {
		t.Error("pointer & int should be rejected")
	}
}

func TestCheckBinaryBitAndWidensIntegers(t *testing.T) {
	res, err := types.CheckBinary(token.BitAnd, types.Char, types.Char)
	if err != nil {
		t.Fatalf("char & char should be allowed, got: %v", err)
	}
	if res.Type != types.Int {
		t.Errorf("char & char should widen to int, got %v", res.Type)
	}
}

func TestCheckBinaryComparisonsAlwaysInt(t *testing.T) {
	res, err := types.CheckBinary(token.Lt, types.Char, types.NewPointer(types.Int))
	if err != nil {
		t.Fatalf("comparisons should be permissive about operand types, got: %v", err)
	}
	if res.Type != types.Int {
		t.Errorf("comparison result = %v, want int", res.Type)
	}
}
