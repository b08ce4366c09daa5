package interp

import (
	"strings"
	"testing"
)

// Scenario 2: func f(x: int){return 1} func f(x: float){return 2};
// f(3) -> 1, f(3.0) -> 2, f("s") -> TypeError listing both candidates
// (spec §8).
func TestOverloadResolutionByType(t *testing.T) {
	src := `
func f(x: int) { return 1 }
func f(x: float) { return 2 }
`
	i := New(Options{})
	if _, err := i.Eval(src); err != nil {
		t.Fatalf("declaring overloads: %v", err)
	}
	v, err := i.Eval("f(3)")
	if err != nil {
		t.Fatalf("f(3): %v", err)
	}
	if iv, ok := v.(*IntValue); !ok || iv.Val != 1 {
		t.Fatalf("f(3) = %v, want 1", v)
	}

	v, err = i.Eval("f(3.0)")
	if err != nil {
		t.Fatalf("f(3.0): %v", err)
	}
	if iv, ok := v.(*IntValue); !ok || iv.Val != 2 {
		t.Fatalf("f(3.0) = %v, want 2", v)
	}

	_, err = i.Eval(`f("s")`)
	if err == nil {
		t.Fatal(`expected TypeError for f("s")`)
	}
	zerr, ok := err.(*Error)
	if !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

// An int argument converting to i64 (distance 1) and to float (distance 1)
// scores identically, so both candidates tie at the top score and the
// resolver must report ambiguity naming both signatures (spec §4.4 step 3).
func TestOverloadAmbiguousCallListsBothSignatures(t *testing.T) {
	r := NewOverloadResolver()
	toI64 := &FunctionValue{Name: "g", Params: []Param{{Name: "x", Type: "i64"}}}
	toFloat := &FunctionValue{Name: "g", Params: []Param{{Name: "x", Type: "float"}}}
	if err := r.Add("g", toI64); err != nil {
		t.Fatalf("registering g(i64): %v", err)
	}
	if err := r.Add("g", toFloat); err != nil {
		t.Fatalf("registering g(float): %v", err)
	}
	_, err := r.Resolve("g", []Value{NewIntValue(3, KDefaultInt)})
	if err == nil {
		t.Fatal("expected ambiguous-call TypeError")
	}
	zerr, ok := err, err != nil
	if !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
	if !strings.Contains(zerr.Message, "i64") || !strings.Contains(zerr.Message, "float") {
		t.Errorf("ambiguity message %q does not list both candidate signatures", zerr.Message)
	}
}

func TestOverloadDuplicateSignatureRejected(t *testing.T) {
	r := NewOverloadResolver()
	a := &FunctionValue{Name: "h", Params: []Param{{Name: "x", Type: "int"}}}
	b := &FunctionValue{Name: "h", Params: []Param{{Name: "y", Type: "int"}}}
	if err := r.Add("h", a); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.Add("h", b); err == nil {
		t.Fatal("expected rejection of duplicate (name, param-type sequence)")
	}
}

func TestOverloadImplicitIntWidening(t *testing.T) {
	r := NewOverloadResolver()
	fn := &FunctionValue{Name: "wide", Params: []Param{{Name: "x", Type: "i64"}}}
	if err := r.Add("wide", fn); err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve("wide", []Value{NewIntValue(5, KI8)})
	if err != nil {
		t.Fatalf("expected widening i8->i64 to resolve: %v", err)
	}
	if k, ok := res.Conversions[0]; !ok || k != KI64 {
		t.Fatalf("expected conversion to i64, got %v", res.Conversions)
	}
}
