package interp

import "testing"

// Enum members without an explicit value auto-increment from 0, and an
// explicit value resets the counter for subsequent members (SPEC_FULL.md
// §C.3).
func TestEnumAutoIncrementAndExplicitValue(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`
enum Status {
	PENDING,
	ACTIVE = 5,
	DONE
}
`); err != nil {
		t.Fatalf("declaring enum: %v", err)
	}
	v, _, ok := i.eval.Global.Lookup("Status")
	if !ok {
		t.Fatal("Status not bound in global scope")
	}
	e, ok := v.(*EnumValue)
	if !ok {
		t.Fatalf("Status = %v (%T), want *EnumValue", v, v)
	}
	want := map[string]int64{"PENDING": 0, "ACTIVE": 5, "DONE": 6}
	for name, val := range want {
		if got, ok := e.Members[name]; !ok || got != val {
			t.Errorf("Status.%s = %v, want %d", name, got, val)
		}
	}
}

// Two members of the same enum sharing a name is a ValueError at
// declaration time.
func TestEnumDuplicateMemberRejected(t *testing.T) {
	i := New(Options{})
	_, err := i.Eval(`
enum Dup {
	A,
	A
}
`)
	if err == nil {
		t.Fatal("expected error for duplicate enum member")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != ValueError {
		t.Fatalf("got %v, want ValueError", err)
	}
}

// Member access via dot syntax yields a bound EnumMemberValue; the same
// member accessed twice compares equal, distinct members do not (spec §3.2
// value-equality semantics, the EnumMemberValue case of Equal()).
func TestEnumMemberAccessAndEquality(t *testing.T) {
	i := New(Options{})
	v, err := i.Eval(`
enum Color { RED, GREEN, BLUE }
a = Color.RED
b = Color.RED
c = Color.GREEN
[a == b, a == c]
`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lv, ok := v.(*ListValue)
	if !ok || len(lv.Items) != 2 {
		t.Fatalf("result = %v, want 2-element list", v)
	}
	if bv, ok := lv.Items[0].(BoolValue); !ok || !bool(bv) {
		t.Errorf("Color.RED == Color.RED = %v, want true", lv.Items[0])
	}
	if bv, ok := lv.Items[1].(BoolValue); !ok || bool(bv) {
		t.Errorf("Color.RED == Color.GREEN = %v, want false", lv.Items[1])
	}

	rv, err := i.Eval(`Color.RED`)
	if err != nil {
		t.Fatalf("Color.RED: %v", err)
	}
	mv, ok := rv.(*EnumMemberValue)
	if !ok {
		t.Fatalf("Color.RED = %v (%T), want *EnumMemberValue", rv, rv)
	}
	if mv.Member != "RED" || mv.Val != 0 {
		t.Errorf("Color.RED = {%s, %d}, want {RED, 0}", mv.Member, mv.Val)
	}
}
