package interp

import (
	"strings"
	"testing"
)

// Round-trip: every value in a kind's range survives widen-to-i64 then
// narrow-back unchanged (spec §8 "round-trips and laws").
func TestIntKindRoundTrip(t *testing.T) {
	kinds := []IntKind{KI8, KI16, KI32, KI64, KU8, KU16, KU32}
	for _, k := range kinds {
		lo, hi := k.Range()
		samples := []int64{lo, hi, (lo + hi) / 2}
		if lo < 0 && hi > 0 {
			samples = append(samples, 0)
		}
		for _, v := range samples {
			wide, err := ConvertTo(Int{Val: v, Kind: k}, KI64, Span{})
			if err != nil {
				t.Fatalf("kind %s value %d: widen failed: %v", k.TypeName(), v, err)
			}
			narrow, err := ConvertTo(wide, k, Span{})
			if err != nil {
				t.Fatalf("kind %s value %d: narrow failed: %v", k.TypeName(), v, err)
			}
			if narrow.Val != v {
				t.Errorf("kind %s: round-trip(%d) = %d, want %d", k.TypeName(), v, narrow.Val, v)
			}
		}
	}
}

func TestIntKindOutOfRangeOverflows(t *testing.T) {
	if err := CheckOverflow(300, KU8, Span{Line: 1, Col: 1}); err == nil {
		t.Fatal("expected OverflowError for 300 in u8")
	} else if err.Kind != OverflowError {
		t.Fatalf("got %v, want OverflowError", err.Kind)
	}
}

// Scenario 1: const x : u8 = 300 raises TypeError-family OverflowError
// whose message names the literal and the legal range (spec §8).
func TestConstU8OverflowScript(t *testing.T) {
	i := New(Options{})
	_, err := i.Eval(`const x : u8 = 300`)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	zerr, ok := err.(*Error)
	if !ok || zerr.Kind != OverflowError {
		t.Fatalf("got %v, want OverflowError", err)
	}
	for _, want := range []string{"300", "0", "255"} {
		if !strings.Contains(zerr.Message, want) {
			t.Errorf("message %q missing %q", zerr.Message, want)
		}
	}
}

// Arithmetic under promotion agrees between A(v) and B(v) for v representable
// in both kinds (spec §8 promotion law).
func TestPromotionAgreement(t *testing.T) {
	a, b := Int{Val: 10, Kind: KI16}, Int{Val: 10, Kind: KI32}
	pk := promote(a.Kind, b.Kind, a.Val, b.Val)
	if pk != KI32 {
		t.Fatalf("promote(i16,i32) = %s, want i32", pk.TypeName())
	}
	sum := a.Val + b.Val
	if err := CheckOverflow(sum, pk, Span{}); err != nil {
		t.Fatalf("unexpected overflow: %v", err)
	}
}

func TestPromotionEqualWidthSignedUnsigned(t *testing.T) {
	// u32 value within i32's signed range: promotes to the signed kind.
	if k := promote(KI32, KU32, 0, 100); k != KI32 {
		t.Errorf("promote(i32, u32=100) = %s, want i32", k.TypeName())
	}
	// u32 value outside i32's signed range: widens to i64 (SPEC_FULL.md §C.1).
	if k := promote(KI32, KU32, 0, 3000000000); k != KI64 {
		t.Errorf("promote(i32, u32=3e9) = %s, want i64", k.TypeName())
	}
}
