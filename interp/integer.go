package interp

import "fmt"

// IntKind is the integer kind tag (spec §3.2). DefaultInt and I32 are
// interchangeable for display and arithmetic (spec §4.3).
type IntKind int

const (
	KDefaultInt IntKind = iota
	KI8
	KI16
	KI32
	KI64
	KU8
	KU16
	KU32
	KU64
)

// TypeName returns the exact display name: "int" for DefaultInt, the exact
// suffix otherwise (spec §3.2, grounded on int_object_t::type_name()).
func (k IntKind) TypeName() string {
	switch k {
	case KDefaultInt:
		return "int"
	case KI8:
		return "i8"
	case KI16:
		return "i16"
	case KI32:
		return "i32"
	case KI64:
		return "i64"
	case KU8:
		return "u8"
	case KU16:
		return "u16"
	case KU32:
		return "u32"
	case KU64:
		return "u64"
	}
	return "int"
}

func ParseIntKindSuffix(suffix string) (IntKind, bool) {
	switch suffix {
	case "":
		return KDefaultInt, true
	case "i8":
		return KI8, true
	case "i16":
		return KI16, true
	case "i32":
		return KI32, true
	case "i64":
		return KI64, true
	case "u8":
		return KU8, true
	case "u16":
		return KU16, true
	case "u32":
		return KU32, true
	case "u64":
		return KU64, true
	}
	return KDefaultInt, false
}

func (k IntKind) IsSigned() bool {
	switch k {
	case KDefaultInt, KI8, KI16, KI32, KI64:
		return true
	}
	return false
}

func (k IntKind) BitSize() int {
	switch k {
	case KI8, KU8:
		return 8
	case KI16, KU16:
		return 16
	case KDefaultInt, KI32, KU32:
		return 32
	case KI64, KU64:
		return 64
	}
	return 32
}

// normalize treats DefaultInt as I32 for range/promotion purposes (spec §4.3
// "Interop with int").
func (k IntKind) normalize() IntKind {
	if k == KDefaultInt {
		return KI32
	}
	return k
}

// Range returns the [lo, hi] legal values for the kind as int64/uint64
// expressed in int64 space (u64's max overflows int64, so it is handled
// specially by InRange/Mask).
func (k IntKind) Range() (lo, hi int64) {
	switch k.normalize() {
	case KI8:
		return -128, 127
	case KI16:
		return -32768, 32767
	case KI32:
		return -2147483648, 2147483647
	case KI64:
		return -9223372036854775808, 9223372036854775807
	case KU8:
		return 0, 255
	case KU16:
		return 0, 65535
	case KU32:
		return 0, 4294967295
	case KU64:
		return 0, 9223372036854775807 // see InRange for the full u64 range
	}
	return -2147483648, 2147483647
}

// InRange reports whether val fits the kind. u64 needs special handling
// because its upper half is not representable as a positive int64.
func (k IntKind) InRange(val int64) bool {
	if k.normalize() == KU64 {
		return true // any int64 bit pattern is a valid u64 value (reinterpreted unsigned)
	}
	lo, hi := k.Range()
	return val >= lo && val <= hi
}

// Mask truncates val to the kind's bit width (spec §4.3 bitwise masking),
// sign-extending for signed kinds narrower than 64 bits.
func (k IntKind) Mask(val int64) int64 {
	bits := k.normalize().BitSize()
	if bits >= 64 {
		return val
	}
	u := uint64(val) & ((uint64(1) << uint(bits)) - 1)
	if k.normalize().IsSigned() {
		signBit := uint64(1) << uint(bits-1)
		if u&signBit != 0 {
			u |= ^uint64(0) << uint(bits)
		}
	}
	return int64(u)
}

// promote computes the common promotion kind of two integer kinds meeting
// in a binary operation (spec §4.3). Wider wins; at equal width, signed
// wins over unsigned only when the operand value is representable in the
// signed range (SPEC_FULL.md §C.1, grounded on int_object_t::get_promotion_kind).
func promote(a, b IntKind, aval, bval int64) IntKind {
	na, nb := a.normalize(), b.normalize()
	if na == nb {
		return a // same kind (e.g. both DefaultInt, or both already normalized equal)
	}
	wa, wb := na.BitSize(), nb.BitSize()
	if wa != wb {
		if wa > wb {
			return a
		}
		return b
	}
	// Equal width, one signed one unsigned (can't both be signed/unsigned
	// and unequal, since normalize() is injective per signedness+width).
	var signedKind, unsignedKind IntKind
	var unsignedVal int64
	if na.IsSigned() {
		signedKind, unsignedKind, unsignedVal = a, b, bval
	} else {
		signedKind, unsignedKind, unsignedVal = b, a, aval
	}
	_, hi := signedKind.Range()
	if unsignedVal >= 0 && unsignedVal <= hi {
		return signedKind
	}
	// Widen to the signed kind of double the bit width, saturating at i64;
	// if already at 64-bit width, fall back to the unsigned kind (u64).
	switch unsignedKind.normalize().BitSize() {
	case 8:
		return KI16
	case 16:
		return KI32
	case 32:
		return KI64
	default:
		return unsignedKind
	}
}

// CheckOverflow validates that result fits target, returning a located
// OverflowError otherwise (spec §4.3, §8 scenario 1).
func CheckOverflow(result int64, target IntKind, span Span) *Error {
	if target.InRange(result) {
		return nil
	}
	lo, hi := target.Range()
	if target.normalize() == KU64 {
		return newErr(OverflowError, span,
			"value %d does not fit in u64 (0..18446744073709551615)", result)
	}
	return newErr(OverflowError, span,
		"value %d does not fit in %s (%d..%d)", result, target.TypeName(), lo, hi)
}

// safeAdd/Sub/Mul implement the unified 64-bit arithmetic core
// (spec §9 design note: one core table, not per-kind fan-out).
func safeAdd(a, b int64) (int64, bool) {
	r := a + b
	overflow := (b > 0 && r < a) || (b < 0 && r > a)
	return r, !overflow
}

func safeSub(a, b int64) (int64, bool) {
	r := a - b
	overflow := (b < 0 && r < a) || (b > 0 && r > a)
	return r, !overflow
}

func safeMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	return r, r/b == a
}

// Int is the unified integer value (spec §3.2). Comparable by value.
type Int struct {
	Val  int64
	Kind IntKind
}

func NewInt(val int64, kind IntKind) Int { return Int{Val: val, Kind: kind} }

func (i Int) TypeName() string { return i.Kind.TypeName() }

// ConvertTo widens/narrows i to target, validating the value fits (used by
// the overload resolver's implicit-conversion adapter and by typed
// assignment coercion, spec §4.4 step 4 / §4.5 Assignment).
func ConvertTo(i Int, target IntKind, span Span) (Int, *Error) {
	if err := CheckOverflow(i.Val, target, span); err != nil {
		return Int{}, err
	}
	return Int{Val: i.Val, Kind: target}, nil
}

func formatUint64(v int64) string {
	return fmt.Sprintf("%d", uint64(v))
}
