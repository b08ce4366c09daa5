package interp

import "testing"

// Instantiating a class declared abstract is a TypeError (spec §4.5).
func TestAbstractClassInstantiationRejected(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`
abstract class Shape {
	abstract func area()
}
`); err != nil {
		t.Fatalf("declaring Shape: %v", err)
	}
	_, err := i.Eval(`Shape()`)
	if err == nil {
		t.Fatal("expected TypeError instantiating an abstract class")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

// A non-abstract subclass that does not override every inherited abstract
// method is rejected at class-declaration time, not at call time.
func TestMissingAbstractOverrideRejectedAtDeclTime(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`
abstract class Shape {
	abstract func area()
}
`); err != nil {
		t.Fatalf("declaring Shape: %v", err)
	}
	_, err := i.Eval(`
class Circle : Shape {
	func init(r) { this.r = r }
}
`)
	if err == nil {
		t.Fatal("expected TypeError for missing override of abstract method 'area'")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

// Overriding every abstract method makes the subclass concrete and
// instantiable, and the override runs in place of the abstract stub.
func TestAbstractOverrideSatisfiedAllowsInstantiation(t *testing.T) {
	i := New(Options{})
	src := `
abstract class Shape {
	abstract func area()
}
class Square : Shape {
	func init(side) { this.side = side }
	func area() { return this.side * this.side }
}
s = Square(4)
s.area()
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if iv, ok := v.(*IntValue); !ok || iv.Val != 16 {
		t.Errorf("s.area() = %v, want 16", v)
	}
}

// Inheriting from a class declared final is a TypeError (spec §4.5).
func TestFinalClassInheritanceRejected(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`final class Sealed { func m() { return 1 } }`); err != nil {
		t.Fatalf("declaring Sealed: %v", err)
	}
	_, err := i.Eval(`class Breaks : Sealed {}`)
	if err == nil {
		t.Fatal("expected TypeError inheriting from a final class")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

// A class declaring it implements an interface but omitting a required
// method is a TypeError at class-declaration time; implementing all
// required methods satisfies the interface and is usable through it.
func TestInterfaceConformanceCheckedAtDeclTime(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`interface Speaker { func speak() }`); err != nil {
		t.Fatalf("declaring Speaker: %v", err)
	}
	_, err := i.Eval(`class Mute : Speaker {}`)
	if err == nil {
		t.Fatal("expected TypeError for class missing interface method 'speak'")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}

	v, err := i.Eval(`
class Parrot : Speaker {
	func speak() { return "squawk" }
}
Parrot().speak()
`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if sv, ok := v.(*StringValue); !ok || sv.S != "squawk" {
		t.Errorf("Parrot().speak() = %v, want \"squawk\"", v)
	}
}

// Method overload resolution climbs the class chain child-first: a call
// that has no viable overload on the instance's own class falls through to
// the parent's overload set (spec §4.5 "resolves against the instance's
// class chain (child-first)").
func TestMethodOverloadResolutionClimbsClassChain(t *testing.T) {
	i := New(Options{})
	src := `
class A {
	func m(x: int) { return 1 }
}
class B : A {
	func m(x: list) { return 2 }
}
b = B()
b.m(5)
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if iv, ok := v.(*IntValue); !ok || iv.Val != 1 {
		t.Errorf("b.m(5) = %v, want 1 (A.m via chain fallthrough)", v)
	}
}
