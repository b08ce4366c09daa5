package interp

import "testing"

// Scenario 3: with a = none, a?.b / a?.b() / a?.b[0] all short-circuit to
// none (spec §8).
func TestOptionalChainingShortCircuits(t *testing.T) {
	i := New(Options{})
	for _, expr := range []string{"a?.b", "a?.b()", "a?.b[0]"} {
		if _, err := i.Eval("a = none"); err != nil {
			t.Fatalf("a = none: %v", err)
		}
		v, err := i.Eval(expr)
		if err != nil {
			t.Fatalf("%s: %v", expr, err)
		}
		if _, ok := v.(NoneValue); !ok {
			t.Errorf("%s = %v, want none", expr, v)
		}
	}
}

// Scenario 4: for (k, v in d) { acc += k + str(v) } over {"a":1,"b":2}
// produces "a1b2" or "b2a1" (dictionary order unspecified, spec §8/§9).
func TestForEachOverDictionary(t *testing.T) {
	i := New(Options{})
	src := `
d = {"a": 1, "b": 2}
acc = ""
for (k, v in d) { acc += k + str(v) }
acc
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	sv, ok := v.(*StringValue)
	if !ok {
		t.Fatalf("acc = %v (%T), want string", v, v)
	}
	if sv.S != "a1b2" && sv.S != "b2a1" {
		t.Errorf("acc = %q, want \"a1b2\" or \"b2a1\"", sv.S)
	}
}

// A for-each loop variable declared `const` (spec §4.2 "for (const x in …)")
// rejects reassignment inside the body.
func TestForEachConstLoopVarRejectsReassignment(t *testing.T) {
	i := New(Options{})
	_, err := i.Eval(`
for (const x in [1, 2, 3]) {
	x = x + 1
}
`)
	if err == nil {
		t.Fatal("expected an error reassigning a const for-each loop variable")
	}
}

// Spec §8: for a class C with parent P, a method declared on P and not
// overridden on C executes P's method when called on a C instance; if C
// overrides the method, super.m() from C's override executes P's version.
func TestInheritanceAndSuperDispatch(t *testing.T) {
	i := New(Options{})
	src := `
class Animal {
	func speak() { return "..." }
}
class Dog : Animal {
	func speak() { return "Woof then " + super.speak() }
}
d = Dog()
d.speak()
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	sv, ok := v.(*StringValue)
	if !ok || sv.S != "Woof then ..." {
		t.Errorf("d.speak() = %v, want \"Woof then ...\"", v)
	}
}

// A method inherited unmodified from P runs P's body on a C instance, and
// calling super.m() from P's own body (no grandparent) is a TypeError.
func TestInheritedMethodRunsParentBodyNoGrandparentSuperFails(t *testing.T) {
	i := New(Options{})
	src := `
class Base {
	func greet() { return "base" }
}
class Mid : Base {}
m = Mid()
m.greet()
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if sv, ok := v.(*StringValue); !ok || sv.S != "base" {
		t.Errorf("m.greet() = %v, want \"base\"", v)
	}

	_, err = i.Eval(`
class NoSuper {
	func greet() { return super.greet() }
}
n = NoSuper()
n.greet()
`)
	if err == nil {
		t.Fatal("expected TypeError calling super.greet() with no parent class")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

// super.m() climbs past an intermediate ancestor that does not declare m,
// dispatching to the nearest ancestor that does (spec §4.5 "resolves
// starting from the parent class of the class whose method is currently
// executing" implies an upward search, not just the immediate parent).
func TestSuperCallClimbsPastNonOverridingAncestor(t *testing.T) {
	i := New(Options{})
	src := `
class Grandparent {
	func greet() { return "G" }
}
class Parent : Grandparent {}
class Child : Parent {
	func greet() { return "C " + super.greet() }
}
c = Child()
c.greet()
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if sv, ok := v.(*StringValue); !ok || sv.S != "C G" {
		t.Errorf("c.greet() = %v, want \"C G\"", v)
	}
}

// Lambda bodies are isolated across instantiations: a function returning a
// fresh lambda on each call yields independent captures (spec §8).
func TestLambdaCapturesAreIsolatedAcrossInstantiations(t *testing.T) {
	i := New(Options{})
	src := `
func makeGetter(x) {
	return () -> x
}
g1 = makeGetter(1)
g2 = makeGetter(2)
[g1(), g2()]
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lv, ok := v.(*ListValue)
	if !ok || len(lv.Items) != 2 {
		t.Fatalf("result = %v, want a 2-element list", v)
	}
	a, aok := lv.Items[0].(*IntValue)
	b, bok := lv.Items[1].(*IntValue)
	if !aok || !bok || a.Val != 1 || b.Val != 2 {
		t.Errorf("captures = (%v, %v), want (1, 2)", lv.Items[0], lv.Items[1])
	}
}

// try/catch binds the error message to the catch variable (spec §4.5).
func TestTryCatchBindsErrorMessage(t *testing.T) {
	i := New(Options{})
	src := `
msg = ""
try {
	throw "boom"
} catch (e) {
	msg = e
}
msg
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if sv, ok := v.(*StringValue); !ok || sv.S != "boom" {
		t.Errorf("msg = %v, want \"boom\"", v)
	}
}

// switch/case without an explicit break falls through to the following
// case (spec §3.1 "fall-through is explicit via absence of break").
func TestSwitchFallThrough(t *testing.T) {
	i := New(Options{})
	src := `
acc = 0
switch (1) {
	case 1:
		acc += 1
	case 2:
		acc += 2
	default:
		acc += 100
}
acc
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	iv, ok := v.(*IntValue)
	if !ok || iv.Val != 103 {
		t.Errorf("acc = %v, want 103 (fell through case 1 into case 2 and default)", v)
	}
}

// Scope depth is restored after evaluation terminates, whether normally or
// by error (spec §8 quantified invariant).
func TestScopeStackRestoredAfterError(t *testing.T) {
	i := New(Options{})
	depthBefore := scopeDepth(i.eval.Global)
	_, err := i.Eval(`
func boom() {
	x = 1
	throw "nope"
}
boom()
`)
	if err == nil {
		t.Fatal("expected thrown error to propagate")
	}
	if got := scopeDepth(i.eval.Global); got != depthBefore {
		t.Errorf("global scope depth = %d after error, want unchanged %d", got, depthBefore)
	}
}

func scopeDepth(s *Scope) int {
	n := 0
	for cur := s; cur != nil; cur = cur.parent {
		n++
	}
	return n
}
