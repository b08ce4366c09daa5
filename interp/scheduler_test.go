package interp

import "testing"

// Awaiting a spawned expression produces the same value the expression
// would produce when evaluated synchronously (spec §8).
func TestSpawnAwaitMatchesSynchronousEvaluation(t *testing.T) {
	i := New(Options{})
	if _, err := i.Eval(`func compute() { return 2 * 21 }`); err != nil {
		t.Fatalf("declaring compute: %v", err)
	}
	sync, err := i.Eval(`compute()`)
	if err != nil {
		t.Fatalf("synchronous compute(): %v", err)
	}
	async, err := i.Eval(`await spawn compute()`)
	if err != nil {
		t.Fatalf("await spawn compute(): %v", err)
	}
	if !Equal(sync, async) {
		t.Errorf("await spawn compute() = %v, want %v", async, sync)
	}
}

// Scenario 5: two spawned tasks that each increment a shared counter both
// run to completion when awaited from top level, without interleaving
// inside a non-yielding region, so both increments are observed (spec §8).
func TestTwoSpawnedTasksBothObserveTheirIncrement(t *testing.T) {
	i := New(Options{})
	src := `
counter = 0
func bump() {
	counter += 1
	return counter
}
p1 = spawn bump()
p2 = spawn bump()
await p1
await p2
counter
`
	v, err := i.Eval(src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	iv, ok := v.(*IntValue)
	if !ok || iv.Val != 2 {
		t.Errorf("counter = %v, want 2", v)
	}
}

// Promise.all resolves to the list of resolved values in input order
// (spec §4.7).
func TestPromiseAllOrdersResultsByInput(t *testing.T) {
	sched := NewScheduler()
	p1 := sched.Spawn(func() (Value, *Error) { return NewIntValue(1, KDefaultInt), nil })
	p2 := sched.Spawn(func() (Value, *Error) { return NewIntValue(2, KDefaultInt), nil })
	result := sched.PromiseAll([]*PromiseValue{p1, p2})
	if result.State != Fulfilled {
		t.Fatalf("Promise.all state = %v, want Fulfilled", result.State)
	}
	lv, ok := result.Value.(*ListValue)
	if !ok || len(lv.Items) != 2 {
		t.Fatalf("Promise.all value = %v, want a 2-element list", result.Value)
	}
	a := lv.Items[0].(*IntValue)
	b := lv.Items[1].(*IntValue)
	if a.Val != 1 || b.Val != 2 {
		t.Errorf("Promise.all order = (%d, %d), want (1, 2)", a.Val, b.Val)
	}
}

func TestPromiseAllRejectsWithFirstRejection(t *testing.T) {
	sched := NewScheduler()
	p1 := sched.Spawn(func() (Value, *Error) { return nil, newErr(ValueError, Span{}, "first failure") })
	p2 := sched.Spawn(func() (Value, *Error) { return NewIntValue(2, KDefaultInt), nil })
	result := sched.PromiseAll([]*PromiseValue{p1, p2})
	if result.State != Rejected {
		t.Fatalf("Promise.all state = %v, want Rejected", result.State)
	}
	if result.ErrMsg != "first failure" {
		t.Errorf("Promise.all error = %q, want %q", result.ErrMsg, "first failure")
	}
}
