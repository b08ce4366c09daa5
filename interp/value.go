package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is any Zephyr runtime value (spec §3.2). Ownership is shared: any
// scope or container holding a Value holds the same underlying object, so
// lists/dicts/instances mutate visibly through every alias, matching the
// spec's "ownership is shared" note. Go's reference semantics on pointers
// and map/slice headers give us this for free without a GC-visible wrapper.
type Value interface {
	TypeName() string
	String() string
}

// ---- None ----

type NoneValue struct{}

func (NoneValue) TypeName() string { return "none" }
func (NoneValue) String() string   { return "none" }

var None = NoneValue{}

// ---- Bool ----

type BoolValue bool

func (b BoolValue) TypeName() string { return "bool" }
func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}

// ---- Int ----

type IntValue struct{ Int }

func NewIntValue(val int64, kind IntKind) *IntValue { return &IntValue{Int{Val: val, Kind: kind}} }

func (i *IntValue) TypeName() string { return i.Kind.TypeName() }
func (i *IntValue) String() string {
	if i.Kind.normalize() == KU64 {
		return formatUint64(i.Val)
	}
	return strconv.FormatInt(i.Val, 10)
}

// ---- Float ----

type FloatValue float64

func (f FloatValue) TypeName() string { return "float" }
func (f FloatValue) String() string   { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// ---- String ----

type StringValue struct {
	S string
}

func NewString(s string) *StringValue { return &StringValue{S: s} }

func (s *StringValue) TypeName() string { return "string" }
func (s *StringValue) String() string   { return s.S }

// ---- List ----

type ListValue struct {
	Items []Value
}

func NewList(items []Value) *ListValue { return &ListValue{Items: items} }

func (l *ListValue) TypeName() string { return "list" }
func (l *ListValue) String() string {
	parts := make([]string, len(l.Items))
	for i, v := range l.Items {
		parts[i] = reprOf(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ---- Dict ----

type DictValue struct {
	Keys   []string // insertion order; for-each iteration and keys() follow it
	Values map[string]Value
}

func NewDict() *DictValue { return &DictValue{Values: map[string]Value{}} }

func (d *DictValue) Set(key string, v Value) {
	if _, ok := d.Values[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Values[key] = v
}

func (d *DictValue) Delete(key string) {
	if _, ok := d.Values[key]; !ok {
		return
	}
	delete(d.Values, key)
	for i, k := range d.Keys {
		if k == key {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			break
		}
	}
}

func (d *DictValue) TypeName() string { return "dict" }
func (d *DictValue) String() string {
	keys := make([]string, len(d.Keys))
	copy(keys, d.Keys)
	sort.Strings(keys) // display only; iteration elsewhere follows Keys (insertion order)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q: %s", k, reprOf(d.Values[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func reprOf(v Value) string {
	if s, ok := v.(*StringValue); ok {
		return strconv.Quote(s.S)
	}
	return v.String()
}

// ---- Function ----

type FunctionValue struct {
	Name          string
	Params        []Param
	Body          *Node
	ReturnType    string
	HasReturnType bool
	Async         bool
	Internal      bool
	Abstract      bool
	Closure       *Scope // defining scope, for module-level functions this is the module scope
}

func (f *FunctionValue) TypeName() string { return "function" }
func (f *FunctionValue) String() string   { return "<function " + f.Name + ">" }

// ---- Overload set ----

// OverloadSetValue is the scope binding for a (possibly multi-overload)
// function name (spec §4.4: "per scope, a table of name -> list of
// overloads"). Storing it as an ordinary Value lets function names flow
// through the same lookup, shadowing, and module-export machinery as any
// other binding.
type OverloadSetValue struct {
	Name     string
	Resolver *OverloadResolver
}

func (o *OverloadSetValue) TypeName() string { return "function" }
func (o *OverloadSetValue) String() string   { return "<function " + o.Name + ">" }

// ---- Lambda ----

type LambdaValue struct {
	Params     []Param
	Body       *Node
	IsExprBody bool
	Async      bool
	Captured   *Scope // enclosing scope at creation time, shared (not copied)
}

func (l *LambdaValue) TypeName() string { return "lambda" }
func (l *LambdaValue) String() string   { return "<lambda>" }

// ---- Class ----

type Overload struct {
	Params []Param
	Fn     *FunctionValue
}

type ClassValue struct {
	Name       string
	Parent     *ClassValue
	Interfaces []*InterfaceValue
	MemberVars []MemberVar
	Methods    map[string][]*Overload // method name -> overload set
	Final      bool
	Abstract   bool
	Invalid    bool // never set by the evaluator: a class that fails validation is not bound at all
}

func (c *ClassValue) TypeName() string { return "class" }
func (c *ClassValue) String() string   { return "<class " + c.Name + ">" }

// Chain returns [c, c.Parent, c.Parent.Parent, ...].
func (c *ClassValue) Chain() []*ClassValue {
	var chain []*ClassValue
	for cur := c; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}

// FindMethod searches the class chain child-first for a method name,
// returning the overload set and the class that declares it.
func (c *ClassValue) FindMethod(name string) ([]*Overload, *ClassValue) {
	for _, cls := range c.Chain() {
		if ov, ok := cls.Methods[name]; ok {
			return ov, cls
		}
	}
	return nil, nil
}

func (c *ClassValue) ImplementsInterface(name string) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		for _, iface := range cur.Interfaces {
			if iface.Name == name {
				return true
			}
		}
	}
	return false
}

// ---- Instance ----

type InstanceValue struct {
	Class   *ClassValue
	Members map[string]Value
	Consts  map[string]bool
}

func NewInstance(class *ClassValue) *InstanceValue {
	inst := &InstanceValue{Class: class, Members: map[string]Value{}, Consts: map[string]bool{}}
	for _, cls := range reverseChain(class) {
		for _, mv := range cls.MemberVars {
			inst.Members[mv.Name] = None
			if mv.IsConst {
				inst.Consts[mv.Name] = true
			}
		}
	}
	return inst
}

func reverseChain(c *ClassValue) []*ClassValue {
	chain := c.Chain()
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (i *InstanceValue) TypeName() string { return i.Class.Name }
func (i *InstanceValue) String() string   { return "<" + i.Class.Name + " instance>" }

// ---- Interface ----

type InterfaceValue struct {
	Name       string
	Signatures []*Node // NFuncDecl with nil Body
}

func (i *InterfaceValue) TypeName() string { return "interface" }
func (i *InterfaceValue) String() string   { return "<interface " + i.Name + ">" }

// ---- Enum ----

type EnumValue struct {
	Name    string
	Members map[string]int64
	Order   []string
}

func (e *EnumValue) TypeName() string { return "enum" }
func (e *EnumValue) String() string   { return "<enum " + e.Name + ">" }

type EnumMemberValue struct {
	Enum   *EnumValue
	Member string
	Val    int64
}

func (e *EnumMemberValue) TypeName() string { return e.Enum.Name }
func (e *EnumMemberValue) String() string   { return e.Enum.Name + "." + e.Member }

// ---- Module / ModuleHandle ----

type ModuleValue struct {
	Name      string
	Path      string
	Source    string
	AST       *Node
	Exports   map[string]Value
	Executed  bool
	Scope     *Scope
}

func (m *ModuleValue) TypeName() string { return "module" }
func (m *ModuleValue) String() string   { return "<module " + m.Name + ">" }

// ModuleHandleValue wraps a module, optionally restricted to a whitelist of
// symbol names (spec §4.6 "filtered module handle").
type ModuleHandleValue struct {
	Module    *ModuleValue
	Whitelist map[string]bool // nil means unrestricted
}

func (h *ModuleHandleValue) TypeName() string { return "module" }
func (h *ModuleHandleValue) String() string   { return "<module " + h.Module.Name + ">" }

func (h *ModuleHandleValue) Get(name string) (Value, bool) {
	if h.Whitelist != nil && !h.Whitelist[name] {
		return nil, false
	}
	v, ok := h.Module.Exports[name]
	return v, ok
}

// ---- Promise ----

type PromiseState int

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

type PromiseCallback struct {
	OnFulfilled *LambdaValue
	OnRejected  *LambdaValue
	Result      *PromiseValue
}

type PromiseValue struct {
	State     PromiseState
	Value     Value
	ErrMsg    string
	Callbacks []func(PromiseValue)
	TaskID    int
}

func NewPendingPromise() *PromiseValue { return &PromiseValue{State: Pending} }

func (p *PromiseValue) TypeName() string { return "promise" }
func (p *PromiseValue) String() string   { return "<promise>" }

func (p *PromiseValue) Resolve(v Value) {
	if p.State != Pending {
		return
	}
	p.State = Fulfilled
	p.Value = v
	cbs := p.Callbacks
	p.Callbacks = nil
	for _, cb := range cbs {
		cb(*p)
	}
}

func (p *PromiseValue) Reject(msg string) {
	if p.State != Pending {
		return
	}
	p.State = Rejected
	p.ErrMsg = msg
	cbs := p.Callbacks
	p.Callbacks = nil
	for _, cb := range cbs {
		cb(*p)
	}
}

// ---- Builtin ----

type BuiltinFn func(ev *Evaluator, args []Value, span Span) (Value, *Error)

type BuiltinValue struct {
	Name string
	Fn   BuiltinFn
}

func (b *BuiltinValue) TypeName() string { return "builtin" }
func (b *BuiltinValue) String() string   { return "<builtin " + b.Name + ">" }

// Truthy implements Zephyr's truthiness rule used by if/while/logical ops.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case NoneValue:
		return false
	case BoolValue:
		return bool(t)
	case *IntValue:
		return t.Val != 0
	case FloatValue:
		return t != 0
	case *StringValue:
		return t.S != ""
	case *ListValue:
		return len(t.Items) > 0
	case *DictValue:
		return len(t.Keys) > 0
	}
	return true
}

// Equal implements value-based equality for primitives and reference
// equality for mutables/instances. The evaluator's `==` calls it directly;
// a class method named `equals` is not consulted.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case NoneValue:
		_, ok := b.(NoneValue)
		return ok
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av == bv
	case *IntValue:
		switch bv := b.(type) {
		case *IntValue:
			return av.Val == bv.Val
		case FloatValue:
			return float64(av.Val) == float64(bv)
		}
		return false
	case FloatValue:
		switch bv := b.(type) {
		case FloatValue:
			return av == bv
		case *IntValue:
			return float64(av) == float64(bv.Val)
		}
		return false
	case *StringValue:
		bv, ok := b.(*StringValue)
		return ok && av.S == bv.S
	case *ListValue:
		// Mutables compare by reference, not by contents (spec §3.2: "reference-
		// based for mutables and instances unless their class defines equals").
		bv, ok := b.(*ListValue)
		return ok && av == bv
	case *DictValue:
		bv, ok := b.(*DictValue)
		return ok && av == bv
	case *EnumMemberValue:
		bv, ok := b.(*EnumMemberValue)
		return ok && av.Enum == bv.Enum && av.Member == bv.Member
	}
	// instances, functions, lambdas, classes, modules, promises: reference equality
	return a == b
}

// Identity implements the `is` operator (spec §3.2/§9: identity for
// non-none values; string interning is not guaranteed).
func Identity(a, b Value) bool {
	_, an := a.(NoneValue)
	_, bn := b.(NoneValue)
	if an || bn {
		return an && bn
	}
	switch av := a.(type) {
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av == bv
	case *IntValue:
		bv, ok := b.(*IntValue)
		return ok && av == bv
	case FloatValue:
		bv, ok := b.(FloatValue)
		return ok && av == bv
	}
	return a == b
}
