package interp

// Scope is one frame of the evaluator's scope stack (spec §3.3). The const
// set and type-constraint map ride alongside the frame itself (spec §9
// design note "Scope as a stack of maps") rather than living process-wide,
// so popping a Scope automatically discards everything it introduced.
type Scope struct {
	parent *Scope
	vars   map[string]Value
	consts map[string]bool
	types  map[string]string // name -> declared type string, for assignment coercion
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: map[string]Value{}, consts: map[string]bool{}, types: map[string]string{}}
}

// DefineFunc registers fn under name in this scope frame (spec §4.4 "per
// scope, a table of name -> list of overloads"). Overload sets live as an
// ordinary *OverloadSetValue binding so the rest of the scope machinery
// (lookup, shadowing, module export) treats a function name exactly like
// any other variable.
func (s *Scope) DefineFunc(name string, fn *FunctionValue) *Error {
	existing, ok := s.vars[name]
	var set *OverloadSetValue
	if ok {
		set, ok = existing.(*OverloadSetValue)
	}
	if !ok {
		set = &OverloadSetValue{Name: name, Resolver: NewOverloadResolver()}
		s.vars[name] = set
	}
	return set.Resolver.Add(name, fn)
}

// Define introduces a new binding in this scope frame.
func (s *Scope) Define(name string, v Value, isConst bool, declaredType string) {
	s.vars[name] = v
	if isConst {
		s.consts[name] = true
	}
	if declaredType != "" {
		s.types[name] = declaredType
	}
}

// Lookup walks outward from this scope to find a binding.
func (s *Scope) Lookup(name string) (Value, *Scope, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, cur, true
		}
	}
	return nil, nil, false
}

// IsConst reports whether name is bound const anywhere on the chain.
func (s *Scope) IsConst(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			return cur.consts[name]
		}
	}
	return false
}

// DeclaredType returns the type constraint for name, if any, searching
// outward.
func (s *Scope) DeclaredType(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			t, ok := cur.types[name]
			return t, ok
		}
	}
	return "", false
}

// Assign walks the scope stack from innermost outward and reassigns the
// first binding found (spec §4.5 Assignment); if none is found it binds in
// this (the current) scope.
func (s *Scope) Assign(name string, v Value) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

func (s *Scope) Has(name string) bool {
	_, _, ok := s.Lookup(name)
	return ok
}
