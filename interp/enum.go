package interp

// buildEnum evaluates an NEnumDecl node into an EnumValue (SPEC_FULL.md §C.3,
// grounded on original_source/include/zephyr/objects/enum_object.hpp and
// zephyr/types/enum_type.hpp). Members without an explicit value
// auto-increment from the previous member, starting at 0.
func buildEnum(n *Node) (*EnumValue, *Error) {
	e := &EnumValue{Name: n.Name, Members: map[string]int64{}}
	var next int64
	for _, m := range n.EnumMembers {
		val := next
		if m.HasValue {
			val = m.Value
		}
		if _, dup := e.Members[m.Name]; dup {
			return nil, newErr(ValueError, n.Span, "duplicate enum member '%s' in enum '%s'", m.Name, n.Name)
		}
		e.Members[m.Name] = val
		e.Order = append(e.Order, m.Name)
		next = val + 1
	}
	return e, nil
}

// member looks up a named member, returning a bound EnumMemberValue.
func (e *EnumValue) member(name string) (*EnumMemberValue, bool) {
	v, ok := e.Members[name]
	if !ok {
		return nil, false
	}
	return &EnumMemberValue{Enum: e, Member: name, Val: v}, true
}
