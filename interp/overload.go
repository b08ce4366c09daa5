package interp

import (
	"fmt"
	"strings"
)

// scoreExact/Interface/Untyped/conversion ladder transcribed verbatim from
// original_source/src/function_overload_resolver.cpp
// (calculate_type_match_score_with_object), per spec §4.4.
const (
	scoreExact     = 1000
	scoreInterface = 950
	scoreUntyped   = 800
	scoreConvBase  = 500
)

// conversionDistance mirrors overload_utils::get_type_distance.
func conversionDistance(fromType, toType string) (int, bool) {
	if fromType == toType {
		return 0, true
	}
	if isIntTypeName(fromType) && toType == "float" {
		return 1, true
	}
	if (isIntTypeName(fromType) || fromType == "float") && toType == "string" {
		return 2, true
	}
	if fromType == "bool" && toType == "string" {
		return 2, true
	}
	if isIntTypeName(fromType) && isIntTypeName(toType) {
		return 1, true // integer widening between any integer kinds (spec §4.4)
	}
	return 0, false
}

func isIntTypeName(t string) bool {
	switch t {
	case "int", "i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64":
		return true
	}
	return false
}

// OverloadResolver holds, per name, the list of registered overloads
// (spec §4.4).
type OverloadResolver struct {
	overloads map[string][]*Overload
}

func NewOverloadResolver() *OverloadResolver {
	return &OverloadResolver{overloads: map[string][]*Overload{}}
}

// Add registers fn under name, rejecting an exact duplicate signature
// (spec §4.4 "Duplicate signatures... are rejected at registration").
func (r *OverloadResolver) Add(name string, fn *FunctionValue) *Error {
	ov := &Overload{Params: fn.Params, Fn: fn}
	for _, existing := range r.overloads[name] {
		if sameSignature(existing.Params, ov.Params) {
			return newErr(TypeError, Span{}, "function '%s' with signature (%s) is already defined",
				name, formatParams(ov.Params))
		}
	}
	r.overloads[name] = append(r.overloads[name], ov)
	return nil
}

func sameSignature(a, b []Param) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

func formatParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p.Type != "" {
			parts[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
		} else {
			parts[i] = p.Name
		}
	}
	return strings.Join(parts, ", ")
}

func (r *OverloadResolver) Has(name string) bool {
	_, ok := r.overloads[name]
	return ok
}

func (r *OverloadResolver) Get(name string) []*Overload {
	return r.overloads[name]
}

// ResolveResult is the outcome of overload resolution: either a unique
// best match (with per-parameter conversions to apply), or an error.
type ResolveResult struct {
	Overload    *Overload
	Conversions map[int]IntKind // arg index -> target int kind, for accepted integer conversions
}

// Resolve implements spec §4.4 steps 1-4: filter by arity, score every
// survivor, pick the highest, and fail on a tie at the max score.
func (r *OverloadResolver) Resolve(name string, args []Value) (*ResolveResult, *Error) {
	candidates, ok := r.overloads[name]
	if !ok || len(candidates) == 0 {
		return nil, newErr(NameError, Span{}, "function '%s' is not defined", name)
	}

	type scored struct {
		ov    *Overload
		score int
		convs map[int]IntKind
	}
	var matches []scored

	for _, ov := range candidates {
		if len(ov.Params) != len(args) {
			continue
		}
		total := 0
		convs := map[int]IntKind{}
		matched := true
		for i, p := range ov.Params {
			argType := typeNameOf(args[i])
			s, conv, ok := scoreParam(p, args[i], argType)
			if !ok {
				matched = false
				break
			}
			total += s
			if conv != nil {
				convs[i] = *conv
			}
		}
		if matched {
			matches = append(matches, scored{ov, total, convs})
		}
	}

	if len(matches) == 0 {
		sigs := make([]string, len(candidates))
		for i, ov := range candidates {
			sigs[i] = fmt.Sprintf("%s(%s)", name, formatParams(ov.Params))
		}
		return nil, newErr(TypeError, Span{}, "no matching overload for function '%s' with arguments (%s). candidates:\n  %s",
			name, formatArgTypes(args), strings.Join(sigs, "\n  "))
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.score > best.score {
			best = m
		}
	}
	tiedCount := 0
	var tiedSigs []string
	for _, m := range matches {
		if m.score == best.score {
			tiedCount++
			tiedSigs = append(tiedSigs, fmt.Sprintf("%s(%s)", name, formatParams(m.ov.Params)))
		}
	}
	if tiedCount > 1 {
		return nil, newErr(TypeError, Span{}, "ambiguous call to '%s' with arguments (%s). candidates:\n  %s",
			name, formatArgTypes(args), strings.Join(tiedSigs, "\n  "))
	}

	return &ResolveResult{Overload: best.ov, Conversions: best.convs}, nil
}

// isNoMatchOverloadError reports whether err is the "no viable candidate"
// outcome of Resolve, as opposed to an ambiguous-call error. Only the
// former should let method dispatch fall through to a further ancestor.
func isNoMatchOverloadError(err *Error) bool {
	return err != nil && err.Kind == TypeError && strings.HasPrefix(err.Message, "no matching overload")
}

// ResolveMethodChain implements spec §4.5's child-first method/constructor
// dispatch: it tries each class in chain order (nearest first), resolving
// against that class's own overload set for name, and falls through to the
// next ancestor only when the nearer class declares the name but none of
// its overloads match the call (not when resolution there is ambiguous).
// Grounded line-for-line on original_source/src/objects/class_object.cpp's
// resolve_method_call, which recurses into the parent class only if
// found_match is false.
func ResolveMethodChain(chain []*ClassValue, name string, args []Value) (res *ResolveResult, owner *ClassValue, found bool, err *Error) {
	var lastErr *Error
	for _, cls := range chain {
		ovs, ok := cls.Methods[name]
		if !ok {
			continue
		}
		found = true
		r, e := overloadResolverOf(ovs).Resolve(name, args)
		if e == nil {
			return r, cls, true, nil
		}
		if isNoMatchOverloadError(e) {
			lastErr = e
			continue
		}
		return nil, nil, true, e
	}
	return nil, nil, found, lastErr
}

// scoreParam scores one parameter/argument pair and reports, for accepted
// integer conversions, the target kind the resolver-driven adapter should
// convert the argument to (spec §4.4 step 4).
func scoreParam(p Param, arg Value, argType string) (score int, conv *IntKind, ok bool) {
	if p.Type != "" && p.Type == argType {
		return scoreExact, nil, true
	}
	if p.Type != "" {
		if inst, isInst := arg.(*InstanceValue); isInst && inst.Class.ImplementsInterface(p.Type) {
			return scoreInterface, nil, true
		}
	}
	if p.Type == "" {
		return scoreUntyped, nil, true
	}
	if dist, convertible := conversionDistance(argType, p.Type); convertible {
		if isIntTypeName(argType) && isIntTypeName(p.Type) {
			k, _ := ParseIntKindSuffix(normalizeIntSuffix(p.Type))
			conv = &k
		}
		return scoreConvBase - dist, conv, true
	}
	return 0, nil, false
}

func normalizeIntSuffix(typeName string) string {
	if typeName == "int" {
		return ""
	}
	return typeName
}

func typeNameOf(v Value) string {
	if v == nil {
		return "none"
	}
	return v.TypeName()
}

func formatArgTypes(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = typeNameOf(a)
	}
	return strings.Join(parts, ", ")
}
