package interp

import (
	"io"
	"strings"
)

// Evaluator is the tree-walking visitor over the AST (spec §4.5). Unlike
// the teacher's interp.go, which keeps a single mutable "current scope"
// field on its Interpreter, every exec/eval method here takes the active
// *Scope and *evalCtx explicitly as parameters. That is what lets a spawned
// task run on its own goroutine safely: each goroutine's own Go call stack
// carries its own scope chain, so two tasks swapped in and out by the
// scheduler's baton (scheduler.go) never race on shared mutable fields.
type Evaluator struct {
	Global *Scope
	Sched  *Scheduler
	Loader *ModuleLoader
	Module *ModuleValue // nil while evaluating the root script
	Stdout io.Writer
	Stderr io.Writer

	internalNames map[string]bool // top-level declarations marked `internal`, for export filtering
	importedPaths map[string]bool // canonical paths already imported by this module (spec §4.6 double-import guard)
}

// NewEvaluator constructs an Evaluator with a fresh global scope seeded with
// builtins (spec §1 "the concrete built-in library beyond those a test
// suite exercises" is out of scope, so the surface here is intentionally
// small — see builtins.go).
func NewEvaluator(sched *Scheduler, loader *ModuleLoader, stdout, stderr io.Writer) *Evaluator {
	g := NewScope(nil)
	registerBuiltins(g)
	return &Evaluator{Global: g, Sched: sched, Loader: loader, Stdout: stdout, Stderr: stderr,
		internalNames: map[string]bool{}, importedPaths: map[string]bool{}}
}

// evalCtx threads the per-call state that is not itself a Scope binding:
// the class whose method body is currently executing (for `super`
// dispatch) and the enclosing function's declared return type.
type evalCtx struct {
	class         *ClassValue
	returnType    string
	hasReturnType bool
}

// Run executes a program's top-level statements directly in the global
// scope (spec §4.6 "global scope becomes the module's private scope").
func (ev *Evaluator) Run(program *Node) *Error {
	ctrl, err := ev.execStmts(program.Stmts, ev.Global, &evalCtx{})
	if err != nil {
		return err
	}
	if ctrl.kind != ctrlNone {
		return newErr(InternalError, program.Span, "'%s' outside a legal context", ctrlName(ctrl.kind))
	}
	return nil
}

func ctrlName(k controlKind) string {
	switch k {
	case ctrlReturn:
		return "return"
	case ctrlBreak:
		return "break"
	case ctrlContinue:
		return "continue"
	}
	return "control"
}

// RunREPL executes a program's top-level statements like Run, but also
// returns the value of a trailing bare expression statement (or none),
// the way the teacher's REPL echoes the last evaluated value back to the
// user. A trailing non-expression statement (e.g. a declaration) yields
// None, matching a statement having no value.
func (ev *Evaluator) RunREPL(program *Node) (Value, *Error) {
	stmts := program.Stmts
	if len(stmts) == 0 {
		return None, nil
	}
	head, tail := stmts[:len(stmts)-1], stmts[len(stmts)-1]

	ctrl, err := ev.execStmts(head, ev.Global, &evalCtx{})
	if err != nil {
		return nil, err
	}
	if ctrl.kind != ctrlNone {
		return nil, newErr(InternalError, program.Span, "'%s' outside a legal context", ctrlName(ctrl.kind))
	}

	if tail.Kind == NExprStmt {
		v, err := ev.evalExpr(tail.Right, ev.Global, &evalCtx{})
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	ctrl, err = ev.execStmt(tail, ev.Global, &evalCtx{})
	if err != nil {
		return nil, err
	}
	if ctrl.kind != ctrlNone {
		return nil, newErr(InternalError, program.Span, "'%s' outside a legal context", ctrlName(ctrl.kind))
	}
	return None, nil
}

// Exports returns the module export map: every global-scope binding not
// marked `internal` (spec §4.6).
func (ev *Evaluator) Exports() map[string]Value {
	out := map[string]Value{}
	for name, v := range ev.Global.vars {
		if ev.internalNames[name] {
			continue
		}
		out[name] = v
	}
	return out
}

func (ev *Evaluator) markInternal(name string) { ev.internalNames[name] = true }

// ---- Statement execution ----

func (ev *Evaluator) execStmts(stmts []*Node, sc *Scope, c *evalCtx) (control, *Error) {
	for _, s := range stmts {
		ctrl, err := ev.execStmt(s, sc, c)
		if err != nil {
			return control{}, err
		}
		if ctrl.kind != ctrlNone {
			return ctrl, nil
		}
	}
	return control{}, nil
}

func (ev *Evaluator) execStmt(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	switch n.Kind {
	case NBlock:
		return ev.execStmts(n.Stmts, NewScope(sc), c)
	case NIf:
		return ev.execIf(n, sc, c)
	case NWhile:
		return ev.execWhile(n, sc, c)
	case NDoWhile:
		return ev.execDoWhile(n, sc, c, true)
	case NDoUntil:
		return ev.execDoWhile(n, sc, c, false)
	case NForC:
		return ev.execForC(n, sc, c)
	case NForEach:
		return ev.execForEach(n, sc, c)
	case NLoop:
		return ev.execLoop(n, sc, c)
	case NBreak:
		return control{kind: ctrlBreak}, nil
	case NContinue:
		return control{kind: ctrlContinue}, nil
	case NReturn:
		return ev.execReturn(n, sc, c)
	case NSwitch:
		return ev.execSwitch(n, sc, c)
	case NTry:
		return ev.execTry(n, sc, c)
	case NWith:
		return ev.execWith(n, sc, c)
	case NThrow:
		v, err := ev.evalExpr(n.Right, sc, c)
		if err != nil {
			return control{}, err
		}
		return control{}, newErr(ValueError, n.Span, "%s", displayString(v))
	case NExprStmt:
		_, err := ev.evalExpr(n.Right, sc, c)
		return control{}, err
	case NVarDecl:
		return control{}, ev.execVarDecl(n, sc, c)
	case NFuncDecl:
		return control{}, ev.execFuncDecl(n, sc, c)
	case NClassDecl:
		return control{}, ev.execClassDecl(n, sc, c)
	case NInterfaceDecl:
		return control{}, ev.execInterfaceDecl(n, sc)
	case NEnumDecl:
		return control{}, ev.execEnumDecl(n, sc)
	case NImportBare, NImportNamed, NImportPath:
		return control{}, ev.execImport(n, sc)
	case NAssign, NCompoundAssign, NPreIncDec, NPostIncDec, NDestructureAssign:
		_, err := ev.evalExpr(n, sc, c)
		return control{}, err
	}
	return control{}, newErr(InternalError, n.Span, "unhandled statement kind %d", n.Kind)
}

func (ev *Evaluator) execIf(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	cv, err := ev.evalExpr(n.Cond, sc, c)
	if err != nil {
		return control{}, err
	}
	if Truthy(cv) {
		return ev.execStmt(n.Then, sc, c)
	}
	if n.Else != nil {
		return ev.execStmt(n.Else, sc, c)
	}
	return control{}, nil
}

func (ev *Evaluator) execWhile(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	for {
		ev.Sched.Checkpoint()
		cv, err := ev.evalExpr(n.Cond, sc, c)
		if err != nil {
			return control{}, err
		}
		if !Truthy(cv) {
			return control{}, nil
		}
		ctrl, err := ev.execStmt(n.Body, sc, c)
		if err != nil {
			return control{}, err
		}
		switch ctrl.kind {
		case ctrlBreak:
			return control{}, nil
		case ctrlReturn:
			return ctrl, nil
		}
	}
}

func (ev *Evaluator) execDoWhile(n *Node, sc *Scope, c *evalCtx, whileSense bool) (control, *Error) {
	for {
		ev.Sched.Checkpoint()
		ctrl, err := ev.execStmt(n.Body, sc, c)
		if err != nil {
			return control{}, err
		}
		switch ctrl.kind {
		case ctrlBreak:
			return control{}, nil
		case ctrlReturn:
			return ctrl, nil
		}
		cv, err := ev.evalExpr(n.Cond, sc, c)
		if err != nil {
			return control{}, err
		}
		cont := Truthy(cv)
		if !whileSense {
			cont = !cont
		}
		if !cont {
			return control{}, nil
		}
	}
}

func (ev *Evaluator) execForC(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	loopSc := NewScope(sc)
	if n.Init != nil {
		if _, err := ev.execStmt(n.Init, loopSc, c); err != nil {
			return control{}, err
		}
	}
	for {
		ev.Sched.Checkpoint()
		if n.Cond != nil {
			cv, err := ev.evalExpr(n.Cond, loopSc, c)
			if err != nil {
				return control{}, err
			}
			if !Truthy(cv) {
				return control{}, nil
			}
		}
		ctrl, err := ev.execStmt(n.Body, loopSc, c)
		if err != nil {
			return control{}, err
		}
		if ctrl.kind == ctrlBreak {
			return control{}, nil
		}
		if ctrl.kind == ctrlReturn {
			return ctrl, nil
		}
		if n.Post != nil {
			if _, err := ev.execStmt(n.Post, loopSc, c); err != nil {
				return control{}, err
			}
		}
	}
}

func (ev *Evaluator) execForEach(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	iterV, err := ev.evalExpr(n.Iterable, sc, c)
	if err != nil {
		return control{}, err
	}

	runBody := func(bind func(*Scope)) (control, *Error) {
		iterSc := NewScope(sc)
		bind(iterSc)
		ev.Sched.Checkpoint()
		if n.Where != nil {
			wv, err := ev.evalExpr(n.Where, iterSc, c)
			if err != nil {
				return control{}, err
			}
			if !Truthy(wv) {
				return control{}, nil
			}
		}
		return ev.execStmt(n.Body, iterSc, c)
	}

	switch v := iterV.(type) {
	case *ListValue:
		for _, item := range v.Items {
			ctrl, err := runBody(func(s *Scope) {
				if len(n.LoopVars) <= 1 {
					if len(n.LoopVars) == 1 {
						s.Define(n.LoopVars[0], item, n.IsConst, "")
					}
					return
				}
				if lst, ok := item.(*ListValue); ok {
					for i, name := range n.LoopVars {
						if i < len(lst.Items) {
							s.Define(name, lst.Items[i], n.IsConst, "")
						} else {
							s.Define(name, None, n.IsConst, "")
						}
					}
				}
			})
			if err != nil {
				return control{}, err
			}
			if ctrl.kind == ctrlBreak {
				return control{}, nil
			}
			if ctrl.kind == ctrlReturn {
				return ctrl, nil
			}
		}
		return control{}, nil
	case *DictValue:
		for _, k := range v.Keys {
			val := v.Values[k]
			ctrl, err := runBody(func(s *Scope) {
				if len(n.LoopVars) >= 1 {
					s.Define(n.LoopVars[0], NewString(k), n.IsConst, "")
				}
				if len(n.LoopVars) >= 2 {
					s.Define(n.LoopVars[1], val, n.IsConst, "")
				}
			})
			if err != nil {
				return control{}, err
			}
			if ctrl.kind == ctrlBreak {
				return control{}, nil
			}
			if ctrl.kind == ctrlReturn {
				return ctrl, nil
			}
		}
		return control{}, nil
	}
	return control{}, newErr(TypeError, n.Span, "'%s' is not iterable", typeNameOf(iterV))
}

func (ev *Evaluator) execLoop(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	for {
		ev.Sched.Checkpoint()
		ctrl, err := ev.execStmt(n.Body, sc, c)
		if err != nil {
			return control{}, err
		}
		if ctrl.kind == ctrlBreak {
			return control{}, nil
		}
		if ctrl.kind == ctrlReturn {
			return ctrl, nil
		}
	}
}

func (ev *Evaluator) execReturn(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	var v Value = None
	if n.Right != nil {
		var err *Error
		v, err = ev.evalExpr(n.Right, sc, c)
		if err != nil {
			return control{}, err
		}
	}
	if c.hasReturnType {
		coerced, err := coerceToType(v, c.returnType, n.Span)
		if err != nil {
			return control{}, err
		}
		v = coerced
	}
	return control{kind: ctrlReturn, value: v}, nil
}

func (ev *Evaluator) execSwitch(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	disc, err := ev.evalExpr(n.Discriminant, sc, c)
	if err != nil {
		return control{}, err
	}
	swSc := NewScope(sc)

	startIdx := -1
	for i, cc := range n.Cases {
		if cc.IsDefault {
			continue
		}
		for _, v := range cc.Values {
			vv, err := ev.evalExpr(v, swSc, c)
			if err != nil {
				return control{}, err
			}
			if Equal(disc, vv) {
				startIdx = i
				break
			}
		}
		if startIdx != -1 {
			break
		}
	}
	if startIdx == -1 {
		for i, cc := range n.Cases {
			if cc.IsDefault {
				startIdx = i
				break
			}
		}
	}
	if startIdx == -1 {
		return control{}, nil
	}
	for i := startIdx; i < len(n.Cases); i++ {
		ctrl, err := ev.execStmts(n.Cases[i].Body, swSc, c)
		if err != nil {
			return control{}, err
		}
		if ctrl.kind == ctrlBreak {
			return control{}, nil
		}
		if ctrl.kind != ctrlNone {
			return ctrl, nil
		}
	}
	return control{}, nil
}

func (ev *Evaluator) execTry(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	ctrl, berr := ev.execStmt(n.Body, sc, c)
	var rethrow *Error

	if berr != nil {
		if n.CatchBody != nil {
			catchSc := NewScope(sc)
			if n.CatchVar != "" {
				catchSc.Define(n.CatchVar, NewString(berr.Message), false, "")
			}
			cctrl, cerr := ev.execStmts(n.CatchBody.Stmts, catchSc, c)
			ctrl, berr = cctrl, cerr
		} else {
			rethrow = berr
			ctrl, berr = control{}, nil
		}
	}

	if n.FinallyBody != nil {
		fctrl, ferr := ev.execStmt(n.FinallyBody, sc, c)
		if ferr != nil {
			return control{}, ferr
		}
		if fctrl.kind != ctrlNone {
			return fctrl, nil
		}
	}

	if rethrow != nil {
		return control{}, rethrow
	}
	return ctrl, berr
}

func (ev *Evaluator) execWith(n *Node, sc *Scope, c *evalCtx) (control, *Error) {
	ctxVal, err := ev.evalExpr(n.CtxExpr, sc, c)
	if err != nil {
		return control{}, err
	}
	inst, ok := ctxVal.(*InstanceValue)
	if !ok {
		return control{}, newErr(TypeError, n.Span, "'with' requires a context-manager instance, got '%s'", typeNameOf(ctxVal))
	}

	bound, err := ev.callMethod(inst, "__enter__", nil, n.Span, c)
	if err != nil {
		return control{}, err
	}

	withSc := NewScope(sc)
	if n.AsVar != "" {
		withSc.Define(n.AsVar, bound, false, "")
	}

	ctrl, berr := ev.execStmt(n.Body, withSc, c)

	raised := berr != nil
	var msg Value = None
	if berr != nil {
		msg = NewString(berr.Error())
	}
	suppressV, eerr := ev.callMethod(inst, "__exit__", []Value{BoolValue(raised), msg}, n.Span, c)
	if eerr != nil {
		return control{}, eerr
	}
	if berr != nil {
		if Truthy(suppressV) {
			return control{}, nil
		}
		return control{}, berr
	}
	return ctrl, nil
}

// ---- Declarations ----

func (ev *Evaluator) execVarDecl(n *Node, sc *Scope, c *evalCtx) *Error {
	var val Value = None
	if n.HasDefaultValue {
		v, err := ev.evalExpr(n.Right, sc, c)
		if err != nil {
			return err
		}
		val = v
		if n.HasExplicitType {
			coerced, err := coerceToType(val, n.ReturnType, n.Span)
			if err != nil {
				return err
			}
			val = coerced
		}
	}
	declaredType := ""
	if n.HasExplicitType {
		declaredType = n.ReturnType
	}
	sc.Define(n.Name, val, n.IsConst, declaredType)
	return nil
}

func (ev *Evaluator) execFuncDecl(n *Node, sc *Scope, c *evalCtx) *Error {
	fn := &FunctionValue{
		Name: n.Name, Params: n.Params, Body: n.Body, ReturnType: n.ReturnType,
		HasReturnType: n.HasReturnType, Async: n.IsAsync, Internal: n.IsInternal,
		Abstract: n.IsAbstract, Closure: sc,
	}
	if err := sc.DefineFunc(n.Name, fn); err != nil {
		return err
	}
	if n.IsInternal {
		ev.markInternal(n.Name)
	}
	return nil
}

func (ev *Evaluator) execClassDecl(n *Node, sc *Scope, c *evalCtx) *Error {
	cls := &ClassValue{
		Name: n.Name, MemberVars: n.MemberVars, Methods: map[string][]*Overload{},
		Final: n.IsFinal, Abstract: n.IsAbstract,
	}

	for _, ifaceName := range n.Interfaces {
		v, _, ok := sc.Lookup(ifaceName)
		if !ok {
			return newErr(NameError, n.Span, "'%s' is not defined", ifaceName)
		}
		switch t := v.(type) {
		case *ClassValue:
			if cls.Parent != nil {
				return newErr(TypeError, n.Span, "class '%s' may inherit from at most one class", n.Name)
			}
			if t.Final {
				return newErr(TypeError, n.Span, "cannot inherit from final class '%s'", t.Name)
			}
			cls.Parent = t
		case *InterfaceValue:
			cls.Interfaces = append(cls.Interfaces, t)
		default:
			return newErr(TypeError, n.Span, "'%s' is neither a class nor an interface", ifaceName)
		}
	}

	for _, m := range n.Methods {
		fn := &FunctionValue{
			Name: m.Name, Params: m.Params, Body: m.Body.Clone(), ReturnType: m.ReturnType,
			HasReturnType: m.HasReturnType, Async: m.IsAsync, Internal: m.IsInternal,
			Abstract: m.IsAbstract, Closure: sc,
		}
		ov, ok := cls.Methods[m.Name]
		if !ok {
			cls.Methods[m.Name] = []*Overload{{Params: fn.Params, Fn: fn}}
			continue
		}
		for _, existing := range ov {
			if sameSignature(existing.Params, fn.Params) {
				return newErr(TypeError, n.Span, "method '%s' with signature (%s) is already defined on class '%s'",
					m.Name, formatParams(fn.Params), n.Name)
			}
		}
		cls.Methods[m.Name] = append(ov, &Overload{Params: fn.Params, Fn: fn})
	}

	if err := validateAbstractOverrides(cls, n.Span); err != nil {
		return err
	}
	if err := validateInterfaceConformance(cls, n.Span); err != nil {
		return err
	}

	sc.Define(n.Name, cls, true, "")
	if n.IsInternal {
		ev.markInternal(n.Name)
	}
	return nil
}

// validateAbstractOverrides enforces spec §4.5: "When a non-abstract class
// inherits abstract methods, every abstract method must be overridden at
// class-definition time or an error is raised."
func validateAbstractOverrides(cls *ClassValue, span Span) *Error {
	if cls.Abstract || cls.Parent == nil {
		return nil
	}
	for p := cls.Parent; p != nil; p = p.Parent {
		for name, ovs := range p.Methods {
			for _, ov := range ovs {
				if !ov.Fn.Abstract {
					continue
				}
				if _, found := cls.Methods[name]; !found {
					return newErr(TypeError, span, "class '%s' must override abstract method '%s' inherited from '%s'",
						cls.Name, name, p.Name)
				}
			}
		}
	}
	return nil
}

func validateInterfaceConformance(cls *ClassValue, span Span) *Error {
	for _, iface := range cls.Interfaces {
		for _, sig := range iface.Signatures {
			ovs, _ := cls.FindMethod(sig.Name)
			found := false
			for _, ov := range ovs {
				if len(ov.Params) == len(sig.Params) {
					found = true
					break
				}
			}
			if !found {
				return newErr(TypeError, span, "class '%s' does not implement method '%s' required by interface '%s'",
					cls.Name, sig.Name, iface.Name)
			}
		}
	}
	return nil
}

func (ev *Evaluator) execInterfaceDecl(n *Node, sc *Scope) *Error {
	iface := &InterfaceValue{Name: n.Name, Signatures: n.Signatures}
	sc.Define(n.Name, iface, true, "")
	return nil
}

func (ev *Evaluator) execEnumDecl(n *Node, sc *Scope) *Error {
	e, err := buildEnum(n)
	if err != nil {
		return err
	}
	sc.Define(n.Name, e, true, "")
	return nil
}

func (ev *Evaluator) execImport(n *Node, sc *Scope) *Error {
	requester := ""
	if ev.Module != nil {
		requester = ev.Module.Path
	}

	// Double-import guard (spec §4.6): importing the same canonical path
	// twice within one module is an error, resolved before the loader call
	// so it applies even on an as-yet-uncached module.
	isPath := n.Kind == NImportPath
	if canon, rerr := ev.Loader.ResolveSpecifier(n.ModuleSpec, isPath, requester); rerr == nil {
		if ev.importedPaths[canon] {
			return newErr(ImportError, n.Span, "module '%s' is already imported in this module", n.ModuleSpec)
		}
		ev.importedPaths[canon] = true
	}

	switch n.Kind {
	case NImportPath:
		m, err := ev.Loader.Load(n.ModuleSpec, true, requester)
		if err != nil {
			return err
		}
		name := n.Alias
		if name == "" {
			name = moduleStem(n.ModuleSpec)
		}
		sc.Define(name, &ModuleHandleValue{Module: m}, true, "")
		return nil
	case NImportBare:
		m, err := ev.Loader.Load(n.ModuleSpec, false, requester)
		if err != nil {
			return err
		}
		name := n.Alias
		if name == "" {
			name = lastSegment(n.ModuleSpec)
		}
		sc.Define(name, &ModuleHandleValue{Module: m}, true, "")
		return nil
	case NImportNamed:
		m, err := ev.Loader.Load(n.ModuleSpec, false, requester)
		if err != nil {
			return err
		}
		whitelist := map[string]bool{}
		for _, symbol := range n.Specifiers {
			v, ok := m.Exports[symbol]
			if !ok {
				return newErr(ImportError, n.Span, "module '%s' has no exported symbol '%s'", n.ModuleSpec, symbol)
			}
			sc.Define(symbol, v, true, "")
			whitelist[symbol] = true
		}
		if n.Alias != "" {
			sc.Define(n.Alias, &ModuleHandleValue{Module: m, Whitelist: whitelist}, true, "")
		}
		return nil
	}
	return newErr(InternalError, n.Span, "unhandled import kind")
}

func moduleStem(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".zephyr")
	return base
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ---- Expression evaluation ----

func (ev *Evaluator) evalExpr(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	switch n.Kind {
	case NIntLit:
		return NewIntValue(n.IntVal, n.IntKind), nil
	case NFloatLit:
		return FloatValue(n.FloatVal), nil
	case NStringLit:
		return NewString(n.StrVal), nil
	case NFStringLit:
		return ev.evalFString(n, sc, c)
	case NBoolLit:
		return BoolValue(n.BoolVal), nil
	case NNoneLit:
		return None, nil
	case NListLit:
		items := make([]Value, len(n.Elements))
		for i, e := range n.Elements {
			v, err := ev.evalExpr(e, sc, c)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return NewList(items), nil
	case NDictLit:
		d := NewDict()
		for _, entry := range n.Entries {
			kv, err := ev.evalExpr(entry.Key, sc, c)
			if err != nil {
				return nil, err
			}
			vv, err := ev.evalExpr(entry.Value, sc, c)
			if err != nil {
				return nil, err
			}
			key, err := dictKeyString(kv, n.Span)
			if err != nil {
				return nil, err
			}
			d.Set(key, vv)
		}
		return d, nil
	case NName:
		return ev.evalName(n, sc, c)
	case NThis:
		v, _, ok := sc.Lookup("this")
		if !ok {
			return nil, newErr(NameError, n.Span, "'this' is not defined outside a method")
		}
		return v, nil
	case NSuper:
		return nil, newErr(InternalError, n.Span, "'super' may only be used in a method call")
	case NBinary:
		return ev.evalBinary(n, sc, c)
	case NUnary:
		return ev.evalUnary(n, sc, c)
	case NTernary:
		cv, err := ev.evalExpr(n.Cond, sc, c)
		if err != nil {
			return nil, err
		}
		if Truthy(cv) {
			return ev.evalExpr(n.Then, sc, c)
		}
		return ev.evalExpr(n.Else, sc, c)
	case NIndex:
		return ev.evalIndex(n, sc, c)
	case NOptIndex:
		ov, err := ev.evalExpr(n.Obj, sc, c)
		if err != nil {
			return nil, err
		}
		if _, isNone := ov.(NoneValue); isNone {
			return None, nil
		}
		return ev.indexInto(ov, n, sc, c)
	case NMember:
		return ev.evalMember(n, sc, c)
	case NOptMember:
		ov, err := ev.evalExpr(n.Obj, sc, c)
		if err != nil {
			return nil, err
		}
		if _, isNone := ov.(NoneValue); isNone {
			return None, nil
		}
		return ev.memberOf(ov, n.Name, n.Span)
	case NSlice:
		return ev.evalSlice(n, sc, c)
	case NCall:
		return ev.evalCall(n, sc, c)
	case NMethodCall:
		return ev.evalMethodCallNode(n, sc, c, false)
	case NOptMethodCall:
		ov, err := ev.evalExpr(n.Obj, sc, c)
		if err != nil {
			return nil, err
		}
		if _, isNone := ov.(NoneValue); isNone {
			return None, nil
		}
		args, err := ev.evalArgs(n.Args, sc, c)
		if err != nil {
			return nil, err
		}
		return ev.dispatchMethodCall(ov, n.Name, args, n, sc, c)
	case NLambda:
		return ev.evalLambda(n, sc), nil
	case NAwait:
		return ev.evalAwait(n, sc, c)
	case NSpawn:
		return ev.evalSpawn(n, sc, c), nil
	case NAssign:
		return ev.evalAssign(n, sc, c)
	case NCompoundAssign:
		return ev.evalCompoundAssign(n, sc, c)
	case NPreIncDec:
		return ev.evalIncDec(n, sc, c, true)
	case NPostIncDec:
		return ev.evalIncDec(n, sc, c, false)
	case NDestructureAssign:
		return ev.evalDestructureAssign(n, sc, c)
	}
	return nil, newErr(InternalError, n.Span, "unhandled expression kind %d", n.Kind)
}

func (ev *Evaluator) evalArgs(nodes []*Node, sc *Scope, c *evalCtx) ([]Value, *Error) {
	args := make([]Value, len(nodes))
	for i, a := range nodes {
		v, err := ev.evalExpr(a, sc, c)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (ev *Evaluator) evalFString(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	var sb strings.Builder
	for _, part := range n.FParts {
		if !part.IsExpr {
			sb.WriteString(part.Literal)
			continue
		}
		lex, lerr := NewLexer(part.ExprSrc)
		if lerr != nil {
			return nil, lerr
		}
		p := NewParser(lex.tokens)
		exprNode, perr := p.parseExpr()
		if perr != nil {
			return nil, perr
		}
		v, err := ev.evalExpr(exprNode, sc, c)
		if err != nil {
			return nil, err
		}
		sb.WriteString(displayString(v))
	}
	return NewString(sb.String()), nil
}

func (ev *Evaluator) evalName(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	if v, _, ok := sc.Lookup(n.Name); ok {
		return v, nil
	}
	return nil, newErr(NameError, n.Span, "'%s' is not defined", n.Name)
}

func dictKeyString(v Value, span Span) (string, *Error) {
	if s, ok := v.(*StringValue); ok {
		return s.S, nil
	}
	return "", newErr(TypeError, span, "dictionary keys must be strings, got '%s'", typeNameOf(v))
}

// ---- Member / index / slice ----

func (ev *Evaluator) evalMember(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	ov, err := ev.evalExpr(n.Obj, sc, c)
	if err != nil {
		return nil, err
	}
	return ev.memberOf(ov, n.Name, n.Span)
}

func (ev *Evaluator) memberOf(ov Value, name string, span Span) (Value, *Error) {
	switch v := ov.(type) {
	case *InstanceValue:
		if mv, ok := v.Members[name]; ok {
			return mv, nil
		}
		if ovs, _ := v.Class.FindMethod(name); ovs != nil {
			return &OverloadSetValue{Name: name, Resolver: overloadResolverOf(ovs)}, nil
		}
		return nil, newErr(AttributeError, span, "'%s' has no attribute '%s'", v.Class.Name, name)
	case *ModuleHandleValue:
		val, ok := v.Get(name)
		if !ok {
			return nil, newErr(AttributeError, span, "module '%s' has no exported symbol '%s'", v.Module.Name, name)
		}
		return val, nil
	case *EnumValue:
		m, ok := v.member(name)
		if !ok {
			return nil, newErr(AttributeError, span, "enum '%s' has no member '%s'", v.Name, name)
		}
		return m, nil
	case *StringValue:
		return nil, newErr(AttributeError, span, "'string' has no attribute '%s'", name)
	}
	return nil, newErr(AttributeError, span, "'%s' has no attribute '%s'", typeNameOf(ov), name)
}

func overloadResolverOf(ovs []*Overload) *OverloadResolver {
	r := NewOverloadResolver()
	for _, ov := range ovs {
		r.Add(ov.Fn.Name, ov.Fn)
	}
	return r
}

func (ev *Evaluator) evalIndex(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	ov, err := ev.evalExpr(n.Obj, sc, c)
	if err != nil {
		return nil, err
	}
	if _, isNone := ov.(NoneValue); isNone {
		switch n.Obj.Kind {
		case NOptMember, NOptIndex, NOptMethodCall:
			return None, nil // an optional link that yielded none ends the chain
		}
	}
	return ev.indexInto(ov, n, sc, c)
}

func (ev *Evaluator) indexInto(ov Value, n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	iv, err := ev.evalExpr(n.Index, sc, c)
	if err != nil {
		return nil, err
	}
	switch container := ov.(type) {
	case *ListValue:
		idx, ierr := requireInt(iv, n.Span)
		if ierr != nil {
			return nil, ierr
		}
		i := normalizeIndex(idx, len(container.Items))
		if i < 0 || i >= len(container.Items) {
			return nil, newErr(IndexError, n.Span, "list index %d out of range (len %d)", idx, len(container.Items))
		}
		return container.Items[i], nil
	case *DictValue:
		key, kerr := dictKeyString(iv, n.Span)
		if kerr != nil {
			return nil, kerr
		}
		val, ok := container.Values[key]
		if !ok {
			return nil, newErr(KeyError, n.Span, "key %q not found", key)
		}
		return val, nil
	case *StringValue:
		idx, ierr := requireInt(iv, n.Span)
		if ierr != nil {
			return nil, ierr
		}
		i := normalizeIndex(idx, len(container.S))
		if i < 0 || i >= len(container.S) {
			return nil, newErr(IndexError, n.Span, "string index %d out of range (len %d)", idx, len(container.S))
		}
		return NewString(string(container.S[i])), nil
	}
	return nil, newErr(TypeError, n.Span, "'%s' is not indexable", typeNameOf(ov))
}

func normalizeIndex(idx int64, length int) int {
	if idx < 0 {
		idx += int64(length)
	}
	return int(idx)
}

func (ev *Evaluator) evalSlice(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	ov, err := ev.evalExpr(n.Obj, sc, c)
	if err != nil {
		return nil, err
	}
	length, kind := 0, ""
	switch v := ov.(type) {
	case *ListValue:
		length, kind = len(v.Items), "list"
	case *StringValue:
		length, kind = len(v.S), "string"
	default:
		return nil, newErr(TypeError, n.Span, "'%s' is not sliceable", typeNameOf(ov))
	}

	step := int64(1)
	if n.SliceStep != nil {
		sv, err := ev.evalExpr(n.SliceStep, sc, c)
		if err != nil {
			return nil, err
		}
		step, err = requireInt(sv, n.Span)
		if err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, newErr(ValueError, n.Span, "slice step must not be zero")
		}
	}

	start, end := int64(0), int64(length)
	if step < 0 {
		start, end = int64(length-1), -1
	}
	if n.SliceStart != nil {
		sv, err := ev.evalExpr(n.SliceStart, sc, c)
		if err != nil {
			return nil, err
		}
		start, err = requireInt(sv, n.Span)
		if err != nil {
			return nil, err
		}
		if start < 0 {
			start += int64(length)
		}
	}
	if n.SliceEnd != nil {
		ev2, err := ev.evalExpr(n.SliceEnd, sc, c)
		if err != nil {
			return nil, err
		}
		end, err = requireInt(ev2, n.Span)
		if err != nil {
			return nil, err
		}
		if end < 0 {
			end += int64(length)
		}
	}

	if kind == "list" {
		lst := ov.(*ListValue)
		var out []Value
		if step > 0 {
			for i := start; i < end && i < int64(length); i += step {
				if i >= 0 {
					out = append(out, lst.Items[i])
				}
			}
		} else {
			for i := start; i > end && i >= 0; i += step {
				if i < int64(length) {
					out = append(out, lst.Items[i])
				}
			}
		}
		return NewList(out), nil
	}

	str := ov.(*StringValue)
	var sb strings.Builder
	if step > 0 {
		for i := start; i < end && i < int64(length); i += step {
			if i >= 0 {
				sb.WriteByte(str.S[i])
			}
		}
	} else {
		for i := start; i > end && i >= 0; i += step {
			if i < int64(length) {
				sb.WriteByte(str.S[i])
			}
		}
	}
	return NewString(sb.String()), nil
}

// ---- Lambda / calls ----

func (ev *Evaluator) evalLambda(n *Node, sc *Scope) *LambdaValue {
	// Lambda bodies are cloned at instantiation (spec §3.1 invariant) so two
	// lambdas produced from the same syntax (e.g. a function returning `()
	// -> x` on each call) never alias each other's body subtree.
	return &LambdaValue{Params: n.Params, Body: n.Body.Clone(), IsExprBody: n.IsExprBody, Async: n.IsAsync, Captured: sc}
}

func (ev *Evaluator) evalCall(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	if n.Callee.Kind == NSuper {
		return nil, newErr(SyntaxError, n.Span, "'super' must be followed by '.methodName(...)'")
	}

	// `super.m(args)` is parsed as NMethodCall{Obj: NSuper}, so a bare NCall
	// callee is always a name, lambda expression, or member/index result.
	args, err := ev.evalArgs(n.Args, sc, c)
	if err != nil {
		return nil, err
	}

	if n.Callee.Kind == NName {
		name := n.Callee.Name
		if r, ok := ev.lookupOverloadSet(sc, name); ok {
			ev.Sched.Checkpoint()
			res, rerr := r.Resolve(name, args)
			if rerr != nil {
				return nil, rerr
			}
			return ev.invokeFunction(res, args, n.Span)
		}
		if v, _, ok := sc.Lookup(name); ok {
			return ev.callValue(v, args, n.Span, c)
		}
		if cls, ok := classValueByName(sc, name); ok {
			return ev.instantiate(cls, args, n.Span)
		}
		return nil, newErr(NameError, n.Span, "'%s' is not defined", name)
	}

	calleeV, err := ev.evalExpr(n.Callee, sc, c)
	if err != nil {
		return nil, err
	}
	return ev.callValue(calleeV, args, n.Span, c)
}

func classValueByName(sc *Scope, name string) (*ClassValue, bool) {
	v, _, ok := sc.Lookup(name)
	if !ok {
		return nil, false
	}
	cls, ok := v.(*ClassValue)
	return cls, ok
}

func (ev *Evaluator) lookupOverloadSet(sc *Scope, name string) (*OverloadResolver, bool) {
	v, _, ok := sc.Lookup(name)
	if !ok {
		return nil, false
	}
	set, ok := v.(*OverloadSetValue)
	if !ok {
		return nil, false
	}
	return set.Resolver, true
}

// callValue dispatches a call on an arbitrary callable value: builtins,
// lambdas, classes (constructor sugar for `ClassName(args)` reached via a
// plain name lookup), and overload sets reached indirectly (e.g. through a
// module handle member).
func (ev *Evaluator) callValue(v Value, args []Value, span Span, c *evalCtx) (Value, *Error) {
	switch fn := v.(type) {
	case *BuiltinValue:
		ev.Sched.Checkpoint()
		return fn.Fn(ev, args, span)
	case *LambdaValue:
		return ev.callLambda(fn, args, span)
	case *OverloadSetValue:
		ev.Sched.Checkpoint()
		res, err := fn.Resolver.Resolve(fn.Name, args)
		if err != nil {
			return nil, err
		}
		return ev.invokeFunction(res, args, span)
	case *ClassValue:
		return ev.instantiate(fn, args, span)
	}
	return nil, newErr(TypeError, span, "'%s' is not callable", typeNameOf(v))
}

// invokeFunction runs a resolved plain function/method overload in a fresh
// scope rooted at its defining (closure) scope (spec §4.5 "a function call
// pushes a fresh scope").
func (ev *Evaluator) invokeFunction(res *ResolveResult, args []Value, span Span) (Value, *Error) {
	fn := res.Overload.Fn
	callSc := NewScope(fn.Closure)
	if err := bindParams(callSc, fn.Params, args, res.Conversions, span); err != nil {
		return nil, err
	}
	cc := &evalCtx{returnType: fn.ReturnType, hasReturnType: fn.HasReturnType}
	ctrl, err := ev.execStmt(fn.Body, callSc, cc)
	if err != nil {
		return nil, err
	}
	if ctrl.kind == ctrlReturn {
		return ctrl.value, nil
	}
	if ctrl.kind != ctrlNone {
		return nil, newErr(InternalError, span, "'%s' outside a legal context in function '%s'", ctrlName(ctrl.kind), fn.Name)
	}
	return None, nil
}

func (ev *Evaluator) callLambda(fn *LambdaValue, args []Value, span Span) (Value, *Error) {
	if len(args) != len(fn.Params) {
		return nil, newErr(TypeError, span, "lambda expects %d argument(s), got %d", len(fn.Params), len(args))
	}
	ev.Sched.Checkpoint()
	callSc := NewScope(fn.Captured)
	for i, p := range fn.Params {
		v := args[i]
		if p.Type != "" {
			coerced, err := coerceToType(v, p.Type, span)
			if err != nil {
				return nil, err
			}
			v = coerced
		}
		callSc.Define(p.Name, v, p.Const, p.Type)
	}
	cc := &evalCtx{}
	if fn.IsExprBody {
		return ev.evalExpr(fn.Body, callSc, cc)
	}
	ctrl, err := ev.execStmt(fn.Body, callSc, cc)
	if err != nil {
		return nil, err
	}
	if ctrl.kind == ctrlReturn {
		return ctrl.value, nil
	}
	return None, nil
}

func bindParams(sc *Scope, params []Param, args []Value, convs map[int]IntKind, span Span) *Error {
	for i, p := range params {
		v := args[i]
		if kind, ok := convs[i]; ok {
			iv := v.(*IntValue)
			converted, err := ConvertTo(iv.Int, kind, span)
			if err != nil {
				return err
			}
			v = &IntValue{converted}
		}
		sc.Define(p.Name, v, p.Const, p.Type)
	}
	return nil
}

// ---- Class instantiation, method dispatch, super ----

func (ev *Evaluator) instantiate(cls *ClassValue, args []Value, span Span) (Value, *Error) {
	if cls.Abstract {
		return nil, newErr(TypeError, span, "cannot instantiate abstract class '%s'", cls.Name)
	}
	inst := NewInstance(cls)
	res, ownerCls, found, err := ResolveMethodChain(cls.Chain(), "init", args)
	if !found {
		if len(args) != 0 {
			return nil, newErr(TypeError, span, "class '%s' has no constructor accepting %d argument(s)", cls.Name, len(args))
		}
		return inst, nil
	}
	if err != nil {
		return nil, err
	}
	if _, ierr := ev.runMethod(inst, ownerCls, res, args, span); ierr != nil {
		return nil, ierr
	}
	return inst, nil
}

// runMethod executes a resolved method overload with `this` bound to inst
// and the method-owning class recorded in evalCtx for `super` dispatch
// (spec §4.5 "super.m(args) resolves starting from the parent class of the
// class whose method is currently executing").
func (ev *Evaluator) runMethod(inst *InstanceValue, owner *ClassValue, res *ResolveResult, args []Value, span Span) (Value, *Error) {
	fn := res.Overload.Fn
	if fn.Abstract {
		return nil, newErr(TypeError, span, "method '%s' is abstract and has no body", fn.Name)
	}
	ev.Sched.Checkpoint()
	callSc := NewScope(fn.Closure)
	callSc.Define("this", inst, false, "")
	if err := bindParams(callSc, fn.Params, args, res.Conversions, span); err != nil {
		return nil, err
	}
	cc := &evalCtx{class: owner, returnType: fn.ReturnType, hasReturnType: fn.HasReturnType}
	ctrl, err := ev.execStmt(fn.Body, callSc, cc)
	if err != nil {
		return nil, err
	}
	if ctrl.kind == ctrlReturn {
		return ctrl.value, nil
	}
	if ctrl.kind != ctrlNone {
		return nil, newErr(InternalError, span, "'%s' outside a legal context in method '%s'", ctrlName(ctrl.kind), fn.Name)
	}
	return None, nil
}

// callMethod is the evaluator-internal helper (with/init dispatch) that
// resolves and runs a single named method with explicit args, independent
// of any AST call node. Resolution climbs the class chain child-first,
// falling through to a parent's overloads when the nearer class has no
// viable match (spec §4.5, ResolveMethodChain).
func (ev *Evaluator) callMethod(inst *InstanceValue, name string, args []Value, span Span, c *evalCtx) (Value, *Error) {
	res, owner, found, err := ResolveMethodChain(inst.Class.Chain(), name, args)
	if !found {
		return nil, newErr(AttributeError, span, "'%s' has no method '%s'", inst.Class.Name, name)
	}
	if err != nil {
		return nil, err
	}
	return ev.runMethod(inst, owner, res, args, span)
}

func (ev *Evaluator) evalMethodCallNode(n *Node, sc *Scope, c *evalCtx, optional bool) (Value, *Error) {
	if n.Obj.Kind == NSuper {
		return ev.evalSuperCall(n, sc, c)
	}
	ov, err := ev.evalExpr(n.Obj, sc, c)
	if err != nil {
		return nil, err
	}
	args, err := ev.evalArgs(n.Args, sc, c)
	if err != nil {
		return nil, err
	}
	return ev.dispatchMethodCall(ov, n.Name, args, n, sc, c)
}

func (ev *Evaluator) dispatchMethodCall(ov Value, name string, args []Value, n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	switch v := ov.(type) {
	case *InstanceValue:
		return ev.callMethod(v, name, args, n.Span, c)
	case *ModuleHandleValue:
		member, ok := v.Get(name)
		if !ok {
			return nil, newErr(AttributeError, n.Span, "module '%s' has no exported symbol '%s'", v.Module.Name, name)
		}
		return ev.callValue(member, args, n.Span, c)
	case *StringValue:
		return ev.stringMethod(v, name, args, n.Span)
	case *ListValue:
		return ev.listMethod(v, name, args, n.Span)
	case *DictValue:
		return ev.dictMethod(v, name, args, n.Span)
	}
	return nil, newErr(AttributeError, n.Span, "'%s' has no method '%s'", typeNameOf(ov), name)
}

// evalSuperCall implements `super.m(args)` (spec §4.5/§8). It requires a
// method currently executing (evalCtx.class set) and resolves starting
// from that class's parent, climbing further ancestors child-first via
// ResolveMethodChain when the nearer ancestor has no viable overload of m
// (spec §4.5 "resolves starting from the parent class... "). When P has no
// parent of its own, `super.m()` from P's method body still raises
// TypeError, matching spec §8's "no grandparent" scenario.
func (ev *Evaluator) evalSuperCall(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	if c.class == nil || c.class.Parent == nil {
		return nil, newErr(TypeError, n.Span, "'super' has no parent class in this context")
	}
	thisV, _, ok := sc.Lookup("this")
	if !ok {
		return nil, newErr(NameError, n.Span, "'super' used outside an instance method")
	}
	inst, ok := thisV.(*InstanceValue)
	if !ok {
		return nil, newErr(InternalError, n.Span, "'this' is not an instance")
	}
	args, err := ev.evalArgs(n.Args, sc, c)
	if err != nil {
		return nil, err
	}
	parent := c.class.Parent
	res, owner, found, rerr := ResolveMethodChain(parent.Chain(), n.Name, args)
	if !found {
		return nil, newErr(AttributeError, n.Span, "'%s' has no method '%s'", parent.Name, n.Name)
	}
	if rerr != nil {
		return nil, rerr
	}
	return ev.runMethod(inst, owner, res, args, n.Span)
}

// ---- Assignment ----

func (ev *Evaluator) evalAssign(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	v, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}
	if err := ev.assignTo(n.Target, v, sc, c); err != nil {
		return nil, err
	}
	return v, nil
}

func (ev *Evaluator) assignTo(target *Node, v Value, sc *Scope, c *evalCtx) *Error {
	switch target.Kind {
	case NName:
		if sc.IsConst(target.Name) {
			return newErr(TypeError, target.Span, "cannot assign to const '%s'", target.Name)
		}
		if declared, ok := sc.DeclaredType(target.Name); ok {
			coerced, err := coerceToType(v, declared, target.Span)
			if err != nil {
				return err
			}
			v = coerced
		}
		sc.Assign(target.Name, v)
		return nil
	case NMember:
		ov, err := ev.evalExpr(target.Obj, sc, c)
		if err != nil {
			return err
		}
		inst, ok := ov.(*InstanceValue)
		if !ok {
			return newErr(TypeError, target.Span, "cannot assign to a member of '%s'", typeNameOf(ov))
		}
		if inst.Consts[target.Name] {
			return newErr(TypeError, target.Span, "cannot assign to const member '%s'", target.Name)
		}
		inst.Members[target.Name] = v
		return nil
	case NIndex:
		ov, err := ev.evalExpr(target.Obj, sc, c)
		if err != nil {
			return err
		}
		iv, err := ev.evalExpr(target.Index, sc, c)
		if err != nil {
			return err
		}
		switch container := ov.(type) {
		case *ListValue:
			idx, ierr := requireInt(iv, target.Span)
			if ierr != nil {
				return ierr
			}
			i := normalizeIndex(idx, len(container.Items))
			if i < 0 || i >= len(container.Items) {
				return newErr(IndexError, target.Span, "list index %d out of range (len %d)", idx, len(container.Items))
			}
			container.Items[i] = v
			return nil
		case *DictValue:
			key, kerr := dictKeyString(iv, target.Span)
			if kerr != nil {
				return kerr
			}
			container.Set(key, v)
			return nil
		}
		return newErr(TypeError, target.Span, "'%s' does not support index assignment", typeNameOf(ov))
	}
	return newErr(InternalError, target.Span, "invalid assignment target")
}

func (ev *Evaluator) evalCompoundAssign(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	cur, err := ev.evalExpr(n.Target, sc, c)
	if err != nil {
		return nil, err
	}
	rhs, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}
	result, err := applyBinaryOp(n.Op, cur, rhs, n.Span)
	if err != nil {
		return nil, err
	}
	if err := ev.assignTo(n.Target, result, sc, c); err != nil {
		return nil, err
	}
	return result, nil
}

func (ev *Evaluator) evalIncDec(n *Node, sc *Scope, c *evalCtx, pre bool) (Value, *Error) {
	cur, err := ev.evalExpr(n.Target, sc, c)
	if err != nil {
		return nil, err
	}
	op := "+"
	if n.Op == "--" {
		op = "-"
	}
	one := Value(NewIntValue(1, KDefaultInt))
	updated, err := applyBinaryOp(op, cur, one, n.Span)
	if err != nil {
		return nil, err
	}
	if err := ev.assignTo(n.Target, updated, sc, c); err != nil {
		return nil, err
	}
	if pre {
		return updated, nil
	}
	return cur, nil
}

func (ev *Evaluator) evalDestructureAssign(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	v, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}
	lst, ok := v.(*ListValue)
	if !ok {
		return nil, newErr(TypeError, n.Span, "cannot destructure a '%s'", typeNameOf(v))
	}
	if len(lst.Items) != len(n.Names) {
		return nil, newErr(ValueError, n.Span, "destructuring assignment expects %d values, got %d", len(n.Names), len(lst.Items))
	}
	for i, name := range n.Names {
		if sc.IsConst(name) {
			return nil, newErr(TypeError, n.Span, "cannot assign to const '%s'", name)
		}
		sc.Assign(name, lst.Items[i])
	}
	return v, nil
}

// ---- Async ----

func (ev *Evaluator) evalAwait(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	v, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}
	p, ok := v.(*PromiseValue)
	if !ok {
		return nil, newErr(TypeError, n.Span, "'await' requires a promise, got '%s'", typeNameOf(v))
	}
	return ev.Sched.Await(p, n.Span)
}

func (ev *Evaluator) evalSpawn(n *Node, sc *Scope, c *evalCtx) Value {
	body := n.Right
	cc := &evalCtx{class: c.class, returnType: c.returnType, hasReturnType: c.hasReturnType}
	return ev.Sched.Spawn(func() (Value, *Error) {
		return ev.evalExpr(body, sc, cc)
	})
}

// ---- coercion ----

// coerceToType applies the same implicit-conversion rules the overload
// resolver uses (spec §4.4/§4.5) to a single value against a declared type
// string, used by typed declarations, typed assignment, and typed returns.
func coerceToType(v Value, typeName string, span Span) (Value, *Error) {
	if typeName == "" {
		return v, nil
	}
	if typeNameOf(v) == typeName {
		return v, nil
	}
	if isIntTypeName(typeName) {
		iv, ok := v.(*IntValue)
		if !ok {
			return nil, newErr(TypeError, span, "cannot assign '%s' to declared type '%s'", typeNameOf(v), typeName)
		}
		kind, _ := ParseIntKindSuffix(normalizeIntSuffix(typeName))
		converted, err := ConvertTo(iv.Int, kind, span)
		if err != nil {
			return nil, err
		}
		return &IntValue{converted}, nil
	}
	if typeName == "float" {
		if iv, ok := v.(*IntValue); ok {
			return FloatValue(float64(iv.Val)), nil
		}
	}
	if typeName == "string" {
		switch v.(type) {
		case *IntValue, FloatValue, BoolValue:
			return NewString(displayString(v)), nil
		}
	}
	if inst, ok := v.(*InstanceValue); ok && inst.Class.ImplementsInterface(typeName) {
		return v, nil
	}
	return nil, newErr(TypeError, span, "cannot assign '%s' to declared type '%s'", typeNameOf(v), typeName)
}

// ---- Binary / unary operators ----

func (ev *Evaluator) evalBinary(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	switch n.Op {
	case "and":
		l, err := ev.evalExpr(n.Left, sc, c)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return ev.evalExpr(n.Right, sc, c)
	case "or":
		l, err := ev.evalExpr(n.Left, sc, c)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return ev.evalExpr(n.Right, sc, c)
	case "??":
		l, err := ev.evalExpr(n.Left, sc, c)
		if err != nil {
			return nil, err
		}
		if _, isNone := l.(NoneValue); !isNone {
			return l, nil
		}
		return ev.evalExpr(n.Right, sc, c)
	case "|>":
		l, err := ev.evalExpr(n.Left, sc, c)
		if err != nil {
			return nil, err
		}
		return ev.callValue(mustEval(ev, n.Right, sc, c), []Value{l}, n.Span, c)
	}

	l, err := ev.evalExpr(n.Left, sc, c)
	if err != nil {
		return nil, err
	}
	r, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return BoolValue(Equal(l, r)), nil
	case "!=":
		return BoolValue(!Equal(l, r)), nil
	case "is":
		return BoolValue(Identity(l, r)), nil
	case "in":
		return membershipCheck(l, r, n.Span)
	}
	return applyBinaryOp(n.Op, l, r, n.Span)
}

// mustEval evaluates the right side of a pipe expression, which must name
// a callable (a function, lambda, or class).
func mustEval(ev *Evaluator, n *Node, sc *Scope, c *evalCtx) Value {
	v, err := ev.evalExpr(n, sc, c)
	if err != nil {
		return nil
	}
	return v
}

func membershipCheck(item, container Value, span Span) (Value, *Error) {
	switch c := container.(type) {
	case *ListValue:
		for _, it := range c.Items {
			if Equal(item, it) {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	case *DictValue:
		key, err := dictKeyString(item, span)
		if err != nil {
			return nil, err
		}
		_, ok := c.Values[key]
		return BoolValue(ok), nil
	case *StringValue:
		s, ok := item.(*StringValue)
		if !ok {
			return nil, newErr(TypeError, span, "'in' on a string requires a string operand")
		}
		return BoolValue(strings.Contains(c.S, s.S)), nil
	}
	return nil, newErr(TypeError, span, "'in' is not supported on '%s'", typeNameOf(container))
}

// applyBinaryOp implements arithmetic/bitwise/comparison/shift dispatch
// through each value's type descriptor (spec §4.3). Integers go through
// the unified promote/overflow-check/mask core; everything else is a
// direct per-pair switch, matching the teacher's single dispatch function
// per operator rather than per-type method tables.
func applyBinaryOp(op string, l, r Value, span Span) (Value, *Error) {
	li, lIsInt := l.(*IntValue)
	ri, rIsInt := r.(*IntValue)
	if lIsInt && rIsInt {
		return intBinaryOp(op, li, ri, span)
	}

	lf, lIsFloat := asFloat(l)
	rf, rIsFloat := asFloat(r)
	if (lIsInt || lIsFloat) && (rIsInt || rIsFloat) {
		switch op {
		case "+":
			return FloatValue(lf + rf), nil
		case "-":
			return FloatValue(lf - rf), nil
		case "*":
			return FloatValue(lf * rf), nil
		case "/":
			if rf == 0 {
				return nil, newErr(ZeroDivisionError, span, "division by zero")
			}
			return FloatValue(lf / rf), nil
		case "%":
			if rf == 0 {
				return nil, newErr(ZeroDivisionError, span, "division by zero")
			}
			return FloatValue(float64(int64(lf) % int64(rf))), nil
		case "**":
			return FloatValue(floatPow(lf, rf)), nil
		case "<":
			return BoolValue(lf < rf), nil
		case "<=":
			return BoolValue(lf <= rf), nil
		case ">":
			return BoolValue(lf > rf), nil
		case ">=":
			return BoolValue(lf >= rf), nil
		}
	}

	if ls, ok := l.(*StringValue); ok {
		if op == "+" {
			rs, ok := r.(*StringValue)
			if !ok {
				return nil, newErr(TypeError, span, "cannot concatenate 'string' and '%s'", typeNameOf(r))
			}
			return NewString(ls.S + rs.S), nil
		}
		if rs, ok := r.(*StringValue); ok {
			switch op {
			case "<":
				return BoolValue(ls.S < rs.S), nil
			case "<=":
				return BoolValue(ls.S <= rs.S), nil
			case ">":
				return BoolValue(ls.S > rs.S), nil
			case ">=":
				return BoolValue(ls.S >= rs.S), nil
			}
		}
	}

	if lst, ok := l.(*ListValue); ok && op == "+" {
		rst, ok := r.(*ListValue)
		if !ok {
			return nil, newErr(TypeError, span, "cannot concatenate 'list' and '%s'", typeNameOf(r))
		}
		combined := make([]Value, 0, len(lst.Items)+len(rst.Items))
		combined = append(combined, lst.Items...)
		combined = append(combined, rst.Items...)
		return NewList(combined), nil
	}

	return nil, newErr(TypeError, span, "unsupported operand types for '%s': '%s' and '%s'", op, typeNameOf(l), typeNameOf(r))
}

func asFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case FloatValue:
		return float64(t), true
	case *IntValue:
		return float64(t.Val), true
	}
	return 0, false
}

func floatPow(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	n := exp
	if neg {
		n = -n
	}
	for i := 0; i < int(n); i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

// intBinaryOp implements the unified integer operation table (spec §4.3,
// §9 design note "one 64-bit core operation table plus a per-kind
// range-check and mask").
func intBinaryOp(op string, l, r *IntValue, span Span) (Value, *Error) {
	switch op {
	case "<":
		return BoolValue(l.Val < r.Val), nil
	case "<=":
		return BoolValue(l.Val <= r.Val), nil
	case ">":
		return BoolValue(l.Val > r.Val), nil
	case ">=":
		return BoolValue(l.Val >= r.Val), nil
	}

	target := promote(l.Kind, r.Kind, l.Val, r.Val)

	switch op {
	case "+":
		res, ok := safeAdd(l.Val, r.Val)
		if !ok {
			return nil, newErr(OverflowError, span, "integer overflow in addition")
		}
		if err := CheckOverflow(res, target, span); err != nil {
			return nil, err
		}
		return NewIntValue(res, target), nil
	case "-":
		res, ok := safeSub(l.Val, r.Val)
		if !ok {
			return nil, newErr(OverflowError, span, "integer overflow in subtraction")
		}
		if err := CheckOverflow(res, target, span); err != nil {
			return nil, err
		}
		return NewIntValue(res, target), nil
	case "*":
		res, ok := safeMul(l.Val, r.Val)
		if !ok {
			return nil, newErr(OverflowError, span, "integer overflow in multiplication")
		}
		if err := CheckOverflow(res, target, span); err != nil {
			return nil, err
		}
		return NewIntValue(res, target), nil
	case "/":
		if r.Val == 0 {
			return nil, newErr(ZeroDivisionError, span, "division by zero")
		}
		res := l.Val / r.Val
		if err := CheckOverflow(res, target, span); err != nil {
			return nil, err
		}
		return NewIntValue(res, target), nil
	case "%":
		if r.Val == 0 {
			return nil, newErr(ZeroDivisionError, span, "division by zero")
		}
		res := l.Val % r.Val
		return NewIntValue(res, target), nil
	case "**":
		res := int64(floatPow(float64(l.Val), float64(r.Val)))
		if err := CheckOverflow(res, target, span); err != nil {
			return nil, err
		}
		return NewIntValue(res, target), nil
	case "&":
		return NewIntValue(target.Mask(l.Val&r.Val), target), nil
	case "|":
		return NewIntValue(target.Mask(l.Val|r.Val), target), nil
	case "^":
		return NewIntValue(target.Mask(l.Val^r.Val), target), nil
	case "<<":
		return NewIntValue(target.Mask(l.Val<<uint(r.Val)), target), nil
	case ">>":
		return NewIntValue(target.Mask(l.Val>>uint(r.Val)), target), nil
	}
	return nil, newErr(InternalError, span, "unhandled integer operator '%s'", op)
}

func (ev *Evaluator) evalUnary(n *Node, sc *Scope, c *evalCtx) (Value, *Error) {
	v, err := ev.evalExpr(n.Right, sc, c)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "-":
		switch t := v.(type) {
		case *IntValue:
			res, ok := safeSub(0, t.Val)
			if !ok {
				return nil, newErr(OverflowError, n.Span, "integer overflow in negation")
			}
			if err := CheckOverflow(res, t.Kind, n.Span); err != nil {
				return nil, err
			}
			return NewIntValue(res, t.Kind), nil
		case FloatValue:
			return -t, nil
		}
		return nil, newErr(TypeError, n.Span, "bad operand type for unary '-': '%s'", typeNameOf(v))
	case "not":
		return BoolValue(!Truthy(v)), nil
	case "~":
		iv, ok := v.(*IntValue)
		if !ok {
			return nil, newErr(TypeError, n.Span, "bad operand type for unary '~': '%s'", typeNameOf(v))
		}
		return NewIntValue(iv.Kind.Mask(^iv.Val), iv.Kind), nil
	}
	return nil, newErr(InternalError, n.Span, "unhandled unary operator '%s'", n.Op)
}

// ---- Built-in type methods ----

func (ev *Evaluator) stringMethod(s *StringValue, name string, args []Value, span Span) (Value, *Error) {
	switch name {
	case "upper":
		return NewString(strings.ToUpper(s.S)), nil
	case "lower":
		return NewString(strings.ToLower(s.S)), nil
	case "trim":
		return NewString(strings.TrimSpace(s.S)), nil
	case "split":
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "split() takes exactly 1 argument")
		}
		sep, ok := args[0].(*StringValue)
		if !ok {
			return nil, newErr(TypeError, span, "split() requires a string separator")
		}
		parts := strings.Split(s.S, sep.S)
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = NewString(p)
		}
		return NewList(items), nil
	case "contains":
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "contains() takes exactly 1 argument")
		}
		sub, ok := args[0].(*StringValue)
		if !ok {
			return nil, newErr(TypeError, span, "contains() requires a string argument")
		}
		return BoolValue(strings.Contains(s.S, sub.S)), nil
	}
	return nil, newErr(AttributeError, span, "'string' has no method '%s'", name)
}

func (ev *Evaluator) listMethod(l *ListValue, name string, args []Value, span Span) (Value, *Error) {
	switch name {
	case "append", "push":
		l.Items = append(l.Items, args...)
		return None, nil
	case "pop":
		if len(l.Items) == 0 {
			return nil, newErr(IndexError, span, "pop from an empty list")
		}
		last := l.Items[len(l.Items)-1]
		l.Items = l.Items[:len(l.Items)-1]
		return last, nil
	case "contains":
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "contains() takes exactly 1 argument")
		}
		for _, it := range l.Items {
			if Equal(it, args[0]) {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	}
	return nil, newErr(AttributeError, span, "'list' has no method '%s'", name)
}

func (ev *Evaluator) dictMethod(d *DictValue, name string, args []Value, span Span) (Value, *Error) {
	switch name {
	case "keys":
		items := make([]Value, len(d.Keys))
		for i, k := range d.Keys {
			items[i] = NewString(k)
		}
		return NewList(items), nil
	case "has":
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "has() takes exactly 1 argument")
		}
		key, err := dictKeyString(args[0], span)
		if err != nil {
			return nil, err
		}
		_, ok := d.Values[key]
		return BoolValue(ok), nil
	case "remove":
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "remove() takes exactly 1 argument")
		}
		key, err := dictKeyString(args[0], span)
		if err != nil {
			return nil, err
		}
		d.Delete(key)
		return None, nil
	}
	return nil, newErr(AttributeError, span, "'dict' has no method '%s'", name)
}
