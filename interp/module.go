package interp

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

// PluginResolver models the opaque native-plugin loader spec §1 places out
// of scope for the core: given a specifier it yields an already-populated
// module export map (SPEC_FULL.md §C.4, grounded on
// original_source/include/zephyr/module_loader.hpp's plugin_module_t).
type PluginResolver func(specifier string) (map[string]Value, bool, error)

// ModuleLoader resolves specifiers to canonical paths, caches modules,
// detects import cycles, and executes each module exactly once (spec §4.6).
type ModuleLoader struct {
	cache        map[string]*ModuleValue
	loadingStack []string
	searchPaths  []string
	plugin       PluginResolver
	group        singleflight.Group

	// Execute runs a freshly parsed module's AST to completion in a new
	// evaluator, populating its exports. Set by the owning Interpreter so
	// module.go need not import the evaluator's construction details.
	Execute func(m *ModuleValue) *Error
}

func NewModuleLoader(searchPaths []string) *ModuleLoader {
	return &ModuleLoader{cache: map[string]*ModuleValue{}, searchPaths: searchPaths}
}

func (l *ModuleLoader) SetPluginResolver(r PluginResolver) { l.plugin = r }

// canonicalPath normalizes separators and resolves symlinks so that
// equivalent specifiers dedup to the same cache key (spec §4.6/§9 design
// note, GLOSSARY "Canonical path").
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.ToSlash(abs)
}

// ResolveSpecifier turns a specifier (bare/dotted, string-path, or plugin)
// into a canonical path, per spec §4.6.
func (l *ModuleLoader) ResolveSpecifier(specifier string, isPath bool, requester string) (string, *Error) {
	if isPath {
		if filepath.IsAbs(specifier) {
			return canonicalPath(specifier), nil
		}
		base := filepath.Dir(requester)
		return canonicalPath(filepath.Join(base, specifier)), nil
	}

	rel := strings.ReplaceAll(specifier, ".", string(filepath.Separator))
	if !strings.HasSuffix(rel, ".zephyr") {
		rel += ".zephyr"
	}
	for _, dir := range l.searchPaths {
		candidate := filepath.Join(dir, rel)
		if fileExists(candidate) {
			return canonicalPath(candidate), nil
		}
	}
	return "", newErr(ImportError, Span{}, "cannot resolve module '%s': not found on search path", specifier)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load resolves, parses (if not cached), and executes (if not yet executed)
// the module named by specifier, detecting cycles via the loading stack
// (spec §4.6/§5). Concurrent loads of the same canonical path — possible
// because a spawned task's body can import a module independently of the
// main task — are coalesced by singleflight so the module body still runs
// exactly once (spec §8 "each module's body executes exactly once").
func (l *ModuleLoader) Load(specifier string, isPath bool, requester string) (*ModuleValue, *Error) {
	path, err := l.ResolveSpecifier(specifier, isPath, requester)
	if err != nil {
		return nil, err
	}

	// Cycle detection happens before the singleflight call: a recursive
	// import (A -> B -> A) re-enters Load for the same path from inside
	// the same in-flight call, which would otherwise deadlock waiting on
	// itself.
	if contains(l.loadingStack, path) {
		return nil, newErr(ImportError, Span{}, "circular import detected: %s -> %s", strings.Join(l.loadingStack, " -> "), path)
	}

	if m, ok := l.cache[path]; ok {
		return m, nil
	}

	v, sfErr, _ := l.group.Do(path, func() (interface{}, error) {
		return l.loadUncached(path)
	})
	if sfErr != nil {
		if zerr, ok := sfErr.(*Error); ok {
			return nil, zerr
		}
		return nil, newErr(ImportError, Span{}, sfErr.Error())
	}
	return v.(*ModuleValue), nil
}

func (l *ModuleLoader) loadUncached(path string) (*ModuleValue, error) {
	src, ferr := os.ReadFile(path)
	if ferr != nil {
		return nil, newErr(IOError, Span{}, "cannot read module '%s': %v", path, ferr)
	}

	l.loadingStack = append(l.loadingStack, path)
	defer func() { l.loadingStack = l.loadingStack[:len(l.loadingStack)-1] }()

	lex, lerr := NewLexer(string(src))
	if lerr != nil {
		return nil, lerr
	}
	p := NewParser(lex.tokens)
	ast, perr := p.ParseProgram()
	if perr != nil {
		return nil, perr
	}

	m := &ModuleValue{
		Name:    filepath.Base(path),
		Path:    path,
		Source:  string(src),
		AST:     ast,
		Exports: map[string]Value{},
	}

	if l.Execute != nil {
		if err := l.Execute(m); err != nil {
			return nil, err
		}
	}
	m.Executed = true
	l.cache[path] = m
	return m, nil
}

func contains(stack []string, p string) bool {
	for _, s := range stack {
		if s == p {
			return true
		}
	}
	return false
}

// LoadPlugin resolves a plugin specifier via the configured PluginResolver
// (SPEC_FULL.md §C.4).
func (l *ModuleLoader) LoadPlugin(specifier string) (*ModuleValue, *Error) {
	if l.plugin == nil {
		return nil, newErr(ImportError, Span{}, "no plugin resolver configured for '%s'", specifier)
	}
	exports, ok, err := l.plugin(specifier)
	if err != nil {
		return nil, newErr(ImportError, Span{}, "plugin load failed for '%s': %v", specifier, err)
	}
	if !ok {
		return nil, newErr(ImportError, Span{}, "plugin module '%s' not found", specifier)
	}
	m := &ModuleValue{Name: specifier, Path: specifier, Exports: exports, Executed: true}
	l.cache[specifier] = m
	return m, nil
}
