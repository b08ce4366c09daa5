package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSourceName is used when Eval is called with no path, mirroring the
// teacher's DefaultSourceName for the REPL/one-shot-string evaluation case.
const DefaultSourceName = "<input>"

// searchPathEnv is the environment variable consulted for bare/dotted
// module resolution when Options.SearchPath is left empty (spec §4.6, §6
// "a search-path variable lists directories consulted").
const searchPathEnv = "ZEPHYRPATH"

// Options configures an Interpreter, named and shaped exactly like the
// teacher's Options (interp.go), trimmed to what Zephyr's core actually
// needs: streams, a module search path, and a plugin resolver hook (spec
// §1 "native-plugin dynamic loading... treated as an opaque resolver").
type Options struct {
	// Stdin, Stdout, Stderr default to os.Stdin/os.Stdout/os.Stderr.
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// SearchPath lists directories consulted for bare/dotted module
	// specifiers (spec §4.6). When nil, it is populated by splitting the
	// ZEPHYRPATH environment variable on the platform's path separator.
	SearchPath []string

	// Resolver, if set, services plugin-form imports (SPEC_FULL.md §C.4).
	Resolver PluginResolver
}

// Interpreter is a single Zephyr evaluation session: one scheduler, one
// module loader, and the evaluator whose global scope is this session's
// top-level scope (spec §4.6 "a fresh evaluator instance" applies to each
// *imported* module; the top-level Interpreter itself owns the root one).
type Interpreter struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	sched *Scheduler
	loader *ModuleLoader
	eval   *Evaluator
}

// New returns a new Zephyr interpreter, wiring the scheduler, module
// loader and evaluator together exactly as spec §4.6 describes ("each
// module is executed... in a fresh evaluator"): the loader's Execute hook
// spins up one such evaluator per imported module, sharing this session's
// scheduler so a task spawned from inside an imported module cooperates
// with every other task in the process.
func New(options Options) *Interpreter {
	i := &Interpreter{
		stdin:  options.Stdin,
		stdout: options.Stdout,
		stderr: options.Stderr,
	}
	if i.stdin == nil {
		i.stdin = os.Stdin
	}
	if i.stdout == nil {
		i.stdout = os.Stdout
	}
	if i.stderr == nil {
		i.stderr = os.Stderr
	}

	search := options.SearchPath
	if search == nil {
		if raw := os.Getenv(searchPathEnv); raw != "" {
			search = filepath.SplitList(raw)
		}
	}

	i.sched = NewScheduler()
	i.loader = NewModuleLoader(search)
	if options.Resolver != nil {
		i.loader.SetPluginResolver(options.Resolver)
	}
	i.eval = NewEvaluator(i.sched, i.loader, i.stdout, i.stderr)

	// Every imported module runs in its own evaluator (spec §4.6) but
	// shares this session's scheduler and loader, so `spawn` inside an
	// import and the loader's cache and cycle detection span the whole
	// program. The double-import guard stays per module: each evaluator
	// keeps its own importedPaths.
	i.loader.Execute = func(m *ModuleValue) *Error {
		modEval := NewEvaluator(i.sched, i.loader, i.stdout, i.stderr)
		modEval.Module = m
		if err := modEval.Run(m.AST); err != nil {
			return err
		}
		m.Exports = modEval.Exports()
		m.Scope = modEval.Global
		return nil
	}

	return i
}

// Eval evaluates Zephyr source held in a string. It mirrors the teacher's
// Eval(src string) shape, but returns the session's concrete Value type
// (spec §3.2) rather than reflect.Value — Zephyr values are never Go
// values under the hood.
func (i *Interpreter) Eval(src string) (Value, error) {
	return i.eval2(src, DefaultSourceName)
}

// EvalPath evaluates the Zephyr script located at path (spec §6 CLI).
func (i *Interpreter) EvalPath(path string) (Value, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return i.eval2(string(b), path)
}

func (i *Interpreter) eval2(src, name string) (Value, error) {
	lex, lerr := NewLexer(src)
	if lerr != nil {
		return nil, i.located(lerr, name, src)
	}
	p := NewParser(lex.tokens)
	prog, perr := p.ParseProgram()
	if perr != nil {
		return nil, i.located(perr, name, src)
	}

	// A relative import inside the top-level script resolves against the
	// script's own directory (spec §4.6), so EvalPath threads its path
	// through as the requester; Eval's synthetic "<input>" name has no
	// directory of its own and resolves relative imports against cwd.
	if name != DefaultSourceName && i.eval.Module == nil {
		i.eval.Module = &ModuleValue{Name: filepath.Base(name), Path: name}
	}

	last, rerr := i.eval.RunREPL(prog)
	if rerr != nil {
		return nil, i.located(rerr, name, src)
	}
	i.sched.RunUntilComplete()
	return last, nil
}

// located fills in the file name and offending source line on a *Error so
// its Traceback() (spec §6) renders the full multi-line format.
func (i *Interpreter) located(e *Error, name, src string) *Error {
	e.File = name
	lines := strings.Split(src, "\n")
	if e.Span.Line >= 1 && e.Span.Line <= len(lines) {
		e.Line = lines[e.Span.Line-1]
	}
	return e
}

// REPL performs a read-eval-print loop on Stdin, printing results to
// Stdout and tracebacks to Stderr, in the teacher's REPL shape (interp.go)
// trimmed of terminal coloring and cancellation (spec §1 "the REPL loop
// and terminal coloring" are out of scope for the core; this is the
// thinnest loop that exercises Eval).
func (i *Interpreter) REPL() error {
	prompt := promptFor(i.stdin)
	scanner := bufio.NewScanner(i.stdin)
	prompt(i.stdout, nil)
	for scanner.Scan() {
		line := scanner.Text()
		v, err := i.Eval(line)
		if err != nil {
			if zerr, ok := err.(*Error); ok {
				fmt.Fprintln(i.stderr, zerr.Traceback())
			} else {
				fmt.Fprintln(i.stderr, err)
			}
			prompt(i.stdout, nil)
			continue
		}
		prompt(i.stdout, v)
	}
	return scanner.Err()
}

// promptFor only prints the "> " / result echo when stdin looks like a
// terminal, matching the teacher's getPrompt (interp.go) so piping a
// script through stdin does not interleave prompt noise with output.
func promptFor(in io.Reader) func(out io.Writer, v Value) {
	f, ok := in.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		return func(io.Writer, Value) {}
	}
	stat, err := f.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return func(io.Writer, Value) {}
	}
	return func(out io.Writer, v Value) {
		if v != nil {
			if _, isNone := v.(NoneValue); !isNone {
				fmt.Fprintln(out, ":", v.String())
			}
		}
		fmt.Fprint(out, "> ")
	}
}

