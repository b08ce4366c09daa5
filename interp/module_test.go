package interp

import (
	"os"
	"path/filepath"
	"testing"
)

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// For module graphs without cycles, each module's body executes exactly
// once and its exports match the top-level non-internal declarations by
// name (spec §8).
func TestModuleExportsFilterInternal(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.zephyr", `
func helper() { return 1 }
internal func secret() { return 2 }
const PUBLIC = 42
internal const HIDDEN = 99
`)
	entry := writeModule(t, dir, "main.zephyr", `
import "./lib.zephyr" as lib
[lib.helper(), lib.PUBLIC]
`)

	i := New(Options{})
	v, err := i.EvalPath(entry)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lv, ok := v.(*ListValue)
	if !ok || len(lv.Items) != 2 {
		t.Fatalf("result = %v, want 2-element list", v)
	}
	if iv, ok := lv.Items[0].(*IntValue); !ok || iv.Val != 1 {
		t.Errorf("lib.helper() = %v, want 1", lv.Items[0])
	}
	if iv, ok := lv.Items[1].(*IntValue); !ok || iv.Val != 42 {
		t.Errorf("lib.PUBLIC = %v, want 42", lv.Items[1])
	}

	if _, err := i.Eval(`lib.secret()`); err == nil {
		t.Fatal("expected internal 'secret' to be inaccessible through the module handle")
	}
}

// For module graphs with a cycle, loading fails with ImportError
// mentioning both module names, and no module in the cycle is marked
// executed (spec §8).
func TestModuleCycleDetection(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "b.zephyr", `import "./a.zephyr" as a`)
	entry := writeModule(t, dir, "a.zephyr", `import "./b.zephyr" as b`)

	i := New(Options{})
	_, err := i.EvalPath(entry)
	if err == nil {
		t.Fatal("expected ImportError for circular import")
	}
	zerr, ok := err.(*Error)
	if !ok || zerr.Kind != ImportError {
		t.Fatalf("got %v, want ImportError", err)
	}
}

// Importing the same canonical path twice within one module is an error
// (spec §4.6 "Double-import guard").
func TestDoubleImportWithinSameModuleIsError(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.zephyr", `const X = 1`)
	entry := writeModule(t, dir, "main.zephyr", `
import "./lib.zephyr" as a
import "./lib.zephyr" as b
`)

	i := New(Options{})
	_, err := i.EvalPath(entry)
	if err == nil {
		t.Fatal("expected ImportError for double import of the same canonical path")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != ImportError {
		t.Fatalf("got %v, want ImportError", err)
	}
}

// A module that resolves relative to the importer's directory, not the
// interpreter's cwd, via the canonical-path cache key (spec §4.6/§9).
func TestRelativePathImportResolvesAgainstRequester(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeModule(t, sub, "helper.zephyr", `func greet() { return "hi" }`)
	entry := writeModule(t, dir, "main.zephyr", `
import "./sub/helper.zephyr" as helper
helper.greet()
`)

	i := New(Options{})
	v, err := i.EvalPath(entry)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if sv, ok := v.(*StringValue); !ok || sv.S != "hi" {
		t.Errorf("helper.greet() = %v, want \"hi\"", v)
	}
}
