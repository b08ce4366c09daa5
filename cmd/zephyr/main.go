// Command zephyr runs a .zephyr script, or starts a REPL when given no
// arguments (spec §6 CLI).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zephyr-lang/zephyr/interp"
)

func main() {
	flag.Usage = func() {
		fmt.Println("Usage:", os.Args[0], "[script.zephyr]")
		fmt.Println("With no script, starts an interactive REPL.")
	}
	flag.Parse()
	args := flag.Args()

	i := interp.New(interp.Options{})

	if len(args) == 0 {
		if err := i.REPL(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if _, err := i.EvalPath(args[0]); err != nil {
		if zerr, ok := err.(*interp.Error); ok {
			fmt.Fprintln(os.Stderr, zerr.Traceback())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
