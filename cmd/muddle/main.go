// Command muddle is the build/deployment orchestrator's CLI entry point,
// per spec.md §6's command catalogue (init, checkout, package, deployment,
// query, stamp, misc). Grounded on the teacher's own `main()` in
// surgeon/reposurgeon.go - global state init, then dispatch, then a
// recover-and-report exit - generalized from Kommandant's REPL dispatch to
// cobra's subcommand tree, per SPEC_FULL.md's Domain Stack wiring of
// github.com/spf13/cobra and github.com/spf13/pflag.
package main

import (
	"fmt"
	"os"

	"github.com/muddle-build/muddle/internal/merrors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "muddle:", err)
		os.Exit(merrors.RetcodeOf(err))
	}
}
