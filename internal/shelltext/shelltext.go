// Package shelltext provides the shell-quoting and tokenizing helpers
// actions and the interactive query shell need: turning a label/path list
// into a safely quoted command line, and splitting a REPL input line back
// into words. Grounded on the teacher's own use of
// github.com/anmitsu/go-shlex (surgeon/reposurgeon.go, surgeon/inner.go)
// for splitting, generalized with github.com/kballard/go-shellquote (also
// in the teacher's go.mod) for the inverse direction spec.md's
// `maybe_shell_quote`/`quote_list`/`unquote_list` need but the teacher
// itself never exercises.
package shelltext

import (
	shlex "github.com/anmitsu/go-shlex"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/muddle-build/muddle/internal/merrors"
)

// Split tokenizes line the way the teacher's command dispatcher does
// (surgeon/reposurgeon.go's `shlex.Split(line, true)`), honoring quoting.
func Split(line string) ([]string, error) {
	fields, err := shlex.Split(line, true)
	if err != nil {
		return nil, merrors.NewGiveUp("cannot parse command line %q: %v", line, err)
	}
	return fields, nil
}

// Quote renders a single argument safely quoted for a POSIX shell, per
// original_source's maybe_shell_quote (quote only if the argument contains
// characters a shell would otherwise treat specially).
func Quote(arg string) string {
	return shellquote.Join(arg)
}

// QuoteList renders a list of arguments as a single, safely quoted shell
// command line, per original_source's quote_list.
func QuoteList(args []string) string {
	return shellquote.Join(args...)
}

// UnquoteList is the inverse of QuoteList: split a shell command line back
// into its argument list, per original_source's unquote_list.
func UnquoteList(line string) ([]string, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, merrors.NewGiveUp("cannot unquote command line %q: %v", line, err)
	}
	return fields, nil
}
