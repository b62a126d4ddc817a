package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	kommandant "gitlab.com/ianbruene/kommandant"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
)

// muddleQuery is Kommandant's local-commands receiver for `muddle query`,
// the interactive shell of spec.md §6's query category. Grounded on the
// teacher's Reposurgeon type (surgeon/reposurgeon.go): a thin struct
// holding the Kmdt core plus whatever state the commands need, with one
// Do<Cmd>(line string) bool method per verb.
type muddleQuery struct {
	cmd *kommandant.Kmdt
	b   *builder.Builder
}

// SetCore is Kommandant's housekeeping hook, mirroring Reposurgeon.SetCore.
func (q *muddleQuery) SetCore(k *kommandant.Kmdt) { q.cmd = k }

func (q *muddleQuery) parseLabel(line string) (label.Label, error) {
	return label.Parse(strings.TrimSpace(line), label.Defaults{Type: label.Package, Tag: label.Wildcard})
}

// DoWhich reports the rule (if any) whose target matches the given label.
func (q *muddleQuery) DoWhich(line string) bool {
	l, err := q.parseLabel(line)
	if err != nil {
		fmt.Println(err)
		return false
	}
	rule, ok := q.b.RuleSet().RuleForTarget(l)
	if !ok {
		fmt.Printf("no rule for %s\n", l)
		return false
	}
	action := "(no action)"
	if rule.Action != nil {
		action = rule.Action.Name()
	}
	fmt.Printf("%s <- %s\n", rule.Target, action)
	return false
}

// DoDepend lists a label's transitive build order.
func (q *muddleQuery) DoDepend(line string) bool {
	l, err := q.parseLabel(line)
	if err != nil {
		fmt.Println(err)
		return false
	}
	order, err := q.b.RuleSet().NeededToBuild(l, true)
	if err != nil {
		fmt.Println(err)
		return false
	}
	for _, rule := range order {
		fmt.Println(rule.Target)
	}
	return false
}

// DoRequiredBy lists every label that (transitively) depends on the given one.
func (q *muddleQuery) DoRequiredBy(line string) bool {
	l, err := q.parseLabel(line)
	if err != nil {
		fmt.Println(err)
		return false
	}
	for _, dependent := range q.b.RuleSet().RequiredBy(l) {
		fmt.Println(dependent)
	}
	return false
}

// DoRules lists every rule currently registered.
func (q *muddleQuery) DoRules(line string) bool {
	for _, rule := range q.b.RuleSet().Rules() {
		fmt.Println(rule.Target)
	}
	return false
}

// DoCheckouts lists every registered checkout.
func (q *muddleQuery) DoCheckouts(line string) bool {
	for l := range q.b.Checkouts() {
		fmt.Println(l)
	}
	return false
}

// DoRoles lists the default build roles.
func (q *muddleQuery) DoRoles(line string) bool {
	fmt.Println(strings.Join(q.b.DefaultRoles(), " "))
	return false
}

func (q *muddleQuery) DoQuit(line string) bool {
	return true
}

func (q *muddleQuery) DoEOF(line string) bool {
	fmt.Println()
	return true
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [command]",
		Short: "Run one query command, or start an interactive query shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			q := &muddleQuery{b: b}
			interpreter := kommandant.NewKommandant(q)
			ctx := cmdContext()
			if len(args) == 0 {
				interpreter.CmdLoop(ctx, "muddle> ")
				return nil
			}
			interpreter.OneCmd(ctx, strings.Join(args, " "))
			return nil
		},
	}
	return cmd
}
