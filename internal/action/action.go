// Package action defines the Action contract every Rule carries (Design
// Note 9: "Dynamic dispatch on actions is expressed as a polymorphic Action
// contract"), plus the concrete variants named there: make, deb, cpio,
// checkout-from-VCS, no-op, distribute-package, distribute-checkout.
//
// The concrete variants are thin, testable stand-ins that shell out (make
// splits its command with internal/shelltext; deb and cpio run dpkg-deb and
// cpio directly) rather than reimplementing dpkg/cpio/git semantics -
// per spec.md §1, the real build-step helpers are external collaborators.
package action

import "context"

// Builder is the minimal surface an Action needs from the builder façade to
// do its work, kept as a narrow interface here to avoid an import cycle
// with internal/builder (which imports internal/action to wire concrete
// actions into rules).
type Builder interface {
	// RootPath is the build tree root.
	RootPath() string
	// JustPrint reports whether this is a dry run (the -n/--just-print
	// CLI switch, per spec.md §6).
	JustPrint() bool
}

// Label is the minimal label surface an action needs - just its string
// form, again to dodge the import cycle (internal/label is safe to import
// directly; this alias exists so action signatures read naturally without
// every concrete action importing internal/label just to type a parameter).
type Label interface {
	String() string
}

// Action is the polymorphic contract every Rule's action satisfies.
type Action interface {
	// BuildLabel realises the transition onto target: `builder` gives it
	// access to the tree, `target` is the label being built.
	BuildLabel(ctx context.Context, builder Builder, target Label) error
	// RequiresMaster reports whether this action may only run on the
	// scheduler's master process (spec.md §4.4's "Master-requiring
	// actions").
	RequiresMaster() bool
	// Name identifies the action kind for reporting/logging.
	Name() string
}

// NoOp is a trivial Action that always succeeds without doing anything -
// used to realise purely-synthetic labels (spec.md §3's `synth` label
// type) whose only purpose is to shape the dependency graph.
type NoOp struct{}

func (NoOp) BuildLabel(ctx context.Context, builder Builder, target Label) error { return nil }
func (NoOp) RequiresMaster() bool                                                { return false }
func (NoOp) Name() string                                                       { return "no-op" }
