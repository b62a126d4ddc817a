package subdomain

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/license"
	"github.com/muddle-build/muddle/internal/repo"
)

func newTestBuilder(t *testing.T) *builder.Builder {
	t.Helper()
	root := t.TempDir()
	tree, err := layout.Init(root)
	if err != nil {
		t.Fatalf("layout.Init: %v", err)
	}
	b, err := builder.New(tree, false)
	if err != nil {
		t.Fatalf("builder.New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func co(name string) label.Label {
	return label.New(label.Checkout, name, "", label.Wildcard, "")
}

// loadFirstCo is a stand-in LoadFunc registering a single checkout + rule,
// matching spec.md §8 scenario 7's "sub1 containing a checkout first_co".
func loadFirstCo(ctx context.Context, sub *builder.Builder) error {
	target := co("first_co").CopyWithTag(label.CheckedOut)
	sub.RuleSet().Add(depend.NewRule(target, nil))
	cd := repo.NewCheckoutData(mustVCS(), repo.Repository{
		VCS: "git", BaseURL: "git://example.com", RelativePath: "first_co",
	}, "", "", "first_co")
	sub.AddCheckout(co("first_co"), cd)
	sub.Licenses().SetLicense(co("first_co").CopyWithTag(label.CheckedOut), license.License{
		Name: "MIT", Category: license.OpenSource,
	})
	return nil
}

func mustVCS() repo.VCSKind {
	kind, err := repo.Lookup("git")
	if err != nil {
		panic(err)
	}
	return kind
}

func TestIncludeRewritesDomainOfEveryLabel(t *testing.T) {
	ctx := context.Background()
	parent := newTestBuilder(t)

	err := Include(ctx, parent, "sub1", Options{
		RepoURL:         "git+git://example.com/sub1",
		DescriptionPath: "src/builds/01.py",
		Load:            loadFirstCo,
	})
	if err != nil {
		t.Fatalf("Include: %v", err)
	}

	target := co("first_co").CopyWithTag(label.CheckedOut).CopyWithDomain("sub1")
	if _, ok := parent.RuleSet().RuleForTarget(target); !ok {
		t.Fatalf("expected rule for %s to be merged into the parent ruleset", target)
	}

	cd, ok := parent.CheckoutFor(co("first_co").CopyWithDomain("sub1"))
	if !ok {
		t.Fatalf("expected first_co to be merged into the parent's checkouts")
	}
	wantLoc := filepath.ToSlash(filepath.Join("domains", "sub1", "src", "first_co"))
	if got := filepath.ToSlash(cd.Location()); got != wantLoc {
		t.Fatalf("Location() = %q, want %q", got, wantLoc)
	}

	if _, ok := parent.Licenses().License(co("first_co").CopyWithTag(label.CheckedOut).CopyWithDomain("sub1")); !ok {
		t.Fatalf("expected license data to be merged under the new domain")
	}
}

func TestIncludeNestedDomainComposesParentheses(t *testing.T) {
	ctx := context.Background()
	parent := newTestBuilder(t)
	if err := Include(ctx, parent, "sub1", Options{RepoURL: "git+git://example.com/sub1", Load: loadFirstCo}); err != nil {
		t.Fatalf("Include: %v", err)
	}

	sub1 := parent.SubBuilders()["sub1"]
	if err := Include(ctx, sub1, "sub2", Options{RepoURL: "git+git://example.com/sub2", Load: loadFirstCo}); err != nil {
		t.Fatalf("Include (nested): %v", err)
	}

	target := co("first_co").CopyWithTag(label.CheckedOut).CopyWithDomain("sub1(sub2)")
	if _, ok := sub1.RuleSet().RuleForTarget(target); !ok {
		t.Fatalf("expected nested inclusion to compose domain as sub1(sub2), rules: %+v", sub1.RuleSet().Rules())
	}
}

func TestIncludeRegistersDomainLabelStore(t *testing.T) {
	ctx := context.Background()
	parent := newTestBuilder(t)
	if err := Include(ctx, parent, "sub1", Options{RepoURL: "git+git://example.com/sub1", Load: loadFirstCo}); err != nil {
		t.Fatalf("Include: %v", err)
	}

	target := co("first_co").CopyWithTag(label.CheckedOut).CopyWithDomain("sub1")
	if err := parent.Store().SetTag(ctx, target); err != nil {
		t.Fatalf("SetTag against subdomain's own labels table: %v", err)
	}
	done, err := parent.Store().IsTagDone(ctx, target)
	if err != nil {
		t.Fatalf("IsTagDone: %v", err)
	}
	if !done {
		t.Fatalf("expected the subdomain-scoped tag to be recorded as done")
	}
}
