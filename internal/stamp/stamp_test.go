package stamp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/repo"
)

func sampleStamp() *Stamp {
	return &Stamp{
		RootRepoURL:         "git+git://example.com/top",
		RootDescriptionPath: "src/builds/01.py",
		Domains: []DomainEntry{
			{Name: "sub1", RepoURL: "git+git://example.com/sub1", DescriptionPath: "src/builds/01.py"},
		},
		Checkouts: []CheckoutEntry{
			{Domain: "", Name: "co_a", RepoURL: "git+git://example.com/co_a", VCS: "git",
				Revision: "deadbeef", RelativePath: "co_a", Leaf: "co_a",
				Options: map[string]interface{}{"shallow": true}},
			{Domain: "sub1", Name: "co_b", RepoURL: "git+git://example.com/co_b", VCS: "git",
				Revision: "cafef00d", RelativePath: "co_b", Leaf: "co_b"},
		},
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	s := sampleStamp()
	text := s.Render()

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Render() != text {
		t.Fatalf("round trip mismatch:\n--- original ---\n%s\n--- reparsed ---\n%s", text, parsed.Render())
	}
	if parsed.SHA1() != s.SHA1() {
		t.Fatalf("SHA1 mismatch after round trip")
	}
}

func TestRenderIsStableAcrossCalls(t *testing.T) {
	s := sampleStamp()
	if s.Render() != s.Render() {
		t.Fatalf("Render is not stable/deterministic")
	}
	if s.SHA1() != s.SHA1() {
		t.Fatalf("SHA1 is not stable/deterministic")
	}
}

type fixedResolver struct {
	rev string
	err error
}

func (f fixedResolver) Revision(ctx context.Context, target label.Label, cd *repo.CheckoutData, opts ResolveOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.rev, nil
}

func newTestBuilderWithCheckout(t *testing.T) *builder.Builder {
	t.Helper()
	root := t.TempDir()
	tree, err := layout.Init(root)
	if err != nil {
		t.Fatalf("layout.Init: %v", err)
	}
	if err := tree.SetRootRepository("git+git://example.com/top"); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetDescription("src/builds/01.py"); err != nil {
		t.Fatal(err)
	}
	b, err := builder.New(tree, false)
	if err != nil {
		t.Fatalf("builder.New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	kind, err := repo.Lookup("git")
	if err != nil {
		t.Fatal(err)
	}
	cd := repo.NewCheckoutData(kind, repo.Repository{
		VCS: "git", BaseURL: "git://example.com", RelativePath: "co_a",
	}, "", "", "co_a")
	b.AddCheckout(label.New(label.Checkout, "co_a", "", label.Wildcard, ""), cd)
	return b
}

func TestBuildAndSaveProducesStampExtension(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilderWithCheckout(t)

	s, problems, err := Build(ctx, b, fixedResolver{rev: "deadbeef"}, ResolveOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %+v", problems)
	}

	destDir := t.TempDir()
	path, sum, err := Save(s, problems, destDir, "H")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(path) != ".stamp" {
		t.Fatalf("expected .stamp extension, got %s", path)
	}
	if sum != s.SHA1() {
		t.Fatalf("returned SHA1 %q != stamp's own %q", sum, s.SHA1())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	reparsed, err := Parse(string(data))
	if err != nil {
		t.Fatalf("Parse saved stamp: %v", err)
	}
	if reparsed.SHA1() != s.SHA1() {
		t.Fatalf("saved-then-reloaded stamp has a different SHA1")
	}
}

func TestBuildWithUnresolvedRevisionProducesPartial(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilderWithCheckout(t)

	s, problems, err := Build(ctx, b, fixedResolver{err: errGiveUp("shallow clone, no revision")}, ResolveOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(problems) != 1 {
		t.Fatalf("expected exactly one problem, got %+v", problems)
	}

	destDir := t.TempDir()
	path, _, err := Save(s, problems, destDir, "H")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(path) != ".partial" {
		t.Fatalf("expected .partial extension, got %s", path)
	}
	data, _ := os.ReadFile(path)
	if !contains(string(data), "[PROBLEMS]") {
		t.Fatalf("expected a PROBLEMS section in partial output:\n%s", data)
	}
}

type errGiveUp string

func (e errGiveUp) Error() string { return string(e) }

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestDiffUnifiedShowsChangedRevision(t *testing.T) {
	a := sampleStamp()
	b := sampleStamp()
	b.Checkouts[0].Revision = "newrev"

	text, err := Diff(a, b, "a.stamp", "b.stamp", Unified)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !contains(text, "-revision = deadbeef") {
		t.Fatalf("expected a removed-revision line in unified diff:\n%s", text)
	}
	if !contains(text, "+revision = newrev") {
		t.Fatalf("expected an added-revision line in unified diff:\n%s", text)
	}
}

func TestDiffNDiffAndHTMLDoNotError(t *testing.T) {
	a := sampleStamp()
	b := sampleStamp()
	b.Checkouts[0].Revision = "newrev"

	if _, err := Diff(a, b, "a", "b", NDiff); err != nil {
		t.Fatalf("NDiff: %v", err)
	}
	htmlText, err := Diff(a, b, "a", "b", HTML)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !contains(htmlText, "<table") {
		t.Fatalf("expected an HTML table:\n%s", htmlText)
	}
}

func TestRestoreRefusesExistingMuddleDir(t *testing.T) {
	root := t.TempDir()
	if _, err := layout.Init(root); err != nil {
		t.Fatal(err)
	}
	_, err := Restore(context.Background(), sampleStamp().Render(), root, nil)
	if err == nil {
		t.Fatalf("expected Restore to refuse a root that already has .muddle/")
	}
}

func TestRestoreCreatesTreeAndDrivesCheckout(t *testing.T) {
	root := t.TempDir()
	var checkedOut []CheckoutEntry
	driver := func(ctx context.Context, entry CheckoutEntry, destPath string) error {
		checkedOut = append(checkedOut, entry)
		return os.MkdirAll(destPath, 0o755)
	}

	s, err := Restore(context.Background(), sampleStamp().Render(), root, driver)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	tree := layout.Tree{Root: root}
	repoURL, err := tree.RootRepository()
	if err != nil {
		t.Fatal(err)
	}
	if repoURL != s.RootRepoURL {
		t.Fatalf("RootRepository = %q, want %q", repoURL, s.RootRepoURL)
	}

	subTree := layout.Tree{Root: filepath.Join(root, "domains", "sub1")}
	isSub, domainName, err := subTree.IsSubdomain()
	if err != nil {
		t.Fatal(err)
	}
	if !isSub || domainName != "sub1" {
		t.Fatalf("expected domains/sub1 to carry the am_subdomain marker, got (%v, %q)", isSub, domainName)
	}

	if len(checkedOut) != 2 {
		t.Fatalf("expected 2 checkouts driven, got %d: %+v", len(checkedOut), checkedOut)
	}
	if _, err := os.Stat(filepath.Join(root, "domains", "sub1", "src", "co_b")); err != nil {
		t.Fatalf("expected subdomain checkout directory to exist: %v", err)
	}
}

func TestVerifyDetectsDiscrepancies(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilderWithCheckout(t)
	s, _, err := Build(ctx, b, fixedResolver{rev: "deadbeef"}, ResolveOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if discrepancies := Verify(b, s); len(discrepancies) != 0 {
		t.Fatalf("expected no discrepancies against its own build, got %+v", discrepancies)
	}

	s.Checkouts = append(s.Checkouts, CheckoutEntry{Domain: "", Name: "co_missing", RepoURL: "git+git://example.com/missing"})
	discrepancies := Verify(b, s)
	if len(discrepancies) != 1 || discrepancies[0].Checkout.Name != "co_missing" {
		t.Fatalf("expected one discrepancy for co_missing, got %+v", discrepancies)
	}
}
