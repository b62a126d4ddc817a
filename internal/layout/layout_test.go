package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitAndFindRoot(t *testing.T) {
	dir := t.TempDir()
	tree, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := tree.SetRootRepository("git+https://example.com/main.git"); err != nil {
		t.Fatalf("SetRootRepository: %v", err)
	}
	if err := tree.SetDescription("src/builds/01.py"); err != nil {
		t.Fatalf("SetDescription: %v", err)
	}

	nested := filepath.Join(dir, "src", "foo", "bar")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if found.Root != tree.Root {
		t.Fatalf("got root %q want %q", found.Root, tree.Root)
	}

	repo, err := found.RootRepository()
	if err != nil || repo != "git+https://example.com/main.git" {
		t.Fatalf("RootRepository = %q, %v", repo, err)
	}
}

func TestInitRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if _, err := Init(dir); err == nil {
		t.Fatalf("expected refusal on second Init")
	}
}

func TestOptionalFilesAbsent(t *testing.T) {
	dir := t.TempDir()
	tree, err := Init(dir)
	if err != nil {
		t.Fatal(err)
	}
	v, err := tree.VersionsRepository()
	if err != nil || v != "" {
		t.Fatalf("VersionsRepository = %q, %v", v, err)
	}
	b, err := tree.DescriptionBranch()
	if err != nil || b != "" {
		t.Fatalf("DescriptionBranch = %q, %v", b, err)
	}
}

func TestSubdomainMarker(t *testing.T) {
	dir := t.TempDir()
	tree, err := Init(dir)
	if err != nil {
		t.Fatal(err)
	}
	is, _, err := tree.IsSubdomain()
	if err != nil || is {
		t.Fatalf("expected no marker yet: %v %v", is, err)
	}
	if err := tree.MarkAsSubdomain("sub1"); err != nil {
		t.Fatal(err)
	}
	is, domain, err := tree.IsSubdomain()
	if err != nil || !is || domain != "sub1" {
		t.Fatalf("got %v %q %v", is, domain, err)
	}
}

func TestFindRootFailsOutsideTree(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindRoot(dir); err == nil {
		t.Fatalf("expected GiveUp when no .muddle/ exists")
	}
}
