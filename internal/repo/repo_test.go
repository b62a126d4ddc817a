package repo

import "testing"

func TestSplitVCSURL(t *testing.T) {
	vcs, bare, ok := SplitVCSURL("git+ssh://example.com/repo.git")
	if !ok || vcs != "git" || bare != "ssh://example.com/repo.git" {
		t.Fatalf("got (%q, %q, %v)", vcs, bare, ok)
	}
	if _, _, ok := SplitVCSURL("not-a-vcs-url"); ok {
		t.Fatalf("expected no match")
	}
}

func TestCheckoutDataLocation(t *testing.T) {
	git, _ := Lookup("git")
	r := Repository{VCS: "git", BaseURL: "http://example.com/main", RelativePath: "builds"}
	c := NewCheckoutData(git, r, "", "", "builds")
	if got, want := c.Location(), "src/builds"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	c2 := NewCheckoutData(git, r, "apps", "first_co", "first_co")
	if got, want := c2.Location(), "src/apps/first_co"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCheckoutDataSetOptionValidation(t *testing.T) {
	git, _ := Lookup("git")
	c := NewCheckoutData(git, Repository{VCS: "git"}, "", "", "co")
	if err := c.SetOption("shallow", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SetOption("bogus", true); err == nil {
		t.Fatalf("expected GiveUp for disallowed option")
	}
	if err := c.SetOption("shallow", 3.14); err == nil {
		t.Fatalf("expected GiveUp for non bool/int/string value")
	}
}

func TestUpstreamTableMergeConflict(t *testing.T) {
	parent := NewUpstreamTable()
	parent.Add("git+http://x/main", "git+http://x/mirror-a", "mirror")

	child := NewUpstreamTable()
	child.Add("git+http://x/main", "git+http://x/mirror-b", "mirror")

	if err := parent.Merge(child, "subdomain sub1"); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestUpstreamTableMergeIdenticalIsUnioned(t *testing.T) {
	parent := NewUpstreamTable()
	parent.Add("git+http://x/main", "git+http://x/mirror-a", "mirror")

	child := NewUpstreamTable()
	child.Add("git+http://x/main", "git+http://x/mirror-a", "mirror")
	child.Add("git+http://x/main", "git+http://x/mirror-c", "backup")

	if err := parent.Merge(child, "subdomain sub1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names := parent.Names("git+http://x/main", "git+http://x/mirror-c"); len(names) != 1 {
		t.Fatalf("expected backup upstream merged, got %v", names)
	}
}
