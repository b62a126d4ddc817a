package main

import (
	"testing"
)

// These tests exercise the cobra command tree's construction and flag
// wiring without shelling out to git/make/dpkg-deb: spawning external
// processes belongs to an end-to-end test harness outside this package's
// scope, per the teacher's own split between reposurgeon's unit tests and
// its separate functional-test suite.

func TestNewRootCmdRegistersEveryCategory(t *testing.T) {
	root := newRootCmd()
	want := []string{"init", "checkout", "build", "deploy", "stamp", "query", "misc"}
	got := map[string]bool{}
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected a %q subcommand, got %v", name, got)
		}
	}
}

func TestNewRootCmdPersistentFlags(t *testing.T) {
	root := newRootCmd()
	if f := root.PersistentFlags().Lookup("just-print"); f == nil {
		t.Fatalf("expected a --just-print persistent flag")
	} else if f.Shorthand != "n" {
		t.Errorf("expected --just-print shorthand -n, got %q", f.Shorthand)
	}
	if f := root.PersistentFlags().Lookup("verbose"); f == nil {
		t.Fatalf("expected a --verbose persistent flag")
	} else if f.Shorthand != "v" {
		t.Errorf("expected --verbose shorthand -v, got %q", f.Shorthand)
	}
}

func TestCheckoutCmdHasThreeSubverbs(t *testing.T) {
	cmd := newCheckoutCmd(&globalFlags{})
	want := []string{"pull", "merge", "redo"}
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected checkout subverb %q, got %v", name, got)
		}
	}
}

func TestStampCmdHasSaveRestoreDiff(t *testing.T) {
	cmd := newStampCmd(&globalFlags{})
	want := []string{"save", "restore", "diff"}
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected stamp subcommand %q, got %v", name, got)
		}
	}
}

func TestMiscCmdHasWhereAmIAndLicenses(t *testing.T) {
	cmd := newMiscCmd(&globalFlags{})
	want := []string{"whereami", "licenses"}
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected misc subcommand %q, got %v", name, got)
		}
	}
}

func TestParseDiffMode(t *testing.T) {
	cases := map[string]bool{
		"unified": true, "": true, "context": true, "ndiff": true, "html": true, "bogus": false,
	}
	for mode, wantOK := range cases {
		_, err := parseDiffMode(mode)
		if (err == nil) != wantOK {
			t.Errorf("parseDiffMode(%q): err=%v, want ok=%v", mode, err, wantOK)
		}
	}
}

func TestDslHostWiresFetcherAndSubdomainCheckout(t *testing.T) {
	host := dslHost()
	if host.Fetcher == nil {
		t.Fatalf("expected dslHost to wire a VCSFetcher")
	}
	if host.SubdomainCheckout == nil {
		t.Fatalf("expected dslHost to wire a SubdomainCheckout")
	}
}
