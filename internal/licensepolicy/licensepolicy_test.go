package licensepolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/license"
)

const sampleTOML = `
[[not_affected_by]]
subject = "app"
gpl_checkout = "gpl-lib"

nothing_builds_against = ["vendored-tool"]
`

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "license_policy.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesExceptionsAndNothingBuildsAgainst(t *testing.T) {
	path := writePolicy(t, sampleTOML)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.NotAffectedBy) != 1 || p.NotAffectedBy[0].Subject != "app" {
		t.Fatalf("got %+v", p.NotAffectedBy)
	}
	if len(p.NothingBuildsAgainst) != 1 || p.NothingBuildsAgainst[0] != "vendored-tool" {
		t.Fatalf("got %+v", p.NothingBuildsAgainst)
	}
}

func TestApplyRegistersExceptionAgainstRegistry(t *testing.T) {
	path := writePolicy(t, sampleTOML)
	reg := license.NewRegistry()
	if err := LoadAndApply(path, reg); err != nil {
		t.Fatalf("LoadAndApply: %v", err)
	}

	rs := depend.NewRuleSet()
	gplLib := label.New(label.Checkout, "gpl-lib", "", label.CheckedOut, "")
	app := label.New(label.Checkout, "app", "", label.CheckedOut, "")
	rs.Add(depend.NewRule(app, nil, gplLib))
	reg.SetLicense(gplLib, license.License{Name: "GPL-2.0", Category: license.GPL})

	if got := reg.ImplicitGPL(rs); len(got) != 0 {
		t.Fatalf("expected app to be exempted, got %v", got)
	}
}

func TestLoadAndApplyToleratesMissingFile(t *testing.T) {
	reg := license.NewRegistry()
	if err := LoadAndApply(filepath.Join(t.TempDir(), "absent.toml"), reg); err != nil {
		t.Fatalf("LoadAndApply on missing file: %v", err)
	}
}

func TestApplyRejectsMalformedLabel(t *testing.T) {
	path := writePolicy(t, `
[[not_affected_by]]
subject = ""
gpl_checkout = "gpl-lib"
`)
	reg := license.NewRegistry()
	if err := LoadAndApply(path, reg); err == nil {
		t.Fatalf("expected error for malformed subject label")
	}
}
