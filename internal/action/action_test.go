package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/repo"
)

type fakeBuilder struct {
	root      string
	justPrint bool
}

func (f fakeBuilder) RootPath() string { return f.root }
func (f fakeBuilder) JustPrint() bool  { return f.justPrint }

func TestMakeBuildLabelRunsMappedCommand(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src", "hello")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(srcDir, "built.marker")

	m := Make{
		SourceDir: "hello",
		Commands:  map[string]string{label.Built: "touch built.marker"},
	}
	target := label.New(label.Package, "hello", "tools", label.Built, "")

	if err := m.BuildLabel(context.Background(), fakeBuilder{root: root}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected make command to have run: %v", err)
	}
}

func TestMakeBuildLabelJustPrintDoesNotExecute(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src", "hello")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(srcDir, "built.marker")

	m := Make{SourceDir: "hello", Commands: map[string]string{label.Built: "touch built.marker"}}
	target := label.New(label.Package, "hello", "tools", label.Built, "")

	if err := m.BuildLabel(context.Background(), fakeBuilder{root: root, justPrint: true}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}
	if _, err := os.Stat(marker); err == nil {
		t.Fatalf("just-print mode should not have executed the command")
	}
}

func TestMakeBuildLabelUnknownTagIsUnsupported(t *testing.T) {
	m := Make{SourceDir: "hello"}
	target := label.New(label.Package, "hello", "tools", label.Deployed, "")
	if err := m.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir()}, target); err == nil {
		t.Fatalf("expected an error for an unmapped tag")
	}
}

func TestDistributePackageCopiesInstallTree(t *testing.T) {
	root := t.TempDir()
	installDir := filepath.Join(root, "install", "tools")
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(installDir, "bin.txt"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := DistributePackage{RoleDir: "tools", DistributionName: "release"}
	target := label.New(label.Package, "hello", "tools", label.Deployed, "")
	if err := d.BuildLabel(context.Background(), fakeBuilder{root: root}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "deploy", "release", "tools", "bin.txt"))
	if err != nil {
		t.Fatalf("expected distributed file: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
}

type recordingFetcher struct {
	checkedOut, pulled, merged bool
	dest                       string
}

func (r *recordingFetcher) Checkout(ctx context.Context, repository repo.Repository, destDir string) error {
	r.checkedOut = true
	r.dest = destDir
	return nil
}
func (r *recordingFetcher) Pull(ctx context.Context, repository repo.Repository, destDir string) error {
	r.pulled = true
	return nil
}
func (r *recordingFetcher) Merge(ctx context.Context, repository repo.Repository, destDir string) error {
	r.merged = true
	return nil
}

func TestCheckoutActionDispatchesOnTag(t *testing.T) {
	fetcher := &recordingFetcher{}
	c := Checkout{
		Repo:    repo.Repository{VCS: "git", BaseURL: "git://example.com", RelativePath: "hello"},
		DestDir: "/tmp/hello",
		Fetcher: fetcher,
	}

	checkedOutTarget := label.New(label.Checkout, "hello", "", label.CheckedOut, "")
	if err := c.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir()}, checkedOutTarget); err != nil {
		t.Fatalf("BuildLabel(checked_out): %v", err)
	}
	if !fetcher.checkedOut {
		t.Fatalf("expected Checkout to have been called")
	}

	pulledTarget := label.New(label.Checkout, "hello", "", label.Pulled, "")
	if err := c.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir()}, pulledTarget); err != nil {
		t.Fatalf("BuildLabel(pulled): %v", err)
	}
	if !fetcher.pulled {
		t.Fatalf("expected Pull to have been called")
	}
}

func TestCheckoutActionJustPrintSkipsFetcher(t *testing.T) {
	fetcher := &recordingFetcher{}
	c := Checkout{Repo: repo.Repository{VCS: "git"}, DestDir: "/tmp/hello", Fetcher: fetcher}
	target := label.New(label.Checkout, "hello", "", label.CheckedOut, "")
	if err := c.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir(), justPrint: true}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}
	if fetcher.checkedOut {
		t.Fatalf("just-print mode should not have invoked the fetcher")
	}
}

func TestDebExtractOnlyRealisesInstalledTag(t *testing.T) {
	d := DebExtract{PackagePath: "hello.deb", RoleDir: "tools"}
	target := label.New(label.Package, "hello", "tools", label.Built, "")
	if err := d.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir()}, target); err == nil {
		t.Fatalf("expected an error for a non-installed tag")
	}
}

func TestDebExtractJustPrintDoesNotInvokeDpkg(t *testing.T) {
	d := DebExtract{PackagePath: "hello.deb", RoleDir: "tools"}
	target := label.New(label.Package, "hello", "tools", label.Installed, "")
	if err := d.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir(), justPrint: true}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}
}

func TestCPIODeploymentJustPrintDoesNotInvokeCpio(t *testing.T) {
	c := CPIODeployment{Roles: []string{"tools"}, ArchivePath: "rootfs.cpio"}
	target := label.New(label.Deployment, "image", "", label.Deployed, "")
	if err := c.BuildLabel(context.Background(), fakeBuilder{root: t.TempDir(), justPrint: true}, target); err != nil {
		t.Fatalf("BuildLabel: %v", err)
	}
}

func TestActionNamesAndMasterRequirement(t *testing.T) {
	cases := []struct {
		a             Action
		name          string
		requireMaster bool
	}{
		{Make{}, "make", false},
		{DistributePackage{}, "distribute-package", false},
		{DistributeCheckout{}, "distribute-checkout", false},
		{Checkout{}, "checkout-from-vcs", false},
		{DebExtract{}, "deb-extract", false},
		{CPIODeployment{}, "cpio-deployment", true},
	}
	for _, c := range cases {
		if c.a.Name() != c.name {
			t.Errorf("got name %q, want %q", c.a.Name(), c.name)
		}
		if c.a.RequiresMaster() != c.requireMaster {
			t.Errorf("%s: RequiresMaster() = %v, want %v", c.name, c.a.RequiresMaster(), c.requireMaster)
		}
	}
}
