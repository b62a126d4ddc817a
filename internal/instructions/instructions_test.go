package instructions

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSpecResolveGlobDirectChildren(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "bin", "a.sh"), "")
	mustWrite(t, filepath.Join(dir, "bin", "b.sh"), "")
	mustWrite(t, filepath.Join(dir, "bin", "nested", "c.sh"), "")

	fs := FileSpec{Base: "bin", Pattern: "*.sh", AllUnder: false}
	got, err := fs.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"a.sh", "b.sh"}
	assertStringSlice(t, got, want)
}

func TestFileSpecResolveAllUnder(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "bin", "a.sh"), "")
	mustWrite(t, filepath.Join(dir, "bin", "nested", "c.sh"), "")

	fs := FileSpec{Base: "bin", Pattern: "*.sh", AllUnder: true}
	got, err := fs.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"a.sh", filepath.Join("nested", "c.sh")}
	assertStringSlice(t, got, want)
}

func TestFileSpecResolveRegex(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "etc", "passwd"), "")
	mustWrite(t, filepath.Join(dir, "etc", "shadow"), "")

	fs := FileSpec{Base: "etc", Pattern: `^(passwd|group)$`, AllRegex: true}
	got, err := fs.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertStringSlice(t, got, []string{"passwd"})
}

func TestDocumentLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "_default.xml")

	doc := &Document{
		Priority: 50,
		Instructions: []Instruction{
			{Kind: "chmod", Base: "bin", Pattern: "*.sh", Mode: "0755"},
		},
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Priority != 50 || len(loaded.Instructions) != 1 || loaded.Instructions[0].Mode != "0755" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestApplyChmod(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bin", "run.sh")
	mustWrite(t, target, "#!/bin/sh\n")

	doc := &Document{Instructions: []Instruction{
		{Kind: "chmod", Base: "bin", Pattern: "*.sh", Mode: "0644"},
	}}
	if err := Apply(doc, dir); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("got mode %v want 0644", info.Mode().Perm())
	}
}

func TestApplyUnknownKindIsGiveUp(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "bin", "run.sh"), "")
	doc := &Document{Instructions: []Instruction{
		{Kind: "symlink", Base: "bin", Pattern: "*.sh"},
	}}
	if err := Apply(doc, dir); err == nil {
		t.Fatalf("expected error for unknown instruction kind")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertStringSlice(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
