package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "file.txt")
	writeFile(t, src, "hello")

	dst := filepath.Join(dir, "b", "file.txt")
	if err := CopyFile(src, dst, false); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "hello" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestRecursivelyCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "b")

	dst := filepath.Join(dir, "dst")
	if err := RecursivelyCopy(src, dst); err != nil {
		t.Fatalf("RecursivelyCopy: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	if err != nil || string(got) != "b" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestCopyWithoutSkipsExcluded(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "keep.txt"), "keep")
	writeFile(t, filepath.Join(src, ".git", "config"), "ignored")

	dst := filepath.Join(dir, "dst")
	if err := CopyWithout(src, dst, []string{".git"}); err != nil {
		t.Fatalf("CopyWithout: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "keep.txt")); err != nil {
		t.Fatalf("expected keep.txt copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Fatalf("expected .git excluded, stat err=%v", err)
	}
}
