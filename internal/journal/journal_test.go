package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndFinalizeKeepsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !j.Empty() {
		t.Fatal("new journal should be empty")
	}
	if err := j.Append(7, "a,b"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if j.Empty() {
		t.Fatal("journal should not be empty after Append")
	}
	if err := j.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fileName)); err != nil {
		t.Errorf("expected journal file to remain: %v", err)
	}
}

func TestFinalizeRemovesEmpty(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fileName)); !os.IsNotExist(err) {
		t.Errorf("expected journal file to be removed, stat err = %v", err)
	}
}

func TestAppendTracksEntryCount(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.Append(1, "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(2, "y,z"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if j.EntryCount() != 2 {
		t.Fatalf("EntryCount() = %d, want 2", j.EntryCount())
	}
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "1,x\n2,y,z\n"
	if string(data) != want {
		t.Errorf("journal contents = %q, want %q", string(data), want)
	}
}
