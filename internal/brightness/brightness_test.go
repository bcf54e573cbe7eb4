package brightness

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadIntParsesTrimmedValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "value")
	if err := os.WriteFile(path, []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readInt(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestReadIntMissingFile(t *testing.T) {
	if _, err := readInt(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
