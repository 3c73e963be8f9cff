package filesystem

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_ReadFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.xml")
	expected := "<root/>"
	os.WriteFile(filePath, []byte(expected), 0644)

	fs := NewOSFileSystem()

	data, err := fs.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != expected {
		t.Errorf("ReadFile() = %q, want %q", string(data), expected)
	}
}

func TestOSFileSystem_ReadFile_Nonexistent(t *testing.T) {
	fs := NewOSFileSystem()

	_, err := fs.ReadFile(filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil {
		t.Error("ReadFile(nonexistent) should return error")
	}
}

func TestOSFileSystem_OpenFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.xml")
	os.WriteFile(filePath, []byte("<a/>"), 0644)

	fs := NewOSFileSystem()
	rc, err := fs.OpenFile(filePath)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "<a/>" {
		t.Errorf("OpenFile() content = %q", string(data))
	}
}

func TestOSFileSystem_Stat_File(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.xml")
	os.WriteFile(filePath, []byte("<a/>"), 0644)

	fs := NewOSFileSystem()

	info, err := fs.Stat(filePath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.IsDir() {
		t.Error("Stat(file) should not be a directory")
	}
	if info.Name() != "test.xml" {
		t.Errorf("Stat().Name() = %q, want %q", info.Name(), "test.xml")
	}
}

func TestOSFileSystem_Stat_Nonexistent(t *testing.T) {
	fs := NewOSFileSystem()

	_, err := fs.Stat(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("Stat(nonexistent) should return error")
	}
}

func TestOSFileSystem_ReadDir_Sorted(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.xml"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "a.xml"), nil, 0644)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)

	fs := NewOSFileSystem()
	entries, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	want := []string{"a.xml", "b.xml", "sub"}
	if len(entries) != len(want) {
		t.Fatalf("ReadDir() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Name() != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Name(), want[i])
		}
	}
}

func TestOSFileSystem_Remove(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.Mkdir(sub, 0755)
	filePath := filepath.Join(sub, "a.xml")
	os.WriteFile(filePath, nil, 0644)

	fs := NewOSFileSystem()

	if err := fs.Remove(sub); err == nil {
		t.Error("Remove(non-empty dir) should return error")
	}
	if err := fs.Remove(filePath); err != nil {
		t.Fatalf("Remove(file) error = %v", err)
	}
	if err := fs.Remove(sub); err != nil {
		t.Fatalf("Remove(empty dir) error = %v", err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Error("directory should be gone")
	}
}
