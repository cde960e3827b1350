package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOSFileSystem_ExistsAndRead(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_dump_xyz.txt") {
		t.Error("expected nonexistent file to not exist")
	}

	data, err := fs.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestOSFileSystem_GlobSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.hex"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("dd66"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "d.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := OSFileSystem{}.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Glob mismatch (-got +want):\n%s", diff)
	}
}

func TestOSFileSystem_WriteCreateMkdir(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "nested")

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := fs.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	w, err := fs.Create(filepath.Join(dir, "b.png"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := fs.Stat(filepath.Join(dir, "b.png"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("DD 66 00 00")
	if err := mfs.WriteFile("/dumps/a.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/dumps/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// returned slice is a copy
	data[0] = 'X'
	again, _ := mfs.ReadFile("/dumps/a.txt")
	if again[0] != 'D' {
		t.Error("ReadFile should return a copy")
	}

	if _, err := mfs.ReadFile("/dumps/missing.txt"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_CreateAndStat(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/report.html")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("<html>")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/out/report.html")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 6 || info.IsDir() {
		t.Errorf("unexpected stat: size=%d dir=%v", info.Size(), info.IsDir())
	}
}

func TestMemoryFileSystem_MkdirAllAndExists(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(p) {
			t.Errorf("expected %s to exist", p)
		}
		info, err := mfs.Stat(p)
		if err != nil || !info.IsDir() {
			t.Errorf("expected %s to be a directory (err=%v)", p, err)
		}
	}
	if mfs.Exists("/a/x") {
		t.Error("unexpected /a/x")
	}
}

func TestMemoryFileSystem_GlobAndFiles(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/in/z.txt", "/in/a.txt", "/in/b.hex", "/out/r.json"} {
		if err := mfs.WriteFile(name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := mfs.Glob("/in/*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, []string{"/in/a.txt", "/in/z.txt"}); diff != "" {
		t.Errorf("Glob mismatch (-got +want):\n%s", diff)
	}

	if _, err := mfs.Glob("[bad"); err == nil {
		t.Error("expected error for malformed pattern")
	}

	if diff := cmp.Diff(mfs.Files("/out"), []string{"/out/r.json"}); diff != "" {
		t.Errorf("Files mismatch (-got +want):\n%s", diff)
	}
}
