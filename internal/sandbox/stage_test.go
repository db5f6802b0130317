package sandbox

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func archiveEntries(t *testing.T, archive []byte) map[string]string {
	t.Helper()
	entries := map[string]string{}
	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read failed: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar entry read failed: %v", err)
		}
		entries[header.Name] = string(data)
	}
	return entries
}

func TestBuildStageArchive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "name_dictionary.txt"), "apple\nbanana\n")
	writeTestFile(t, filepath.Join(dir, "resources", "notes.txt"), "hello")
	writeTestFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main")

	archive, err := buildStageArchive(dir)
	if err != nil {
		t.Fatalf("buildStageArchive failed: %v", err)
	}

	entries := archiveEntries(t, archive)
	if entries["name_dictionary.txt"] != "apple\nbanana\n" {
		t.Errorf("Dictionary content wrong: %q", entries["name_dictionary.txt"])
	}
	if entries["resources/notes.txt"] != "hello" {
		t.Errorf("Nested file content wrong: %q", entries["resources/notes.txt"])
	}
	if _, ok := entries[".git/HEAD"]; ok {
		t.Error("Expected .git to be excluded")
	}
}

func TestBuildStageArchiveStageignore(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, ".stageignore"), "# local junk\n*.log\nscratch/\n")
	writeTestFile(t, filepath.Join(dir, "keep.txt"), "keep")
	writeTestFile(t, filepath.Join(dir, "debug.log"), "noise")
	writeTestFile(t, filepath.Join(dir, "scratch", "tmp.txt"), "noise")

	archive, err := buildStageArchive(dir)
	if err != nil {
		t.Fatalf("buildStageArchive failed: %v", err)
	}

	entries := archiveEntries(t, archive)
	if _, ok := entries["keep.txt"]; !ok {
		t.Error("Expected keep.txt in the archive")
	}
	for _, excluded := range []string{"debug.log", "scratch/tmp.txt", ".stageignore"} {
		if _, ok := entries[excluded]; ok {
			t.Errorf("Expected %s to be excluded", excluded)
		}
	}
}

func TestFileArchive(t *testing.T) {
	archive, err := fileArchive("control_secret", []byte("s3cret"), 0o600, 0, 0)
	if err != nil {
		t.Fatalf("fileArchive failed: %v", err)
	}

	tr := tar.NewReader(bytes.NewReader(archive))
	header, err := tr.Next()
	if err != nil {
		t.Fatalf("tar read failed: %v", err)
	}
	if header.Name != "control_secret" {
		t.Errorf("Expected name control_secret, got %s", header.Name)
	}
	if header.Mode != 0o600 {
		t.Errorf("Expected mode 0600, got %o", header.Mode)
	}
	if header.Uid != 0 || header.Gid != 0 {
		t.Errorf("Expected root ownership, got %d:%d", header.Uid, header.Gid)
	}
	data, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("tar entry read failed: %v", err)
	}
	if string(data) != "s3cret" {
		t.Errorf("Unexpected content: %q", data)
	}
}
