package tutorial

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildStagingDefaults(t *testing.T) {
	cfg := testConfig(t, `{"puzzles": ["pack.move"]}`)
	staging, err := buildStaging(cfg)
	if err != nil {
		t.Fatalf("buildStaging failed: %v", err)
	}
	defer os.RemoveAll(staging.dir)

	if staging.dictionary != "name_dictionary.txt" {
		t.Errorf("Unexpected dictionary path: %s", staging.dictionary)
	}
	data, err := os.ReadFile(filepath.Join(staging.dir, staging.dictionary))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	// Without a configured dictionary the built-in word list is staged.
	if len(strings.Fields(string(data))) < 100 {
		t.Errorf("Expected the built-in dictionary, got %d words", len(strings.Fields(string(data))))
	}
	if staging.sources != nil || staging.scripts != nil || staging.resources != nil {
		t.Error("Expected no staged groups for a bare config")
	}
}

func TestBuildStagingLaysOutGroups(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		return path
	}
	write("names.txt", "apple\nbanana\n")
	write("story.txt", "Once upon a time.")
	write("poems.txt", "Roses are red.")
	write("setup.sh", "#!/bin/sh\n")
	write("motd.txt", "Welcome!")

	cfg := testConfig(t, `{
		"puzzles": ["pack.move"],
		"name_dictionary": "`+filepath.ToSlash(filepath.Join(dir, "names.txt"))+`",
		"content_sources": [
			"`+filepath.ToSlash(filepath.Join(dir, "story.txt"))+`",
			"`+filepath.ToSlash(filepath.Join(dir, "poems.txt"))+`"
		],
		"setup_scripts": ["`+filepath.ToSlash(filepath.Join(dir, "setup.sh"))+`"],
		"resources": {"`+filepath.ToSlash(filepath.Join(dir, "motd.txt"))+`": "docs/motd.txt"}
	}`)

	staging, err := buildStaging(cfg)
	if err != nil {
		t.Fatalf("buildStaging failed: %v", err)
	}
	defer os.RemoveAll(staging.dir)

	data, err := os.ReadFile(filepath.Join(staging.dir, staging.dictionary))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "apple\nbanana\n" {
		t.Errorf("Unexpected dictionary content: %q", data)
	}

	// Index prefixes keep config order under a lexical sort.
	wantSources := []string{"content/00_story.txt", "content/01_poems.txt"}
	if len(staging.sources) != 2 || staging.sources[0] != wantSources[0] || staging.sources[1] != wantSources[1] {
		t.Errorf("Expected sources %v, got %v", wantSources, staging.sources)
	}
	if len(staging.scripts) != 1 || staging.scripts[0] != "scripts/00_setup.sh" {
		t.Errorf("Unexpected scripts: %v", staging.scripts)
	}
	if dest, ok := staging.resources["resources/00_motd.txt"]; !ok || dest != "docs/motd.txt" {
		t.Errorf("Unexpected resources: %v", staging.resources)
	}

	for _, rel := range append(append([]string{}, staging.sources...), staging.scripts...) {
		if _, err := os.Stat(filepath.Join(staging.dir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("Expected %s to be staged: %v", rel, err)
		}
	}
}
