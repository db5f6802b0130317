package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tutorial.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func writeDataFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"puzzles": ["pack.cd"]}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Image != DefaultImage {
		t.Errorf("Expected image %s, got %s", DefaultImage, cfg.Image)
	}
	if cfg.User != DefaultUser {
		t.Errorf("Expected user %s, got %s", DefaultUser, cfg.User)
	}
	if cfg.Home != "/home/student" {
		t.Errorf("Expected home /home/student, got %s", cfg.Home)
	}
	if cfg.ShellName() != "bash" {
		t.Errorf("Expected shell name bash, got %s", cfg.ShellName())
	}
	if !cfg.UndoEnabled() {
		t.Error("Expected undo on by default")
	}
	if got := cfg.Templates(); len(got) != 1 || got[0] != "pack.cd" {
		t.Errorf("Expected templates [pack.cd], got %v", got)
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "names.txt", "alpha\nbeta\n")
	writeDataFile(t, dir, "content/story.txt", "Once upon a time.\n")
	writeDataFile(t, dir, "setup.sh", "#!/bin/bash\n")
	writeDataFile(t, dir, "motd.txt", "welcome\n")
	path := writeConfig(t, dir, `{
		"puzzles": ["pack.cd"],
		"name_dictionary": "names.txt",
		"content_sources": ["content/story.txt"],
		"setup_scripts": ["setup.sh"],
		"resources": {"motd.txt": "docs/motd.txt"},
		"transcript": "transcript.db"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(dir, "names.txt"); cfg.NameDictionary != want {
		t.Errorf("Expected dictionary %s, got %s", want, cfg.NameDictionary)
	}
	if want := filepath.Join(dir, "content/story.txt"); cfg.ContentSources[0] != want {
		t.Errorf("Expected source %s, got %s", want, cfg.ContentSources[0])
	}
	if want := filepath.Join(dir, "setup.sh"); cfg.SetupScripts[0] != want {
		t.Errorf("Expected script %s, got %s", want, cfg.SetupScripts[0])
	}
	if dest := cfg.Resources[filepath.Join(dir, "motd.txt")]; dest != "docs/motd.txt" {
		t.Errorf("Expected resource destination docs/motd.txt, got %q", dest)
	}
	// The transcript file does not exist yet; the path is only anchored.
	if want := filepath.Join(dir, "transcript.db"); cfg.Transcript != want {
		t.Errorf("Expected transcript %s, got %s", want, cfg.Transcript)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestLoadMissingDataFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"puzzles": ["pack.cd"], "name_dictionary": "gone.txt"}`)

	_, err := Load(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if !strings.Contains(cfgErr.Path, "gone.txt") {
		t.Errorf("Expected the error to name the missing file, got %q", cfgErr.Path)
	}
}

func TestLoadRejectsBadShape(t *testing.T) {
	cases := []struct {
		name   string
		config string
	}{
		{"not json", `puzzles:`},
		{"no puzzles", `{"image": "shellcamp:latest"}`},
		{"empty puzzles", `{"puzzles": []}`},
		{"unqualified template", `{"puzzles": ["cd"]}`},
		{"node without template", `{"puzzles": [{"children": ["pack.cd"]}]}`},
		{"unknown key", `{"puzzles": ["pack.cd"], "modules": ["x"]}`},
		{"relative home", `{"puzzles": ["pack.cd"], "home": "home/student"}`},
		{"empty shell", `{"puzzles": ["pack.cd"], "shell": []}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.config)
			_, err := Load(path)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
		})
	}
}

func TestForestShape(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"puzzles": [
			{"template": "pack.cd", "children": [
				"pack.grep",
				{"template": "pack.move", "children": ["pack.chmod"]}
			]},
			"pack.find"
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"pack.cd", "pack.grep", "pack.move", "pack.chmod", "pack.find"}
	got := cfg.Templates()
	if len(got) != len(want) {
		t.Fatalf("Expected %d templates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected template %s at %d, got %s", want[i], i, got[i])
		}
	}

	forest := cfg.Forest()
	if len(forest) != 2 {
		t.Fatalf("Expected 2 roots, got %d", len(forest))
	}
	if len(forest[0].Children) != 2 {
		t.Errorf("Expected 2 children under pack.cd, got %d", len(forest[0].Children))
	}
	if forest[0].Children[1].Children[0].Template != "pack.chmod" {
		t.Errorf("Expected pack.chmod under pack.move, got %s", forest[0].Children[1].Children[0].Template)
	}
	if forest[0].Puzzle != nil {
		t.Error("Expected a fresh forest to be ungenerated")
	}
}

func TestUndoDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"puzzles": ["pack.cd"], "undo": false}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UndoEnabled() {
		t.Error("Expected undo off")
	}
}

func TestSaveAndExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "tutorial.json")
	if Exists(path) {
		t.Fatal("Expected no config yet")
	}

	cfg := &Config{
		Puzzles: []PuzzleNode{
			{Template: "pack.cd", Children: []PuzzleNode{{Template: "pack.grep"}}},
			{Template: "pack.find"},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !Exists(path) {
		t.Fatal("Expected config to exist after Save")
	}

	// Leaf nodes are written back as bare template ids.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	if !strings.Contains(string(raw), `"pack.find"`) || strings.Contains(string(raw), `"template": "pack.find"`) {
		t.Errorf("Expected leaf nodes as bare strings, got:\n%s", raw)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := loaded.Templates()
	if len(got) != 3 || got[0] != "pack.cd" || got[1] != "pack.grep" || got[2] != "pack.find" {
		t.Errorf("Expected round-tripped templates, got %v", got)
	}
}
