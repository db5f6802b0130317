// Package config loads and validates tutorial definitions: which image and
// student account the sandbox uses, the puzzle dependency forest, and the
// data files generators draw from. Definitions are JSON documents; paths in
// them are relative to the file's own directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// Defaults applied by Load when the config leaves a field out.
const (
	DefaultImage = "shellcamp:latest"
	DefaultUser  = "student"
)

// Config is one resolved tutorial definition. After Load every path field is
// absolute.
type Config struct {
	// Image is the sandbox image reference.
	Image string `json:"image,omitempty"`
	// User is the student account inside the image.
	User string `json:"user,omitempty"`
	// Home is the student's home directory. Defaults to /home/<user>.
	Home string `json:"home,omitempty"`
	// Shell is the student's interactive shell command. Defaults to bash.
	Shell []string `json:"shell,omitempty"`
	// Puzzles is the dependency forest of puzzle templates. A node is either
	// a bare template id or {"template": ..., "children": [...]}.
	Puzzles []PuzzleNode `json:"puzzles"`
	// NameDictionary is a file with one file name per line. Empty means the
	// built-in dictionary.
	NameDictionary string `json:"name_dictionary,omitempty"`
	// ContentSources are text files the content pool splits into paragraphs.
	ContentSources []string `json:"content_sources,omitempty"`
	// Resources maps host files to sandbox destinations. Relative
	// destinations land in the student's home.
	Resources map[string]string `json:"resources,omitempty"`
	// SetupScripts are bash scripts run inside the sandbox, as the student,
	// before puzzle generation.
	SetupScripts []string `json:"setup_scripts,omitempty"`
	// Undo toggles snapshot undo. Left out it is on.
	Undo *bool `json:"undo,omitempty"`
	// Transcript is the SQLite file session transcripts are recorded to.
	// Empty disables recording.
	Transcript string `json:"transcript,omitempty"`
}

// PuzzleNode is one node of the puzzle template forest.
type PuzzleNode struct {
	Template string
	Children []PuzzleNode
}

type puzzleNodeJSON struct {
	Template string       `json:"template"`
	Children []PuzzleNode `json:"children,omitempty"`
}

// UnmarshalJSON accepts either a bare template id or a node object.
func (n *PuzzleNode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		n.Template = name
		n.Children = nil
		return nil
	}
	var obj puzzleNodeJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Template = obj.Template
	n.Children = obj.Children
	return nil
}

// MarshalJSON writes leaf nodes back as bare template ids.
func (n PuzzleNode) MarshalJSON() ([]byte, error) {
	if len(n.Children) == 0 {
		return json.Marshal(n.Template)
	}
	return json.Marshal(puzzleNodeJSON{Template: n.Template, Children: n.Children})
}

// Load reads, validates and resolves the tutorial definition at path.
// Validation failures come back as ConfigError.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, NewConfigError(abs, err.Error())
	}
	if err := validateSchema(data); err != nil {
		return nil, NewConfigError(abs, err.Error())
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, NewConfigError(abs, err.Error())
	}

	cfg.applyDefaults()
	if err := cfg.resolvePaths(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func (c *Config) applyDefaults() {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Home == "" {
		c.Home = "/home/" + c.User
	}
	if len(c.Shell) == 0 {
		c.Shell = []string{"bash"}
	}
}

// resolvePaths makes every host path absolute relative to dir and checks the
// referenced files exist, so a broken definition fails before any sandbox
// work starts.
func (c *Config) resolvePaths(dir string) error {
	resolve := func(path string) (string, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", NewConfigError(path, err.Error())
		}
		return path, nil
	}

	var err error
	if c.NameDictionary != "" {
		if c.NameDictionary, err = resolve(c.NameDictionary); err != nil {
			return err
		}
	}
	for i, source := range c.ContentSources {
		if c.ContentSources[i], err = resolve(source); err != nil {
			return err
		}
	}
	for i, script := range c.SetupScripts {
		if c.SetupScripts[i], err = resolve(script); err != nil {
			return err
		}
	}
	if len(c.Resources) > 0 {
		resolved := make(map[string]string, len(c.Resources))
		for host, dest := range c.Resources {
			abs, err := resolve(host)
			if err != nil {
				return err
			}
			resolved[abs] = dest
		}
		c.Resources = resolved
	}
	if c.Transcript != "" && !filepath.IsAbs(c.Transcript) {
		// The transcript is created on first use; only anchor the path.
		c.Transcript = filepath.Join(dir, c.Transcript)
	}
	return nil
}

// UndoEnabled reports whether snapshot undo is on. It is on unless the config
// turns it off.
func (c *Config) UndoEnabled() bool {
	if c.Undo == nil {
		return true
	}
	return *c.Undo
}

// ShellName returns the process name of the configured shell, used to find
// the student's shell inside the sandbox.
func (c *Config) ShellName() string {
	return filepath.Base(c.Shell[0])
}

// Templates returns every template id in the forest, in generation order
// (preorder).
func (c *Config) Templates() []string {
	var names []string
	var walk func(nodes []PuzzleNode)
	walk = func(nodes []PuzzleNode) {
		for _, n := range nodes {
			names = append(names, n.Template)
			walk(n.Children)
		}
	}
	walk(c.Puzzles)
	return names
}

// Forest builds a fresh ungenerated puzzle forest matching the configured
// template tree.
func (c *Config) Forest() puzzle.Forest {
	var build func(nodes []PuzzleNode) []*puzzle.Tree
	build = func(nodes []PuzzleNode) []*puzzle.Tree {
		trees := make([]*puzzle.Tree, len(nodes))
		for i, n := range nodes {
			trees[i] = &puzzle.Tree{Template: n.Template, Children: build(n.Children)}
		}
		return trees
	}
	return puzzle.Forest(build(c.Puzzles))
}
