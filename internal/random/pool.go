// Package random supplies puzzle generators with names and text content that
// never repeat within a session. Draws are without replacement: once a pool
// runs dry it fails loudly instead of silently handing out duplicates.
package random

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PoolExhaustedError is returned when a pool has no unique values left.
// Generators are expected to avoid this by construction (a dictionary larger
// than the number of draws a session can make).
type PoolExhaustedError struct {
	Pool string
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("random pool %q is exhausted, no unique values left", e.Pool)
}

var paragraphSplit = regexp.MustCompile(`\s*\n\s*\n`)

// Pool deduplicates random draws for one session. Not safe for concurrent
// use; the agent serves requests strictly in order so it never needs to be.
type Pool struct {
	names   []string
	content []string

	// Folders handed out by Folder() that other generators may reuse, so
	// puzzles can end up sharing directory structure.
	sharedFolders []string

	newFolderChance float64
}

// NewPool builds a pool from a name dictionary (one name per line, blank
// lines ignored, duplicates collapsed) and content sources split into
// paragraphs. With no sources the content pool falls back to a small built-in
// corpus, which exhausts like any other.
func NewPool(nameDictionary string, contentSources []string) *Pool {
	seen := make(map[string]bool)
	var names []string
	for _, line := range strings.Split(nameDictionary, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	var content []string
	for _, source := range contentSources {
		content = append(content, splitParagraphs(source)...)
	}
	if len(content) == 0 {
		content = append(content, builtinContent...)
	}

	return &Pool{names: names, content: content, newFolderChance: 0.5}
}

func splitParagraphs(source string) []string {
	var paragraphs []string
	for _, chunk := range paragraphSplit.Split(source, -1) {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, strings.TrimRight(line, " \t\r"))
			}
		}
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
		}
	}
	return paragraphs
}

// NamesLeft returns how many unique names remain.
func (p *Pool) NamesLeft() int { return len(p.names) }

// ContentLeft returns how many unique paragraphs remain.
func (p *Pool) ContentLeft() int { return len(p.content) }

// NextName draws a name usable as a file name. Each name is handed out at
// most once per session.
func (p *Pool) NextName() (string, error) {
	return draw("names", &p.names)
}

// NextContent draws one paragraph of text.
func (p *Pool) NextContent() (string, error) {
	return draw("content", &p.content)
}

// Paragraphs draws between min and max paragraphs (inclusive) and joins them
// into a block of text with a trailing newline.
func (p *Pool) Paragraphs(min, max int) (string, error) {
	if max < min {
		min, max = max, min
	}
	count := min
	if max > min {
		count += rand.IntN(max - min + 1)
	}
	paragraphs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		paragraph, err := p.NextContent()
		if err != nil {
			return "", err
		}
		paragraphs = append(paragraphs, paragraph)
	}
	return strings.Join(paragraphs, "\n\n") + "\n", nil
}

// File returns a path with a random name under parent that does not exist
// yet. ext is appended as a suffix when non-empty ("txt" becomes ".txt").
func (p *Pool) File(parent string, ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for {
		name, err := p.NextName()
		if err != nil {
			return "", err
		}
		path := filepath.Join(parent, name+ext)
		// A hardcoded file may happen to collide with a drawn name.
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
}

// Folder returns a path to a folder nested between minDepth and maxDepth
// levels under parent. Levels either reuse a folder previously handed out by
// Folder (so puzzles overlap in the filesystem) or add a new random one.
// The returned folder is not created.
func (p *Pool) Folder(parent string, minDepth, maxDepth int) (string, error) {
	if maxDepth < minDepth {
		minDepth, maxDepth = maxDepth, minDepth
	}
	depth := minDepth
	if maxDepth > minDepth {
		depth += rand.IntN(maxDepth - minDepth + 1)
	}

	folder := parent
	for i := 0; i < depth; i++ {
		var reusable []string
		for _, shared := range p.sharedFolders {
			if filepath.Dir(shared) == folder {
				reusable = append(reusable, shared)
			}
		}
		if len(reusable) == 0 || rand.Float64() <= p.newFolderChance {
			next, err := p.File(folder, "")
			if err != nil {
				return "", err
			}
			p.MarkShared(next)
			folder = next
		} else {
			folder = reusable[rand.IntN(len(reusable))]
		}
	}
	return folder, nil
}

// MarkShared lets later Folder calls nest inside the given folder. The folder
// does not need to exist yet.
func (p *Pool) MarkShared(folder string) {
	p.sharedFolders = append(p.sharedFolders, filepath.Clean(folder))
}

func draw(pool string, values *[]string) (string, error) {
	remaining := *values
	if len(remaining) == 0 {
		return "", &PoolExhaustedError{Pool: pool}
	}
	idx := rand.IntN(len(remaining))
	value := remaining[idx]
	remaining[idx] = remaining[len(remaining)-1]
	*values = remaining[:len(remaining)-1]
	return value, nil
}
