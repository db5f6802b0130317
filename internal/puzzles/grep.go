package puzzles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

const grepSecret = "(secret key)"
const grepHint = "There's a command to search lots of files."

func registerGrep(reg *puzzle.Registry) error {
	if err := reg.RegisterGenerator("grep.find", grepFind); err != nil {
		return err
	}
	return reg.RegisterChecker("grep.path", []string{puzzle.ParamFlag}, grepPathChecker)
}

// grepFind hides a marker in one file inside a pile of look-alikes under
// ~/bulk and asks for its path. Tutorials that use it should ship a name
// dictionary comfortably larger than the default.
func grepFind(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	bulk := filepath.Join(ctx.Home, "bulk")

	secretFolder, err := ctx.Rand.Folder(bulk, 2, 4)
	if err != nil {
		return nil, err
	}
	secret, err := ctx.Rand.File(secretFolder, "txt")
	if err != nil {
		return nil, err
	}
	if err := writeDeep(secret, grepSecret+"\n"); err != nil {
		return nil, err
	}

	for i := 0; i < 12; i++ {
		folder, err := ctx.Rand.Folder(bulk, 2, 4)
		if err != nil {
			return nil, err
		}
		decoy, err := ctx.Rand.File(folder, "txt")
		if err != nil {
			return nil, err
		}
		content, err := ctx.Rand.Paragraphs(1, 3)
		if err != nil {
			return nil, err
		}
		if err := writeDeep(decoy, content); err != nil {
			return nil, err
		}
	}

	checker, err := ctx.Checker("grep.path", grepPathOpts{Target: secret})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Find the path of the file that contains %q", grepSecret)
	return puzzle.NewScored(question, checker, 3)
}

type grepPathOpts struct {
	Target string `json:"target"`
}

// grepPathChecker accepts the secret file's path, absolute or relative to the
// home directory. Anything else earns a nudge toward grep.
func grepPathChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts grepPathOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		flag, _ := args[puzzle.ParamFlag].(string)
		submitted := strings.TrimSpace(flag)
		if submitted == "" {
			return grepHint, nil
		}
		path := submitted
		if !filepath.IsAbs(path) {
			// The checker runs with the home directory as working directory.
			abs, err := filepath.Abs(path)
			if err != nil {
				return grepHint, nil
			}
			path = abs
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return grepHint, nil
		}
		target, err := filepath.EvalSymlinks(opts.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", opts.Target, err)
		}
		if resolved == target {
			return true, nil
		}
		return grepHint, nil
	}, nil
}

// writeDeep writes a file, creating its parent folders.
func writeDeep(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}
