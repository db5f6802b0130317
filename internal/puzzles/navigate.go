package puzzles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

func registerNavigate(reg *puzzle.Registry) error {
	if err := reg.RegisterGenerator("navigate.cd", navigateCd); err != nil {
		return err
	}
	return reg.RegisterChecker("navigate.at", []string{puzzle.ParamCwd}, atChecker)
}

// navigateCd creates a nested folder and asks the student to move into it.
func navigateCd(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	target, err := ctx.Rand.Folder(ctx.Home, 2, 3)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", target, err)
	}

	checker, err := ctx.Checker("navigate.at", atOpts{Path: target})
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(ctx.Home, target)
	if err != nil {
		rel = target
	}
	question := fmt.Sprintf("Change your working directory to %q", rel)
	return puzzle.New(question, checker)
}

type atOpts struct {
	Path string `json:"path"`
}

// atChecker passes while the student's shell sits in the target directory.
func atChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts atOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		cwd, _ := args[puzzle.ParamCwd].(string)
		if cwd == "" {
			return "Your shell is not visible yet; run a command and try again.", nil
		}
		return filepath.Clean(cwd) == filepath.Clean(opts.Path), nil
	}, nil
}
