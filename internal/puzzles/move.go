package puzzles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

func registerMove(reg *puzzle.Registry) error {
	if err := reg.RegisterGenerator("move.rename", moveRename); err != nil {
		return err
	}
	return reg.RegisterChecker("move.renamed", nil, renamedChecker)
}

// moveRename drops a file in the home directory and asks for it under a new
// name, content intact.
func moveRename(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	from, err := ctx.Rand.File(ctx.Home, "txt")
	if err != nil {
		return nil, err
	}
	content, err := ctx.Rand.Paragraphs(1, 2)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(from, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", from, err)
	}
	to, err := ctx.Rand.File(ctx.Home, "txt")
	if err != nil {
		return nil, err
	}

	checker, err := ctx.Checker("move.renamed", renamedOpts{From: from, To: to, Content: content})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Rename %q to %q", filepath.Base(from), filepath.Base(to))
	return puzzle.New(question, checker)
}

type renamedOpts struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// renamedChecker passes once the old path is gone and the new path holds the
// original content, so an empty re-created file does not count.
func renamedChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts renamedOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		if _, err := os.Lstat(opts.From); !os.IsNotExist(err) {
			return false, nil
		}
		data, err := os.ReadFile(opts.To)
		if err != nil {
			return false, nil
		}
		return string(data) == opts.Content, nil
	}, nil
}
