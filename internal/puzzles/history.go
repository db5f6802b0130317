package puzzles

import (
	"encoding/json"
	"strings"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

func registerHistory(reg *puzzle.Registry) error {
	if err := reg.RegisterGenerator("history.first", historyFirst); err != nil {
		return err
	}
	return reg.RegisterChecker("history.first",
		[]string{puzzle.ParamHistory, puzzle.ParamFlag}, firstCommandChecker)
}

// historyFirst quizzes the student on their own shell history. It touches
// nothing on disk.
func historyFirst(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	checker, err := ctx.Checker("history.first", struct{}{})
	if err != nil {
		return nil, err
	}
	question := "What was the first command you ran in this shell? " +
		"Submit it as the answer to this puzzle."
	return puzzle.New(question, checker)
}

func firstCommandChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	return func(args map[string]any) (any, error) {
		history, _ := args[puzzle.ParamHistory].([]string)
		if len(history) == 0 {
			return "Your shell has not recorded any commands yet.", nil
		}
		flag, _ := args[puzzle.ParamFlag].(string)
		if strings.TrimSpace(flag) == "" {
			return "Submit the command as your answer.", nil
		}
		return strings.TrimSpace(flag) == strings.TrimSpace(history[0]), nil
	}, nil
}
