package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// solve grades one attempt: bind the parameters the checker declared, run
// it, classify the result. The solved flag moves only on success; a solved
// puzzle never becomes unsolved by a later failed attempt.
func (a *Agent) solve(id string, flag *string) (protocol.SolveResult, error) {
	p, ok := a.puzzles[id]
	if !ok {
		return protocol.SolveResult{}, fmt.Errorf("no puzzle with id %q", id)
	}
	if p.Checker == nil || p.Checker.Fn == nil {
		return protocol.SolveResult{}, &puzzle.CheckerUnavailableError{ID: id}
	}

	args := make(map[string]any)
	if p.Declares(puzzle.ParamCwd) {
		cwd, err := a.studentCwd()
		if err != nil {
			return protocol.SolveResult{}, err
		}
		args[puzzle.ParamCwd] = cwd
	}
	if p.Declares(puzzle.ParamFlag) {
		submitted := ""
		if flag != nil {
			submitted = *flag
		}
		args[puzzle.ParamFlag] = submitted
	}
	if p.Declares(puzzle.ParamHistory) {
		history, err := a.history()
		if err != nil {
			return protocol.SolveResult{}, err
		}
		args[puzzle.ParamHistory] = history
	}
	if p.Declares(puzzle.ParamFS) {
		args[puzzle.ParamFS] = os.DirFS("/")
	}

	result, err := a.runChecker(p, args)
	if err != nil {
		return protocol.SolveResult{}, err
	}
	solved, feedback, err := puzzle.Classify(result)
	if err != nil {
		return protocol.SolveResult{}, protocol.NewUserCodeError(
			fmt.Sprintf("checker for %s misbehaved", p.Template), err.Error())
	}
	if solved {
		p.Solved = true
	}
	return protocol.SolveResult{Solved: solved, Feedback: feedback}, nil
}

// runChecker invokes the checker with home as the working directory,
// containing panics the same way generator panics are contained.
func (a *Agent) runChecker(p *puzzle.Puzzle, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = protocol.NewUserCodeError(
				fmt.Sprintf("checker for %s failed", p.Template),
				fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()))
		}
	}()

	if err := os.Chdir(a.home); err != nil {
		return nil, fmt.Errorf("failed to enter %s: %w", a.home, err)
	}
	result, err = p.Checker.Fn(args)
	if err != nil {
		return nil, protocol.NewUserCodeError(fmt.Sprintf("checker for %s failed", p.Template), err.Error())
	}
	return result, nil
}

// history returns the student's shell history, oldest first. A shell that
// has not written history yet reads as empty, not as an error.
func (a *Agent) history() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(a.home, ".bash_history"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shell history: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
