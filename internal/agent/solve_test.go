package agent

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// newSolveAgent skips the wire setup and wires a configured agent directly,
// which keeps the solve tests focused on grading.
func newSolveAgent(t *testing.T) *Agent {
	t.Helper()
	a, home := newTestAgent(t)
	a.home = home
	if err := a.lookupUser(currentUser(t)); err != nil {
		t.Fatalf("lookupUser failed: %v", err)
	}
	return a
}

func addPuzzle(t *testing.T, a *Agent, id string, checker *puzzle.Checker) *puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.New("Test puzzle", checker)
	if err != nil {
		t.Fatalf("puzzle.New failed: %v", err)
	}
	p.ID = id
	p.Template = "test.puzzle"
	a.puzzles[id] = p
	return p
}

func TestSolveMarksSolvedOnlyOnTrue(t *testing.T) {
	a := newSolveAgent(t)
	accept := false
	p := addPuzzle(t, a, "p1", puzzle.Inline(nil, func(args map[string]any) (any, error) {
		return accept, nil
	}))

	result, err := a.solve("p1", nil)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if result.Solved || result.Feedback != "Incorrect!" {
		t.Errorf("Expected a failed attempt, got %+v", result)
	}
	if p.Solved {
		t.Error("Expected the puzzle to stay unsolved")
	}

	accept = true
	result, err = a.solve("p1", nil)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !result.Solved || result.Feedback != "Correct!" {
		t.Errorf("Expected a solved attempt, got %+v", result)
	}
	if !p.Solved {
		t.Error("Expected the puzzle to be marked solved")
	}

	// A later failed attempt reports failure but never unsolves the puzzle.
	accept = false
	result, err = a.solve("p1", nil)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if result.Solved {
		t.Error("Expected the attempt itself to fail")
	}
	if !p.Solved {
		t.Error("Expected the solved flag to survive a failed re-attempt")
	}
}

func TestSolveStringFeedback(t *testing.T) {
	a := newSolveAgent(t)
	addPuzzle(t, a, "p1", puzzle.Inline(nil, func(args map[string]any) (any, error) {
		return "Close, but look at the file extension.", nil
	}))

	result, err := a.solve("p1", nil)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if result.Solved {
		t.Error("Expected string feedback to leave the puzzle unsolved")
	}
	if result.Feedback != "Close, but look at the file extension." {
		t.Errorf("Expected verbatim feedback, got %q", result.Feedback)
	}
}

func TestSolveInvalidCheckerResult(t *testing.T) {
	a := newSolveAgent(t)
	addPuzzle(t, a, "p1", puzzle.Inline(nil, func(args map[string]any) (any, error) {
		return 42, nil
	}))

	_, err := a.solve("p1", nil)
	var userCode *protocol.UserCodeError
	if !errors.As(err, &userCode) {
		t.Fatalf("Expected UserCodeError, got %v", err)
	}
	if !strings.Contains(userCode.Context, "int") {
		t.Errorf("Expected the offending type in the diagnostics, got %q", userCode.Context)
	}
}

func TestSolveCheckerPanic(t *testing.T) {
	a := newSolveAgent(t)
	addPuzzle(t, a, "p1", puzzle.Inline(nil, func(args map[string]any) (any, error) {
		panic("checker bug")
	}))

	_, err := a.solve("p1", nil)
	var userCode *protocol.UserCodeError
	if !errors.As(err, &userCode) {
		t.Fatalf("Expected UserCodeError, got %v", err)
	}
	if !strings.Contains(userCode.Context, "panic: checker bug") {
		t.Errorf("Expected the panic in the diagnostics, got %q", userCode.Context)
	}
}

func TestSolveUnknownPuzzle(t *testing.T) {
	a := newSolveAgent(t)
	if _, err := a.solve("ghost", nil); err == nil {
		t.Fatal("Expected an error for an unknown puzzle id")
	}
}

func TestSolveBindsDeclaredParams(t *testing.T) {
	a := newSolveAgent(t)
	writeTestFile(t, filepath.Join(a.home, ".bash_history"), "ls -la\nmv a.txt b.txt\n")
	a.shellPID = os.Getpid()

	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
	if err := os.Chdir(a.home); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	var bound map[string]any
	params := []string{puzzle.ParamCwd, puzzle.ParamFlag, puzzle.ParamHistory, puzzle.ParamFS}
	addPuzzle(t, a, "p1", puzzle.Inline(params, func(args map[string]any) (any, error) {
		bound = args
		return true, nil
	}))

	flag := "tea"
	if _, err := a.solve("p1", &flag); err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	// cwd comes from this process, which just moved to home.
	wantCwd, err := filepath.EvalSymlinks(a.home)
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	if bound[puzzle.ParamCwd] != wantCwd {
		t.Errorf("Expected cwd %q, got %q", wantCwd, bound[puzzle.ParamCwd])
	}
	if bound[puzzle.ParamFlag] != "tea" {
		t.Errorf("Expected flag %q, got %v", "tea", bound[puzzle.ParamFlag])
	}
	history, ok := bound[puzzle.ParamHistory].([]string)
	if !ok || len(history) != 2 || history[1] != "mv a.txt b.txt" {
		t.Errorf("Expected two history lines, got %v", bound[puzzle.ParamHistory])
	}
	fsys, ok := bound[puzzle.ParamFS].(fs.FS)
	if !ok {
		t.Fatalf("Expected an fs.FS binding, got %T", bound[puzzle.ParamFS])
	}
	if _, err := fs.Stat(fsys, strings.TrimPrefix(wantCwd, "/")); err != nil {
		t.Errorf("Expected the filesystem view to reach home: %v", err)
	}
}

func TestSolveWithoutTrackedShell(t *testing.T) {
	a := newSolveAgent(t)
	addPuzzle(t, a, "p1", puzzle.Inline([]string{puzzle.ParamCwd}, func(args map[string]any) (any, error) {
		return args[puzzle.ParamCwd] == "", nil
	}))

	// No shell tracked yet binds an empty cwd instead of failing.
	result, err := a.solve("p1", nil)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !result.Solved {
		t.Error("Expected the checker to see an empty cwd")
	}
}

func TestHistoryMissingFile(t *testing.T) {
	a := newSolveAgent(t)
	history, err := a.history()
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %v", history)
	}
}
