// Package puzzle defines the puzzle entity, its checker contract, the
// generator/checker registry and the dependency forest that orders puzzles
// during a training session.
package puzzle

import (
	"encoding/json"
	"sort"
)

// Recognized checker parameter names. A checker declares the subset it wants
// bound when it runs; anything else is rejected when the puzzle is built.
const (
	// ParamCwd binds the student's current working directory as an absolute
	// path, or "" when no shell is being tracked yet.
	ParamCwd = "cwd"
	// ParamFlag binds the string the student submitted alongside the solve
	// request. Declaring it signals the front end to prompt for input.
	ParamFlag = "flag"
	// ParamHistory binds the student's shell history as a slice of command
	// lines, oldest first.
	ParamHistory = "history"
	// ParamFS binds a read-only view of the sandbox filesystem rooted at /.
	ParamFS = "fs"
)

var recognizedParams = map[string]bool{
	ParamCwd:     true,
	ParamFlag:    true,
	ParamHistory: true,
	ParamFS:      true,
}

// RecognizedParams returns the recognized checker parameter names, sorted.
func RecognizedParams() []string {
	names := make([]string, 0, len(recognizedParams))
	for name := range recognizedParams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckerFunc grades one solve attempt. args holds exactly the bindings the
// checker declared (see the Param constants for value types). The result must
// be a bool or a string: true solves the puzzle, false does not, a string is
// shown to the student as feedback without solving. A returned error means
// the checker itself failed.
type CheckerFunc func(args map[string]any) (any, error)

// Checker pairs a grading function with the parameter names it wants bound.
// Checkers built through a registry factory keep a reference to it and can be
// rebuilt in a fresh process after a snapshot restore; inline closures cannot.
type Checker struct {
	Params []string
	Fn     CheckerFunc

	factory     string
	factoryOpts json.RawMessage
}

// Inline wraps a bare closure as a checker. The resulting checker works for
// the life of the current sandbox but cannot survive a restore; prefer
// registry factories for puzzles used with undo enabled.
func Inline(params []string, fn CheckerFunc) *Checker {
	return &Checker{Params: params, Fn: fn}
}

// Capturable reports whether the checker can be rebuilt from its serialized
// form in another process.
func (c *Checker) Capturable() bool {
	return c != nil && c.factory != ""
}

// Puzzle is one task the student has to complete. Instances live in the
// sandbox-side process; the host works with the wire form (Data).
type Puzzle struct {
	ID       string
	Template string
	Question string
	Score    int
	Solved   bool
	Checker  *Checker
}

// New builds a puzzle with the default score of 1. The checker's declared
// parameter names are validated here so that a bad declaration surfaces
// during generation rather than on the first solve.
func New(question string, checker *Checker) (*Puzzle, error) {
	return NewScored(question, checker, 1)
}

// NewScored builds a puzzle worth the given score.
func NewScored(question string, checker *Checker, score int) (*Puzzle, error) {
	if err := validateParams(checker); err != nil {
		return nil, err
	}
	return &Puzzle{Question: question, Score: score, Checker: checker}, nil
}

func validateParams(checker *Checker) error {
	if checker == nil {
		return nil
	}
	var extra []string
	for _, name := range checker.Params {
		if !recognizedParams[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		return NewUnrecognizedParameterError(extra)
	}
	return nil
}

// Declares reports whether the checker asked for the given parameter.
func (p *Puzzle) Declares(name string) bool {
	if p.Checker == nil {
		return false
	}
	for _, param := range p.Checker.Params {
		if param == name {
			return true
		}
	}
	return false
}

// Classify maps a checker result to the solved flag and student feedback.
// true is the only way to solve a puzzle; a string is feedback for a failed
// attempt; anything else is a puzzle bug.
func Classify(result any) (bool, string, error) {
	switch v := result.(type) {
	case bool:
		if v {
			return true, "Correct!", nil
		}
		return false, "Incorrect!", nil
	case string:
		return false, v, nil
	default:
		return false, "", &InvalidCheckerResultError{Result: result}
	}
}
