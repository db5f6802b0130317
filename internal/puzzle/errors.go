package puzzle

import (
	"fmt"
	"sort"
	"strings"
)

// UnrecognizedParameterError is returned when a checker declares parameter
// names outside the recognized set. It is raised at puzzle construction, not
// at solve time, so badly written puzzles fail during generation.
type UnrecognizedParameterError struct {
	Params []string
}

func (e *UnrecognizedParameterError) Error() string {
	return fmt.Sprintf("unrecognized checker param(s) %s; expected %s",
		sentenceList(e.Params, " and "),
		sentenceList(RecognizedParams(), " and/or "))
}

// NewUnrecognizedParameterError creates an error listing the offending names.
func NewUnrecognizedParameterError(params []string) *UnrecognizedParameterError {
	return &UnrecognizedParameterError{Params: params}
}

// InvalidCheckerResultError is returned when a checker returns something other
// than a bool or a string. This is treated as a bug in the puzzle code.
type InvalidCheckerResultError struct {
	Result any
}

func (e *InvalidCheckerResultError) Error() string {
	return fmt.Sprintf("checker returned %T (%v); checkers must return bool or string", e.Result, e.Result)
}

// CheckerUnavailableError is returned when solving a puzzle whose checker
// could not be carried across a snapshot restore.
type CheckerUnavailableError struct {
	ID string
}

func (e *CheckerUnavailableError) Error() string {
	return fmt.Sprintf("checker for puzzle %q is not available after restore", e.ID)
}

// UnknownGeneratorError is returned when generation is requested for a name
// with no registered generator.
type UnknownGeneratorError struct {
	Name  string
	Known []string
}

func (e *UnknownGeneratorError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("no generator registered under %q", e.Name)
	}
	return fmt.Sprintf("no generator registered under %q (registered: %s)", e.Name, strings.Join(e.Known, ", "))
}

// sentenceList renders names as `"a", "b" and "c"` for error messages.
func sentenceList(items []string, lastSep string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	sort.Strings(quoted)
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + lastSep + quoted[len(quoted)-1]
	}
}
