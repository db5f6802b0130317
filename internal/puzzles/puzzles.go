// Package puzzles ships the built-in puzzle modules compiled into the agent:
// renaming, searching, copying, permissions and shell-awareness drills. Each
// module registers its generators and checker factories under the qualified
// names tutorial configs refer to, e.g. "move.rename". All built-in checkers
// are factory-built, so they survive snapshot restores.
package puzzles

import "github.com/shellcamp/shellcamp/internal/puzzle"

// Builtin returns a registry holding every built-in module.
func Builtin() (*puzzle.Registry, error) {
	reg := puzzle.NewRegistry()
	for _, register := range []func(*puzzle.Registry) error{
		registerMove,
		registerGrep,
		registerPerms,
		registerFiles,
		registerNavigate,
		registerHistory,
	} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// elevate runs fn as root when the toolkit provides elevation, and directly
// when it does not (tests, mainly).
func elevate(ctx *puzzle.GenContext, fn func() error) error {
	if ctx.Elevate == nil {
		return fn()
	}
	return ctx.Elevate(fn)
}
