package agent

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/random"
)

// generate runs the named generators in order and returns the new puzzles in
// the same order. Unknown names are rejected before anything runs, so a bad
// request never leaves half its puzzles behind on the filesystem.
func (a *Agent) generate(names []string) ([]*puzzle.Data, error) {
	for _, name := range names {
		if _, ok := a.registry.Generator(name); !ok {
			return nil, &puzzle.UnknownGeneratorError{Name: name, Known: a.registry.GeneratorNames()}
		}
	}

	genCtx := a.registry.Context(a.home, a.user, a.pool)
	genCtx.Elevate = a.elevated
	out := make([]*puzzle.Data, 0, len(names))
	for _, name := range names {
		gen, _ := a.registry.Generator(name)
		p, err := a.runGenerator(genCtx, name, gen)
		if err != nil {
			return nil, err
		}
		a.puzzles[p.ID] = p
		out = append(out, p.Capture(a.sendCheckers))
	}
	return out, nil
}

// runGenerator invokes one generator with home as the working directory.
// Failures inside the generator, panics included, come back as user-code
// errors naming the generator; a drained random pool keeps its own type so
// the host can tell bad luck from bad code.
func (a *Agent) runGenerator(genCtx *puzzle.GenContext, name string, gen puzzle.GeneratorFunc) (p *puzzle.Puzzle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = protocol.NewUserCodeError(
				fmt.Sprintf("puzzle generation failed for %s", name),
				fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()))
		}
	}()

	if err := os.Chdir(a.home); err != nil {
		return nil, fmt.Errorf("failed to enter %s: %w", a.home, err)
	}
	p, err = gen(genCtx)
	if err != nil {
		var exhausted *random.PoolExhaustedError
		if errors.As(err, &exhausted) {
			return nil, err
		}
		return nil, protocol.NewUserCodeError(fmt.Sprintf("puzzle generation failed for %s", name), err.Error())
	}
	if p == nil {
		return nil, protocol.NewUserCodeError(fmt.Sprintf("generator %s returned no puzzle", name), "")
	}
	p.ID = uuid.NewString()
	p.Template = name
	return p, nil
}
