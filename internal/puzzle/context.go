package puzzle

import "github.com/shellcamp/shellcamp/internal/random"

// GenContext is the toolkit injected into generator functions: where to put
// things, who the student is, and a source of non-repeating random content.
// Generators must not capture it past their own call.
type GenContext struct {
	// Home is the student's home directory; the process working directory is
	// set here before the generator runs.
	Home string
	// Root is the sandbox filesystem root.
	Root string
	// User is the unprivileged student user files should belong to.
	User string
	// Rand draws names and content that never repeat within a session.
	Rand *random.Pool
	// Elevate, when set, runs fn with root as the effective user, for
	// generators that create files the student must not own. Nil outside the
	// sandbox; generators fall back to running fn directly.
	Elevate func(fn func() error) error

	reg *Registry
}

// Checker builds a restorable checker through the named registry factory.
// opts must be JSON-serializable; they are captured with the puzzle so the
// checker can be rebuilt after an undo.
func (c *GenContext) Checker(factory string, opts any) (*Checker, error) {
	return c.reg.BuildChecker(factory, opts)
}
