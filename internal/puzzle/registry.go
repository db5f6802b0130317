package puzzle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shellcamp/shellcamp/internal/random"
)

// GeneratorFunc builds one puzzle. Generators run inside the sandbox with the
// working directory forced to the student's home; they are free to touch the
// real filesystem.
type GeneratorFunc func(ctx *GenContext) (*Puzzle, error)

// CheckerFactory rebuilds a grading function from the options it was
// originally built with. Factories make checkers survivable across snapshot
// restores: the options travel as JSON, the code stays in the binary.
type CheckerFactory func(opts json.RawMessage) (CheckerFunc, error)

type checkerEntry struct {
	params []string
	build  CheckerFactory
}

// Registry holds the puzzle generators and checker factories compiled into
// the sandbox agent, keyed by qualified "module.name" identifiers. The
// tutorial config refers to generators by these keys.
type Registry struct {
	generators map[string]GeneratorFunc
	checkers   map[string]checkerEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]GeneratorFunc),
		checkers:   make(map[string]checkerEntry),
	}
}

// RegisterGenerator adds a generator under a qualified name.
func (r *Registry) RegisterGenerator(name string, fn GeneratorFunc) error {
	if err := validateQualifiedName(name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("generator %q is nil", name)
	}
	if _, exists := r.generators[name]; exists {
		return fmt.Errorf("generator %q registered twice", name)
	}
	r.generators[name] = fn
	return nil
}

// RegisterChecker adds a checker factory under a qualified name along with
// the parameter names checkers built from it declare.
func (r *Registry) RegisterChecker(name string, params []string, build CheckerFactory) error {
	if err := validateQualifiedName(name); err != nil {
		return err
	}
	if build == nil {
		return fmt.Errorf("checker factory %q is nil", name)
	}
	if _, exists := r.checkers[name]; exists {
		return fmt.Errorf("checker factory %q registered twice", name)
	}
	if err := validateParams(&Checker{Params: params}); err != nil {
		return fmt.Errorf("checker factory %q: %w", name, err)
	}
	r.checkers[name] = checkerEntry{params: append([]string(nil), params...), build: build}
	return nil
}

// Generator looks up a generator by qualified name.
func (r *Registry) Generator(name string) (GeneratorFunc, bool) {
	fn, ok := r.generators[name]
	return fn, ok
}

// GeneratorNames returns every registered generator name, sorted.
func (r *Registry) GeneratorNames() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChecker builds a checker through a registered factory. The options are
// serialized immediately so the checker can be captured later without holding
// live references.
func (r *Registry) BuildChecker(name string, opts any) (*Checker, error) {
	entry, ok := r.checkers[name]
	if !ok {
		return nil, fmt.Errorf("no checker factory registered under %q", name)
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize options for checker %q: %w", name, err)
	}
	fn, err := entry.build(raw)
	if err != nil {
		return nil, fmt.Errorf("checker factory %q failed: %w", name, err)
	}
	return &Checker{
		Params:      append([]string(nil), entry.params...),
		Fn:          fn,
		factory:     name,
		factoryOpts: raw,
	}, nil
}

// RebuildChecker rehydrates a checker from its serialized spec, typically in
// a fresh agent process after a snapshot restore.
func (r *Registry) RebuildChecker(spec *CheckerSpec) (*Checker, error) {
	entry, ok := r.checkers[spec.Factory]
	if !ok {
		return nil, fmt.Errorf("no checker factory registered under %q", spec.Factory)
	}
	fn, err := entry.build(spec.Opts)
	if err != nil {
		return nil, fmt.Errorf("checker factory %q failed: %w", spec.Factory, err)
	}
	return &Checker{
		Params:      append([]string(nil), entry.params...),
		Fn:          fn,
		factory:     spec.Factory,
		factoryOpts: append(json.RawMessage(nil), spec.Opts...),
	}, nil
}

// Context builds the toolkit handed to generators.
func (r *Registry) Context(home, user string, rand *random.Pool) *GenContext {
	return &GenContext{Home: home, Root: "/", User: user, Rand: rand, reg: r}
}

func validateQualifiedName(name string) error {
	mod, short, ok := strings.Cut(name, ".")
	if !ok || mod == "" || short == "" {
		return fmt.Errorf("name %q is not a qualified module.name identifier", name)
	}
	return nil
}
