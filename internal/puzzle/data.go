package puzzle

import "encoding/json"

// CheckerSpec is the serialized form of a registry-built checker: the factory
// it came from and the options it was built with. A puzzle whose checker was
// an inline closure has no spec at all.
type CheckerSpec struct {
	Factory string          `json:"factory"`
	Opts    json.RawMessage `json:"opts,omitempty"`
}

// Data is the cross-process form of a puzzle. It crosses the IPC channel
// after generation and again on restore, and is what snapshot entries record.
// A nil Checker marks the grading procedure as unavailable outside the
// process that created it.
type Data struct {
	ID       string       `json:"id"`
	Template string       `json:"template"`
	Question string       `json:"question"`
	Score    int          `json:"score"`
	Solved   bool         `json:"solved"`
	Params   []string     `json:"params,omitempty"`
	Checker  *CheckerSpec `json:"checker,omitempty"`
}

// Capture produces the wire form of a live puzzle. When withChecker is false,
// or the checker is an inline closure, the spec is omitted and the puzzle
// degrades to checker-unavailable on the far side.
func (p *Puzzle) Capture(withChecker bool) *Data {
	data := &Data{
		ID:       p.ID,
		Template: p.Template,
		Question: p.Question,
		Score:    p.Score,
		Solved:   p.Solved,
	}
	if p.Checker != nil {
		data.Params = append([]string(nil), p.Checker.Params...)
		if withChecker && p.Checker.Capturable() {
			data.Checker = &CheckerSpec{
				Factory: p.Checker.factory,
				Opts:    append(json.RawMessage(nil), p.Checker.factoryOpts...),
			}
		}
	}
	return data
}

// Rebuild turns wire data back into a live puzzle, rebuilding the checker
// through the registry when a spec is present. Without a spec the puzzle
// keeps its declared params (so the front end still knows to prompt for a
// flag) but has no grading function.
func (d *Data) Rebuild(reg *Registry) (*Puzzle, error) {
	p := &Puzzle{
		ID:       d.ID,
		Template: d.Template,
		Question: d.Question,
		Score:    d.Score,
		Solved:   d.Solved,
	}
	if d.Checker != nil {
		checker, err := reg.RebuildChecker(d.Checker)
		if err != nil {
			return nil, err
		}
		p.Checker = checker
	} else if len(d.Params) > 0 {
		p.Checker = &Checker{Params: append([]string(nil), d.Params...)}
	}
	return p, nil
}

// Clone returns a deep copy, used when snapshot entries record puzzle state.
func (d *Data) Clone() *Data {
	clone := *d
	clone.Params = append([]string(nil), d.Params...)
	if d.Checker != nil {
		spec := *d.Checker
		spec.Opts = append(json.RawMessage(nil), d.Checker.Opts...)
		clone.Checker = &spec
	}
	return &clone
}
