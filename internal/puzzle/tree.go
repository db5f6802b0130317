package puzzle

// Tree is one node of the dependency forest the host walks during a session.
// Puzzle stays nil until the node's generator has run; children are generated
// only after this node's puzzle is solved.
type Tree struct {
	Template string
	Puzzle   *Data
	Children []*Tree
}

// Forest is the ordered list of root nodes parsed from the tutorial config.
type Forest []*Tree

// All returns every node in preorder, generated or not.
func (f Forest) All() []*Tree {
	var nodes []*Tree
	var walk func(n *Tree)
	walk = func(n *Tree) {
		nodes = append(nodes, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, root := range f {
		walk(root)
	}
	return nodes
}

// AllPuzzles returns the generated puzzles in preorder.
func (f Forest) AllPuzzles() []*Data {
	var puzzles []*Data
	for _, node := range f.All() {
		if node.Puzzle != nil {
			puzzles = append(puzzles, node.Puzzle)
		}
	}
	return puzzles
}

// CurrentPuzzles returns the unlocked puzzles in preorder: every generated
// node whose ancestors are all solved. Children of an unsolved puzzle stay
// hidden even if they were somehow generated.
func (f Forest) CurrentPuzzles() []*Data {
	var puzzles []*Data
	var walk func(n *Tree)
	walk = func(n *Tree) {
		if n.Puzzle == nil {
			return
		}
		puzzles = append(puzzles, n.Puzzle)
		if n.Puzzle.Solved {
			for _, child := range n.Children {
				walk(child)
			}
		}
	}
	for _, root := range f {
		walk(root)
	}
	return puzzles
}

// Find returns the node holding the puzzle with the given id, or nil.
func (f Forest) Find(id string) *Tree {
	for _, node := range f.All() {
		if node.Puzzle != nil && node.Puzzle.ID == id {
			return node
		}
	}
	return nil
}

// IsFinished reports whether every puzzle in the forest is solved. Nodes that
// have not been generated yet count as unsolved.
func (f Forest) IsFinished() bool {
	for _, node := range f.All() {
		if node.Puzzle == nil || !node.Puzzle.Solved {
			return false
		}
	}
	return true
}

// TotalScore sums the scores of every generated puzzle.
func (f Forest) TotalScore() int {
	total := 0
	for _, p := range f.AllPuzzles() {
		total += p.Score
	}
	return total
}

// CurrentScore sums the scores of solved puzzles.
func (f Forest) CurrentScore() int {
	total := 0
	for _, p := range f.AllPuzzles() {
		if p.Solved {
			total += p.Score
		}
	}
	return total
}

// RootTemplates returns the template ids of the forest roots, in order.
func (f Forest) RootTemplates() []string {
	templates := make([]string, len(f))
	for i, root := range f {
		templates[i] = root.Template
	}
	return templates
}
