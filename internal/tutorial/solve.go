package tutorial

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// SolvePuzzle submits a flag for the given puzzle and returns the checker's
// verdict and feedback. A first-time solve unlocks the puzzle's dependents,
// records the solve in the transcript and checkpoints the filesystem, so the
// solved state itself can be undone.
func (t *Tutorial) SolvePuzzle(ctx context.Context, id string, flag *string) (bool, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.running(); err != nil {
		return false, "", err
	}
	node := t.forest.Find(id)
	if node == nil {
		return false, "", fmt.Errorf("no puzzle with id %q", id)
	}

	var result protocol.SolveResult
	if err := t.agent.Call(protocol.NewSolveRequest(id, flag), &result); err != nil {
		return false, "", err
	}
	if !result.Solved {
		return false, result.Feedback, nil
	}

	first := !node.Puzzle.Solved
	node.Puzzle.Solved = true
	generated, err := t.generateChildren(ctx, node)
	if err != nil {
		// The solve itself stands; a later solve of the same puzzle retries
		// the generation.
		return true, result.Feedback, err
	}
	if first && t.store != nil {
		if err := t.store.RecordSolve(ctx, t.sessionID, id, node.Puzzle.Template, flag); err != nil {
			t.logger.Warn("failed to record solve in transcript", zap.Error(err))
		}
	}
	if first || generated {
		if err := t.undo.Commit(ctx); err != nil {
			return true, result.Feedback, fmt.Errorf("failed to checkpoint after solve: %w", err)
		}
	}
	return true, result.Feedback, nil
}

// generateChildren generates the not-yet-generated children of a solved node
// and reports whether anything new appeared.
func (t *Tutorial) generateChildren(ctx context.Context, node *puzzle.Tree) (bool, error) {
	var pending []*puzzle.Tree
	for _, child := range node.Children {
		if child.Puzzle == nil {
			pending = append(pending, child)
		}
	}
	if len(pending) == 0 {
		return false, nil
	}
	templates := make([]string, len(pending))
	for i, child := range pending {
		templates[i] = child.Template
	}
	var datas []*puzzle.Data
	if err := t.agent.Call(protocol.NewGenerateRequest(templates), &datas); err != nil {
		return false, fmt.Errorf("failed to generate unlocked puzzles: %w", err)
	}
	if err := attachPuzzles(pending, datas); err != nil {
		return false, err
	}
	return true, nil
}

// attachPuzzles binds generated puzzle data to forest nodes, in order. The
// agent generates in request order; the template check guards against skew.
func attachPuzzles(nodes []*puzzle.Tree, datas []*puzzle.Data) error {
	if len(datas) != len(nodes) {
		return fmt.Errorf("expected %d generated puzzles, got %d", len(nodes), len(datas))
	}
	for i, node := range nodes {
		if datas[i].Template != node.Template {
			return fmt.Errorf("generated puzzle %d is %s, expected %s", i, datas[i].Template, node.Template)
		}
		node.Puzzle = datas[i]
	}
	return nil
}

// Commit records the current filesystem and puzzle state as an undo entry.
// The notification listener calls this after every student command; it is
// exported for drivers that manage their own checkpoints.
func (t *Tutorial) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(); err != nil {
		return err
	}
	return t.undo.Commit(ctx)
}

// Undo rewinds the session by one recorded entry. At the stack bottom it is
// a no-op.
func (t *Tutorial) Undo(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(); err != nil {
		return err
	}
	return t.undo.Undo(ctx)
}

// Restart rewinds the session to its starting snapshot, abandoning all
// recorded progress.
func (t *Tutorial) Restart(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(); err != nil {
		return err
	}
	return t.undo.Restart(ctx)
}

// CanUndo reports whether there is an earlier state to rewind to.
func (t *Tutorial) CanUndo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.undo == nil {
		return false
	}
	return t.undo.CanUndo()
}

// UndoLen reports how many snapshots the session currently holds. Zero when
// undo is disabled.
func (t *Tutorial) UndoLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.undo == nil {
		return 0
	}
	return t.undo.Len()
}
