package tutorial

import (
	"context"
	"fmt"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// dockerSession adapts a running tutorial to the undo manager's view of a
// session. Its methods are called from inside the tutorial's lock.
type dockerSession struct {
	t *Tutorial
}

func (s *dockerSession) Snapshot(ctx context.Context) (string, error) {
	return s.t.sandbox.Commit(ctx, s.t.inst)
}

func (s *dockerSession) Discard(ctx context.Context, image string) error {
	return s.t.sandbox.RemoveImage(ctx, image)
}

func (s *dockerSession) PuzzleStates() map[string]bool {
	states := make(map[string]bool)
	for _, p := range s.t.forest.AllPuzzles() {
		states[p.ID] = p.Solved
	}
	return states
}

func (s *dockerSession) Restore(ctx context.Context, image string, solved map[string]bool) error {
	return s.t.restoreSnapshot(ctx, image, solved)
}

// restoreSnapshot relaunches the sandbox from a snapshot image and brings a
// fresh agent up inside it. The forest is only touched once the new sandbox
// answers, so a failed restore leaves the host state matching the stack, and
// the whole sequence can be retried by another undo or restart.
func (t *Tutorial) restoreSnapshot(ctx context.Context, image string, solved map[string]bool) error {
	if t.agent != nil {
		_ = t.agent.Close()
		t.agent = nil
	}

	inst, err := t.sandbox.Relaunch(ctx, t.inst, image)
	if err != nil {
		return fmt.Errorf("failed to relaunch from snapshot: %w", err)
	}
	t.inst = inst
	if err := t.sandbox.StartAgent(ctx, inst, []string{"shellcamp-agent", "serve"}); err != nil {
		return err
	}
	agent, err := t.dial(ctx, inst)
	if err != nil {
		return err
	}

	// The staged volume survives relaunches, so the agent can rebuild its
	// name pools from the same files.
	restore := protocol.NewRestoreRequest(t.cfg.Home, t.cfg.User, t.dictionary, t.sources,
		restoredPuzzles(t.forest, solved))
	if err := agent.Call(restore, nil); err != nil {
		_ = agent.Close()
		return fmt.Errorf("failed to restore the agent: %w", err)
	}
	var shell protocol.ConnectToShellResult
	if err := agent.Call(protocol.NewConnectToShellRequest(t.shellName), &shell); err != nil {
		_ = agent.Close()
		return fmt.Errorf("failed to find the student shell: %w", err)
	}
	t.agent = agent

	// Rewind the forest to the recorded flags. Puzzles generated after the
	// snapshot no longer exist in the restored filesystem; their nodes go
	// back to ungenerated and regenerate when their parent is solved again.
	for _, node := range t.forest.All() {
		if node.Puzzle == nil {
			continue
		}
		state, ok := solved[node.Puzzle.ID]
		if !ok {
			node.Puzzle = nil
			continue
		}
		node.Puzzle.Solved = state
	}
	return nil
}

// restoredPuzzles builds the rehydration list for a snapshot: the puzzles it
// recorded, carrying the solved flags recorded at commit time.
func restoredPuzzles(forest puzzle.Forest, solved map[string]bool) []*puzzle.Data {
	var puzzles []*puzzle.Data
	for _, p := range forest.AllPuzzles() {
		state, ok := solved[p.ID]
		if !ok {
			continue
		}
		clone := p.Clone()
		clone.Solved = state
		puzzles = append(puzzles, clone)
	}
	return puzzles
}
