// Package undo maintains the stack of filesystem snapshots that lets a
// session be rewound one student command at a time.
package undo

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Session is the live state the manager snapshots and rewinds. The caller
// owns the container and the puzzle set; the manager only decides which
// recorded state should be live.
type Session interface {
	// Snapshot captures the current filesystem as an image and returns its
	// reference.
	Snapshot(ctx context.Context) (string, error)
	// Restore relaunches the session from a captured image and rewinds every
	// puzzle's solved flag to the recorded value.
	Restore(ctx context.Context, image string, solved map[string]bool) error
	// Discard releases an image that can no longer be restored.
	Discard(ctx context.Context, image string) error
	// PuzzleStates reports the current solved flag of every puzzle.
	PuzzleStates() map[string]bool
}

// entry is one committed snapshot: the image holding the filesystem and the
// solved flags recorded at commit time.
type entry struct {
	image  string
	solved map[string]bool
}

// Manager is a pointer into an ordered stack of snapshots. Commits push
// above the pointer, undo moves it down, and new work after an undo
// invalidates everything above it. The bottom entry is never popped.
//
// Manager is not safe for concurrent use; callers serialize access.
type Manager struct {
	session Session
	logger  *zap.Logger
	enabled bool
	entries []entry
	pos     int
}

// NewManager returns a manager over the given session. A disabled manager
// turns every operation into a no-op and reports a zero-length stack.
func NewManager(session Session, enabled bool, logger *zap.Logger) *Manager {
	return &Manager{
		session: session,
		logger:  logger,
		enabled: enabled,
		pos:     -1,
	}
}

// Enabled reports whether snapshots are being recorded.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Len reports how many entries are reachable from the current pointer.
func (m *Manager) Len() int {
	if !m.enabled {
		return 0
	}
	return m.pos + 1
}

// CanUndo reports whether there is an earlier entry to rewind to.
func (m *Manager) CanUndo() bool {
	return m.enabled && m.pos > 0
}

// Commit captures the current session state as a new entry above the
// pointer. Entries left above the pointer by earlier undos are discarded
// first, since new work invalidates them.
func (m *Manager) Commit(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	m.truncate(ctx, m.pos+1)
	image, err := m.session.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot session: %w", err)
	}
	m.entries = append(m.entries, entry{
		image:  image,
		solved: cloneStates(m.session.PuzzleStates()),
	})
	m.pos = len(m.entries) - 1
	return nil
}

// Undo rewinds the session to the entry below the pointer. At the stack
// bottom it is a no-op. The pointer only moves once the restore succeeds,
// so a failed undo leaves the stack where it was.
func (m *Manager) Undo(ctx context.Context) error {
	if !m.CanUndo() {
		return nil
	}
	target := m.entries[m.pos-1]
	if err := m.session.Restore(ctx, target.image, cloneStates(target.solved)); err != nil {
		return fmt.Errorf("failed to restore snapshot %s: %w", target.image, err)
	}
	m.pos--
	return nil
}

// Restart collapses the stack to its bottom entry and restores the session
// to that state, abandoning all recorded progress. With nothing committed
// yet it is a no-op.
func (m *Manager) Restart(ctx context.Context) error {
	if !m.enabled || len(m.entries) == 0 {
		return nil
	}
	bottom := m.entries[0]
	if err := m.session.Restore(ctx, bottom.image, cloneStates(bottom.solved)); err != nil {
		return fmt.Errorf("failed to restore snapshot %s: %w", bottom.image, err)
	}
	m.truncate(ctx, 1)
	m.pos = 0
	return nil
}

// Close discards every snapshot the manager still holds. The stack is
// emptied even when some images fail to release; the first failure is
// returned after all entries have been attempted.
func (m *Manager) Close(ctx context.Context) error {
	var firstErr error
	for i := len(m.entries) - 1; i >= 0; i-- {
		if err := m.session.Discard(ctx, m.entries[i].image); err != nil {
			m.logger.Warn("failed to discard snapshot",
				zap.String("image", m.entries[i].image),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	m.entries = nil
	m.pos = -1
	return firstErr
}

// truncate drops every entry at index n and above, discarding their images.
// Discard failures are logged and skipped so a leaked image never wedges
// the session.
func (m *Manager) truncate(ctx context.Context, n int) {
	for i := len(m.entries) - 1; i >= n; i-- {
		if err := m.session.Discard(ctx, m.entries[i].image); err != nil {
			m.logger.Warn("failed to discard snapshot",
				zap.String("image", m.entries[i].image),
				zap.Error(err))
		}
	}
	m.entries = m.entries[:n]
}

func cloneStates(states map[string]bool) map[string]bool {
	out := make(map[string]bool, len(states))
	for id, solved := range states {
		out[id] = solved
	}
	return out
}
