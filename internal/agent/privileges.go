package agent

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// The agent starts as root, reads its credentials and applies resources,
// then keeps the student as its effective identity for the rest of the
// session. Generators and checkers therefore create files the student owns.
// Seteuid applies to every thread of the process; that is fine here because
// requests are served strictly one at a time.
//
// Order matters when switching: the effective uid must move to 0 before the
// gid can change freely, and back last so the gid change is still permitted.

// dropPrivileges switches the effective identity to the student account.
// A process that never had root keeps its own identity.
func (a *Agent) dropPrivileges() error {
	if os.Getuid() != 0 {
		return nil
	}
	if os.Geteuid() != 0 {
		if err := unix.Seteuid(0); err != nil {
			return fmt.Errorf("failed to regain root: %w", err)
		}
	}
	if err := unix.Setegid(a.gid); err != nil {
		return fmt.Errorf("failed to set egid %d: %w", a.gid, err)
	}
	if err := unix.Seteuid(a.uid); err != nil {
		return fmt.Errorf("failed to set euid %d: %w", a.uid, err)
	}
	return nil
}

// elevated runs fn with root as the effective user, for the few operations
// that must see the whole filesystem or another user's /proc entries. The
// student identity is restored before it returns.
func (a *Agent) elevated(fn func() error) error {
	if os.Geteuid() == 0 || os.Getuid() != 0 {
		// Already root, or never had root to regain.
		return fn()
	}
	if err := unix.Seteuid(0); err != nil {
		return fmt.Errorf("failed to regain root: %w", err)
	}
	if err := unix.Setegid(0); err != nil {
		a.restoreStudent()
		return fmt.Errorf("failed to regain root group: %w", err)
	}
	defer a.restoreStudent()
	return fn()
}

func (a *Agent) restoreStudent() {
	if err := unix.Setegid(a.gid); err != nil {
		a.logger.Error("failed to drop egid", zap.Int("gid", a.gid), zap.Error(err))
	}
	if err := unix.Seteuid(a.uid); err != nil {
		a.logger.Error("failed to drop euid", zap.Int("uid", a.uid), zap.Error(err))
	}
}
