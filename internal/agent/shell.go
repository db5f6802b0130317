package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/retry"
)

// shellPolicy bounds how long connectToShell waits for the student's shell
// to appear. Attaching to the container can take a moment after launch.
var shellPolicy = retry.Policy{
	MaxRetries:   39,
	InitialDelay: 200 * time.Millisecond,
	Multiplier:   1.0,
}

// connectToShell finds the process with the given name and tracks it as the
// student's shell. Zero matches within the retry budget is ShellNotFoundError;
// several matches at once means something else spawned a shell with the same
// name and the agent refuses to guess.
func (a *Agent) connectToShell(ctx context.Context, name string) (int, error) {
	pids, err := retry.Do(ctx, shellPolicy, func(ctx context.Context) ([]int, error) {
		pids, err := processesNamed(name)
		if err != nil {
			return nil, err
		}
		if len(pids) == 0 {
			return nil, &protocol.ShellNotFoundError{Name: name}
		}
		return pids, nil
	}, nil)
	if err != nil {
		var notFound *protocol.ShellNotFoundError
		if errors.As(err, &notFound) {
			return 0, notFound
		}
		return 0, err
	}
	if len(pids) > 1 {
		return 0, &protocol.AmbiguousShellError{Name: name, Count: len(pids)}
	}
	a.shellPID = pids[0]
	a.logger.Info("tracking student shell", zap.String("shell", name), zap.Int("pid", pids[0]))
	return pids[0], nil
}

// processesNamed scans /proc for processes whose command name matches
// exactly. Processes that vanish mid-scan are skipped.
func processesNamed(name string) ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to scan /proc: %w", err)
	}
	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == name {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// studentCwd reads the tracked shell's working directory out of /proc,
// which needs root because the shell belongs to another user. Returns ""
// while no shell is tracked; a tracked shell that died is an error.
func (a *Agent) studentCwd() (string, error) {
	if a.shellPID == 0 {
		return "", nil
	}
	var cwd string
	err := a.elevated(func() error {
		link, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", a.shellPID))
		if err != nil {
			return fmt.Errorf("failed to read cwd of shell %d: %w", a.shellPID, err)
		}
		cwd = link
		return nil
	})
	return cwd, err
}
