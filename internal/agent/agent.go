// Package agent implements the server that runs inside the sandbox
// container: it generates puzzles, grades solve attempts and answers the
// host's introspection requests over the authenticated control channel.
package agent

import (
	"fmt"
	"os/user"
	"strconv"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/random"
)

// Agent owns the live puzzles of one session. It is configured by the first
// SETUP or RESTORE message and serves requests strictly one at a time, so
// none of its state needs locking.
type Agent struct {
	dataDir  string
	registry *puzzle.Registry
	logger   *zap.Logger

	home         string
	user         string
	uid          int
	gid          int
	pool         *random.Pool
	puzzles      map[string]*puzzle.Puzzle
	sendCheckers bool
	shellPID     int
}

// New creates an unconfigured agent. dataDir is the staged data directory
// holding the credential files, dictionaries and resources the host copied
// in before starting the agent.
func New(dataDir string, registry *puzzle.Registry, logger *zap.Logger) *Agent {
	return &Agent{
		dataDir:  dataDir,
		registry: registry,
		logger:   logger,
		puzzles:  make(map[string]*puzzle.Puzzle),
	}
}

// lookupUser resolves the student account and records its numeric ids for
// privilege switching and file ownership.
func (a *Agent) lookupUser(name string) error {
	u, err := user.Lookup(name)
	if err != nil {
		return protocol.NewUserCodeError(fmt.Sprintf("user %q does not exist in the sandbox image", name), err.Error())
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("failed to parse uid of %q: %w", name, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("failed to parse gid of %q: %w", name, err)
	}
	a.user = name
	a.uid = uid
	a.gid = gid
	return nil
}
