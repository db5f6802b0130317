// Package sandbox manages the disposable Docker containers students work in.
// A container's main process is the student's own shell; the training agent is
// exec'd next to it and reached over a published loopback port. Undo support
// is built on committing the container filesystem to throwaway images and
// relaunching from them.
package sandbox

import (
	"fmt"
	"strings"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

// DataDir is the mount point of the staging volume inside the container. It
// holds the name dictionary, content sources, resources, setup scripts and
// credential files for one session. Volumes survive commits, so the staged
// data carries across snapshot relaunches without restaging.
const DataDir = protocol.DataDir

// SnapshotRepo is the image repository snapshot commits are tagged under.
const SnapshotRepo = "shellcamp"

// LaunchSpec describes a container to launch.
type LaunchSpec struct {
	// Image to run. Either the configured training image or a snapshot.
	Image string
	// User is the student account; the shell runs as them.
	User string
	// Home is the student's home directory and the shell's working dir.
	Home string
	// Shell is the container's main command, the student's interactive shell.
	Shell []string
	// Env entries for the container.
	Env []string
	// Volume reuses an existing staging volume when set. Empty means create
	// a fresh one.
	Volume string
}

// Instance is one running sandbox container.
type Instance struct {
	// ID of the container.
	ID string
	// Image the container was launched from.
	Image string
	// Volume is the staging volume name.
	Volume string
	// Port is the loopback port the agent's fixed port is published on.
	Port string

	spec LaunchSpec
	logs *LogBuffer
}

// Logs returns everything the agent has written so far.
func (inst *Instance) Logs() string {
	if inst.logs == nil {
		return ""
	}
	return inst.logs.String()
}

// ExecResult captures the output of a command run inside the container.
type ExecResult struct {
	Stdout string
	Stderr string
	Code   int
}

// StartupError means the container failed to start or the agent never became
// reachable. Logs holds whatever the agent managed to write.
type StartupError struct {
	Message string
	Logs    string
	Cause   error
}

func (e *StartupError) Error() string {
	msg := "sandbox failed to start: " + e.Message
	if e.Logs != "" {
		msg += ", agent logs:\n" + indent(e.Logs)
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Cause
}

// NewStartupError creates a StartupError with the captured agent logs.
func NewStartupError(message, logs string) *StartupError {
	return &StartupError{Message: message, Logs: logs}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// snapshotTag builds the image reference for a snapshot commit.
func snapshotTag(unixNano int64) string {
	return fmt.Sprintf("%s:snapshot-%d", SnapshotRepo, unixNano)
}
