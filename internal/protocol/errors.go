package protocol

import (
	"fmt"
	"strings"
)

// UserCodeError marks a failure inside tutorial-author code — a generator, a
// checker or a setup script. Context holds the diagnostics worth showing the
// author (script output, the wrapped failure chain).
type UserCodeError struct {
	Message string
	Context string
}

func (e *UserCodeError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return e.Message + "\n" + indent(e.Context)
}

// NewUserCodeError creates a user-code failure with diagnostics.
func NewUserCodeError(message, context string) *UserCodeError {
	return &UserCodeError{Message: message, Context: context}
}

// UnhandledError marks an unexpected failure inside the agent itself.
type UnhandledError struct {
	Message string
	Context string
}

func (e *UnhandledError) Error() string {
	if e.Context == "" {
		return "unhandled sandbox error: " + e.Message
	}
	return "unhandled sandbox error: " + e.Message + "\n" + indent(e.Context)
}

// ShellNotFoundError means no process with the requested name appeared
// within the discovery retry budget.
type ShellNotFoundError struct {
	Name string
}

func (e *ShellNotFoundError) Error() string {
	return fmt.Sprintf("no process named %q found in the sandbox", e.Name)
}

// AmbiguousShellError means several processes matched the requested name, so
// the agent cannot tell which one is the student's shell.
type AmbiguousShellError struct {
	Name  string
	Count int
}

func (e *AmbiguousShellError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("%d processes named %q found in the sandbox", e.Count, e.Name)
	}
	return fmt.Sprintf("multiple processes named %q found in the sandbox", e.Name)
}

// StoppedError means the session channel died mid-conversation, usually
// because the container stopped. It carries whatever the agent logged.
type StoppedError struct {
	Logs  string
	Cause error
}

func (e *StoppedError) Error() string {
	if e.Logs == "" {
		return "sandbox stopped unexpectedly"
	}
	return "sandbox stopped unexpectedly, agent logs:\n" + indent(e.Logs)
}

func (e *StoppedError) Unwrap() error {
	return e.Cause
}

// NewStoppedError creates a StoppedError carrying the agent logs.
func NewStoppedError(logs string) *StoppedError {
	return &StoppedError{Logs: logs}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
