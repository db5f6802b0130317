package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/random"
)

// Response is the agent's answer to a single request: either a result
// payload or a typed error, never both.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

// NewResultResponse wraps a result value.
func NewResultResponse(v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode response: %w", err)
	}
	return Response{OK: true, Result: raw}, nil
}

// NewErrorResponse wraps an agent-side error for transport.
func NewErrorResponse(err error) Response {
	return Response{OK: false, Error: EncodeError(err)}
}

// Decode unmarshals the result into out (out may be nil to discard it), or
// rehydrates the carried error.
func (r Response) Decode(out any) error {
	if !r.OK {
		return DecodeError(r.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("failed to decode response result: %w", err)
	}
	return nil
}

// SolveResult is the payload of a SOLVE response.
type SolveResult struct {
	Solved   bool   `json:"solved"`
	Feedback string `json:"feedback"`
}

// ConnectToShellResult is the payload of a CONNECT_TO_SHELL response.
type ConnectToShellResult struct {
	PID int `json:"pid"`
}

// StudentCwdResult is the payload of a GET_STUDENT_CWD response. Path is
// empty when no shell is being tracked yet.
type StudentCwdResult struct {
	Path string `json:"path,omitempty"`
}

// FileInfo describes one directory entry in a GET_FILES response. Dir is
// resolved through symlinks so a link to a directory reports both flags.
type FileInfo struct {
	Dir     bool   `json:"dir"`
	Symlink bool   `json:"symlink"`
	Path    string `json:"path"`
}

// ErrorKind tags errors crossing the channel so the host can rebuild the
// matching Go type.
type ErrorKind string

const (
	// KindUserCode marks failures inside tutorial-author code: generators,
	// checkers and setup scripts.
	KindUserCode ErrorKind = "user_code"
	// KindUnhandled marks unexpected agent-side failures.
	KindUnhandled ErrorKind = "unhandled"
	// KindUnknownGenerator marks a GENERATE naming an unregistered generator.
	KindUnknownGenerator ErrorKind = "unknown_generator"
	// KindCheckerUnavailable marks a SOLVE against a puzzle whose checker did
	// not survive a restore.
	KindCheckerUnavailable ErrorKind = "checker_unavailable"
	// KindPoolExhausted marks a generator draining a random pool.
	KindPoolExhausted ErrorKind = "pool_exhausted"
	// KindShellNotFound and KindAmbiguousShell mark shell discovery failures.
	KindShellNotFound  ErrorKind = "shell_not_found"
	KindAmbiguousShell ErrorKind = "ambiguous_shell"
)

// ErrorInfo is the wire form of an agent-side error. Detail carries the
// kind-specific payload (a pool name, a puzzle id, a process name); Context
// carries longer diagnostics like script output.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Context string    `json:"context,omitempty"`
}

// EncodeError maps an agent-side error onto its wire form.
func EncodeError(err error) *ErrorInfo {
	var userCode *UserCodeError
	if errors.As(err, &userCode) {
		return &ErrorInfo{Kind: KindUserCode, Message: userCode.Message, Context: userCode.Context}
	}
	var notFound *ShellNotFoundError
	if errors.As(err, &notFound) {
		return &ErrorInfo{Kind: KindShellNotFound, Message: notFound.Error(), Detail: notFound.Name}
	}
	var ambiguous *AmbiguousShellError
	if errors.As(err, &ambiguous) {
		return &ErrorInfo{Kind: KindAmbiguousShell, Message: ambiguous.Error(), Detail: ambiguous.Name}
	}
	var unknownGen *puzzle.UnknownGeneratorError
	if errors.As(err, &unknownGen) {
		return &ErrorInfo{Kind: KindUnknownGenerator, Message: unknownGen.Error(), Detail: unknownGen.Name}
	}
	var unavailable *puzzle.CheckerUnavailableError
	if errors.As(err, &unavailable) {
		return &ErrorInfo{Kind: KindCheckerUnavailable, Message: unavailable.Error(), Detail: unavailable.ID}
	}
	var exhausted *random.PoolExhaustedError
	if errors.As(err, &exhausted) {
		return &ErrorInfo{Kind: KindPoolExhausted, Message: exhausted.Error(), Detail: exhausted.Pool}
	}
	var unhandled *UnhandledError
	if errors.As(err, &unhandled) {
		return &ErrorInfo{Kind: KindUnhandled, Message: unhandled.Message, Context: unhandled.Context}
	}
	return &ErrorInfo{Kind: KindUnhandled, Message: err.Error()}
}

// DecodeError rebuilds the Go error a received ErrorInfo stands for. Unknown
// kinds degrade to UnhandledError so newer agents stay readable.
func DecodeError(info *ErrorInfo) error {
	if info == nil {
		return &UnhandledError{Message: "agent reported failure without details"}
	}
	switch info.Kind {
	case KindUserCode:
		return &UserCodeError{Message: info.Message, Context: info.Context}
	case KindUnknownGenerator:
		return &puzzle.UnknownGeneratorError{Name: info.Detail}
	case KindCheckerUnavailable:
		return &puzzle.CheckerUnavailableError{ID: info.Detail}
	case KindPoolExhausted:
		return &random.PoolExhaustedError{Pool: info.Detail}
	case KindShellNotFound:
		return &ShellNotFoundError{Name: info.Detail}
	case KindAmbiguousShell:
		return &AmbiguousShellError{Name: info.Detail}
	default:
		return &UnhandledError{Message: info.Message, Context: info.Context}
	}
}
