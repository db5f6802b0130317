// Package protocol defines the typed messages exchanged between the host and
// the sandbox agent over the authenticated session channel, plus the framing
// and handshake both ends share. The channel is strictly synchronous: one
// request at a time, responses in order.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// RequestType enumerates all supported host -> agent requests.
type RequestType string

const (
	RequestSetup          RequestType = "SETUP"
	RequestRestore        RequestType = "RESTORE"
	RequestGenerate       RequestType = "GENERATE"
	RequestConnectToShell RequestType = "CONNECT_TO_SHELL"
	RequestSolve          RequestType = "SOLVE"
	RequestStudentCwd     RequestType = "GET_STUDENT_CWD"
	RequestFiles          RequestType = "GET_FILES"
	RequestStop           RequestType = "STOP"
)

// Request is a marker interface implemented by all protocol requests.
type Request interface {
	GetType() RequestType
}

// SetupRequest is the first message of a fresh session: it configures the
// agent and asks it to generate the root puzzles. File references are paths
// relative to the staged data directory.
type SetupRequest struct {
	Type           RequestType       `json:"type"`
	Home           string            `json:"home"`
	User           string            `json:"user"`
	Generators     []string          `json:"generators"`
	NameDictionary string            `json:"name_dictionary"`
	ContentSources []string          `json:"content_sources,omitempty"`
	Resources      map[string]string `json:"resources,omitempty"`
	SetupScripts   []string          `json:"setup_scripts,omitempty"`
	SendCheckers   bool              `json:"send_checkers"`
}

// GetType implements Request.
func (r SetupRequest) GetType() RequestType { return RequestSetup }

// RestoreRequest is the first message after a snapshot relaunch: same
// configuration surface as SETUP but with already-generated puzzles to
// rehydrate instead of generators to run. The name pools are rebuilt from
// the staged files; File helpers redraw on collision with names already on
// disk, so a reused dictionary stays safe.
type RestoreRequest struct {
	Type           RequestType    `json:"type"`
	Home           string         `json:"home"`
	User           string         `json:"user"`
	NameDictionary string         `json:"name_dictionary"`
	ContentSources []string       `json:"content_sources,omitempty"`
	Puzzles        []*puzzle.Data `json:"puzzles"`
}

// GetType implements Request.
func (r RestoreRequest) GetType() RequestType { return RequestRestore }

// GenerateRequest runs the named generators, in order. Used mid-session for
// dependents unlocked by a solve.
type GenerateRequest struct {
	Type       RequestType `json:"type"`
	Generators []string    `json:"generators"`
}

// GetType implements Request.
func (r GenerateRequest) GetType() RequestType { return RequestGenerate }

// ConnectToShellRequest asks the agent to locate the student's interactive
// shell process by name.
type ConnectToShellRequest struct {
	Type RequestType `json:"type"`
	Name string      `json:"name"`
}

// GetType implements Request.
func (r ConnectToShellRequest) GetType() RequestType { return RequestConnectToShell }

// SolveRequest submits a solve attempt. Flag is nil when the puzzle's checker
// never asked for one.
type SolveRequest struct {
	Type     RequestType `json:"type"`
	PuzzleID string      `json:"puzzle_id"`
	Flag     *string     `json:"flag,omitempty"`
}

// GetType implements Request.
func (r SolveRequest) GetType() RequestType { return RequestSolve }

// StudentCwdRequest asks for the student shell's current working directory.
type StudentCwdRequest struct {
	Type RequestType `json:"type"`
}

// GetType implements Request.
func (r StudentCwdRequest) GetType() RequestType { return RequestStudentCwd }

// FilesRequest lists the direct children of an absolute folder inside the
// sandbox, seen with root privileges.
type FilesRequest struct {
	Type   RequestType `json:"type"`
	Folder string      `json:"folder"`
}

// GetType implements Request.
func (r FilesRequest) GetType() RequestType { return RequestFiles }

// StopRequest ends the session. It is the only request without a response.
type StopRequest struct {
	Type RequestType `json:"type"`
}

// GetType implements Request.
func (r StopRequest) GetType() RequestType { return RequestStop }

type rawRequest struct {
	Type RequestType `json:"type"`
}

// DecodeRequest converts raw JSON into a strongly typed request.
func DecodeRequest(data []byte) (Request, error) {
	var base rawRequest
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	switch base.Type {
	case RequestSetup:
		var req SetupRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode SETUP: %w", err)
		}
		if req.Home == "" || req.User == "" {
			return nil, errors.New("SETUP requires home and user")
		}
		if len(req.Generators) == 0 {
			return nil, errors.New("SETUP requires at least one generator")
		}
		if req.NameDictionary == "" {
			return nil, errors.New("SETUP requires a name dictionary")
		}
		return req, nil
	case RequestRestore:
		var req RestoreRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode RESTORE: %w", err)
		}
		if req.Home == "" || req.User == "" {
			return nil, errors.New("RESTORE requires home and user")
		}
		if req.NameDictionary == "" {
			return nil, errors.New("RESTORE requires a name dictionary")
		}
		if len(req.Puzzles) == 0 {
			return nil, errors.New("RESTORE requires puzzles")
		}
		return req, nil
	case RequestGenerate:
		var req GenerateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode GENERATE: %w", err)
		}
		if len(req.Generators) == 0 {
			return nil, errors.New("GENERATE requires at least one generator")
		}
		return req, nil
	case RequestConnectToShell:
		var req ConnectToShellRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode CONNECT_TO_SHELL: %w", err)
		}
		if req.Name == "" {
			return nil, errors.New("CONNECT_TO_SHELL requires a process name")
		}
		return req, nil
	case RequestSolve:
		var req SolveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode SOLVE: %w", err)
		}
		if req.PuzzleID == "" {
			return nil, errors.New("SOLVE requires puzzle_id")
		}
		return req, nil
	case RequestStudentCwd:
		var req StudentCwdRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode GET_STUDENT_CWD: %w", err)
		}
		return req, nil
	case RequestFiles:
		var req FilesRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode GET_FILES: %w", err)
		}
		if !path.IsAbs(req.Folder) {
			return nil, fmt.Errorf("GET_FILES requires an absolute folder, got %q", req.Folder)
		}
		return req, nil
	case RequestStop:
		var req StopRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode STOP: %w", err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("unknown request type: %s", base.Type)
	}
}

// NewSetupRequest constructs a SETUP request.
func NewSetupRequest(home, user string, generators []string, nameDictionary string, contentSources []string, resources map[string]string, setupScripts []string, sendCheckers bool) SetupRequest {
	return SetupRequest{
		Type:           RequestSetup,
		Home:           home,
		User:           user,
		Generators:     generators,
		NameDictionary: nameDictionary,
		ContentSources: contentSources,
		Resources:      resources,
		SetupScripts:   setupScripts,
		SendCheckers:   sendCheckers,
	}
}

// NewRestoreRequest constructs a RESTORE request.
func NewRestoreRequest(home, user, nameDictionary string, contentSources []string, puzzles []*puzzle.Data) RestoreRequest {
	return RestoreRequest{
		Type:           RequestRestore,
		Home:           home,
		User:           user,
		NameDictionary: nameDictionary,
		ContentSources: contentSources,
		Puzzles:        puzzles,
	}
}

// NewGenerateRequest constructs a GENERATE request.
func NewGenerateRequest(generators []string) GenerateRequest {
	return GenerateRequest{Type: RequestGenerate, Generators: generators}
}

// NewConnectToShellRequest constructs a CONNECT_TO_SHELL request.
func NewConnectToShellRequest(name string) ConnectToShellRequest {
	return ConnectToShellRequest{Type: RequestConnectToShell, Name: name}
}

// NewSolveRequest constructs a SOLVE request. flag may be nil.
func NewSolveRequest(puzzleID string, flag *string) SolveRequest {
	return SolveRequest{Type: RequestSolve, PuzzleID: puzzleID, Flag: flag}
}

// NewStudentCwdRequest constructs a GET_STUDENT_CWD request.
func NewStudentCwdRequest() StudentCwdRequest {
	return StudentCwdRequest{Type: RequestStudentCwd}
}

// NewFilesRequest constructs a GET_FILES request.
func NewFilesRequest(folder string) FilesRequest {
	return FilesRequest{Type: RequestFiles, Folder: folder}
}

// NewStopRequest constructs a STOP request.
func NewStopRequest() StopRequest {
	return StopRequest{Type: RequestStop}
}
