// Package tutorial runs one training session end to end. It launches the
// sandbox container, stages the session data, drives the agent over the
// authenticated control channel, tracks the puzzle dependency forest on the
// host side and snapshots the filesystem after every student command so the
// session can be rewound.
package tutorial

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/config"
	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/retry"
	"github.com/shellcamp/shellcamp/internal/sandbox"
	"github.com/shellcamp/shellcamp/internal/transcript"
	"github.com/shellcamp/shellcamp/internal/undo"
)

const handshakeTimeout = 5 * time.Second

// dialPolicy paces connection attempts while the freshly exec'd agent binds
// its port.
var dialPolicy = retry.Policy{
	MaxRetries:   19,
	InitialDelay: 200 * time.Millisecond,
	Multiplier:   1,
}

// runner is the slice of the sandbox manager a session drives. It exists so
// tests can run a session without a Docker daemon.
type runner interface {
	Launch(ctx context.Context, spec sandbox.LaunchSpec) (*sandbox.Instance, error)
	Stage(ctx context.Context, inst *sandbox.Instance, dir string) error
	StageFile(ctx context.Context, inst *sandbox.Instance, name string, data []byte, mode int64, uid, gid int) error
	StartAgent(ctx context.Context, inst *sandbox.Instance, cmd []string) error
	Commit(ctx context.Context, inst *sandbox.Instance) (string, error)
	Relaunch(ctx context.Context, inst *sandbox.Instance, imageRef string) (*sandbox.Instance, error)
	RemoveImage(ctx context.Context, ref string) error
	RemoveVolume(ctx context.Context, name string) error
	Stop(ctx context.Context, inst *sandbox.Instance) error
	AttachCommand(inst *sandbox.Instance) *exec.Cmd
}

// caller is the request side of the control channel, satisfied by
// protocol.Client.
type caller interface {
	Call(req protocol.Request, out any) error
	Stop()
	Close() error
}

// Tutorial is one session: a config, a sandbox and the puzzle forest the
// student works through. All methods are safe for concurrent use; the
// notification listener and a UI loop share one instance.
type Tutorial struct {
	cfg      *config.Config
	registry *puzzle.Registry
	logger   *zap.Logger

	sandbox runner
	dial    func(ctx context.Context, inst *sandbox.Instance) (caller, error)

	mu     sync.Mutex
	inst   *sandbox.Instance
	agent  caller
	forest puzzle.Forest
	undo   *undo.Manager
	store  *transcript.Store

	secret      []byte
	notifyToken string
	notify      net.Listener

	sessionID  string
	shellName  string
	commandSeq int
	dictionary string
	sources    []string

	started bool
	stopped bool
	startAt time.Time
	endAt   time.Time
}

// New builds a session for the given config. Every template the config names
// must have a generator in the registry; an unknown one is rejected here,
// before any container is touched.
func New(cfg *config.Config, registry *puzzle.Registry, logger *zap.Logger) (*Tutorial, error) {
	manager, err := sandbox.NewManager(sandbox.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}
	return newTutorial(cfg, registry, manager, logger)
}

func newTutorial(cfg *config.Config, registry *puzzle.Registry, sb runner, logger *zap.Logger) (*Tutorial, error) {
	for _, name := range cfg.Templates() {
		if _, ok := registry.Generator(name); !ok {
			return nil, &puzzle.UnknownGeneratorError{Name: name, Known: registry.GeneratorNames()}
		}
	}
	t := &Tutorial{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		sandbox:  sb,
		forest:   cfg.Forest(),
	}
	t.dial = t.dialAgent
	return t, nil
}

// Start launches the sandbox and brings the session to its first prompt:
// data staged, agent authenticated, root puzzles generated, starting snapshot
// recorded. A failed start tears down whatever was already running.
func (t *Tutorial) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("session already started")
	}
	t.started = true
	t.sessionID = uuid.NewString()

	ok := false
	defer func() {
		if ok {
			return
		}
		if err := t.stopLocked(context.Background()); err != nil {
			t.logger.Warn("failed to clean up after aborted start", zap.Error(err))
		}
	}()

	if t.cfg.Transcript != "" {
		store, err := transcript.Open(ctx, t.cfg.Transcript)
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		t.store = store
	}

	secret, err := newToken()
	if err != nil {
		return err
	}
	t.secret = []byte(secret)
	t.notifyToken, err = newToken()
	if err != nil {
		return err
	}

	staging, err := buildStaging(t.cfg)
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging.dir)
	t.dictionary = staging.dictionary
	t.sources = staging.sources

	listener, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("failed to listen for prompt notifications: %w", err)
	}
	t.notify = listener
	port := listener.Addr().(*net.TCPAddr).Port

	inst, err := t.sandbox.Launch(ctx, sandbox.LaunchSpec{
		Image: t.cfg.Image,
		User:  t.cfg.User,
		Home:  t.cfg.Home,
		Shell: t.cfg.Shell,
		Env: []string{
			fmt.Sprintf("%s=host.docker.internal:%d", protocol.NotifyAddrEnv, port),
			"PROMPT_COMMAND=history -a; shellcamp-agent notify",
		},
	})
	if err != nil {
		return err
	}
	t.inst = inst

	if err := t.sandbox.Stage(ctx, inst, staging.dir); err != nil {
		return err
	}
	if err := t.sandbox.StageFile(ctx, inst, protocol.SecretFile, t.secret, 0o600, 0, 0); err != nil {
		return err
	}
	if err := t.sandbox.StageFile(ctx, inst, protocol.NotifyTokenFile, []byte(t.notifyToken), 0o644, 0, 0); err != nil {
		return err
	}
	if err := t.sandbox.StartAgent(ctx, inst, []string{"shellcamp-agent", "serve"}); err != nil {
		return err
	}

	agent, err := t.dial(ctx, inst)
	if err != nil {
		return err
	}
	t.agent = agent

	setup := protocol.NewSetupRequest(
		t.cfg.Home, t.cfg.User,
		t.forest.RootTemplates(),
		staging.dictionary, staging.sources, staging.resources, staging.scripts,
		t.cfg.UndoEnabled(),
	)
	var roots []*puzzle.Data
	if err := agent.Call(setup, &roots); err != nil {
		return fmt.Errorf("failed to set up the sandbox: %w", err)
	}
	if err := attachPuzzles([]*puzzle.Tree(t.forest), roots); err != nil {
		return err
	}

	var shell protocol.ConnectToShellResult
	if err := agent.Call(protocol.NewConnectToShellRequest(t.cfg.ShellName()), &shell); err != nil {
		return fmt.Errorf("failed to find the student shell: %w", err)
	}
	t.shellName = t.cfg.ShellName()

	t.undo = undo.NewManager(&dockerSession{t: t}, t.cfg.UndoEnabled(), t.logger)
	if err := t.undo.Commit(ctx); err != nil {
		return fmt.Errorf("failed to record the starting snapshot: %w", err)
	}

	t.startAt = time.Now()
	if t.store != nil {
		if err := t.store.BeginSession(ctx, t.sessionID, t.cfg.Image, t.startAt); err != nil {
			return err
		}
	}

	go t.serveNotify(listener)
	ok = true
	t.logger.Info("session started",
		zap.String("session", t.sessionID),
		zap.String("container", inst.ID),
		zap.Int("puzzles", len(roots)))
	return nil
}

// Stop ends the session and releases everything it holds: the container, the
// staging volume, every snapshot image and the transcript. Safe to call more
// than once, and safe to call on a session that never started.
func (t *Tutorial) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(ctx)
}

// stopLocked is the teardown path shared by Stop and a failed Start. Every
// step is attempted; the first failure is returned after all of them ran.
func (t *Tutorial) stopLocked(ctx context.Context) error {
	if t.stopped {
		return nil
	}
	t.stopped = true
	if t.endAt.IsZero() {
		t.endAt = time.Now()
	}

	var firstErr error
	fail := func(err error) {
		if err != nil {
			t.logger.Warn("session teardown step failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if t.agent != nil {
		t.agent.Stop()
		t.agent = nil
	}
	if t.notify != nil {
		fail(t.notify.Close())
		t.notify = nil
	}
	if t.inst != nil {
		fail(t.sandbox.Stop(ctx, t.inst))
	}
	// Snapshot images are only removable once no container runs from them.
	if t.undo != nil {
		fail(t.undo.Close(ctx))
	}
	if t.inst != nil {
		fail(t.sandbox.RemoveVolume(ctx, t.inst.Volume))
		t.inst = nil
	}
	if t.store != nil {
		fail(t.store.FinishSession(ctx, t.sessionID, t.endAt,
			t.forest.TotalScore(), t.forest.CurrentScore(), t.forest.IsFinished()))
		fail(t.store.Close())
		t.store = nil
	}
	return firstErr
}

// active reports whether the session has started and not yet stopped.
func (t *Tutorial) active() error {
	if !t.started || t.stopped {
		return errors.New("session is not running")
	}
	return nil
}

// running is active plus a live control channel. After a failed restore the
// channel is gone until another undo or restart rebuilds it.
func (t *Tutorial) running() error {
	if err := t.active(); err != nil {
		return err
	}
	if t.agent == nil {
		return errors.New("the sandbox is not reachable; undo or restart to recover")
	}
	return nil
}

// dialAgent connects to the agent's published port and authenticates. The
// agent was exec'd moments ago, so refused connections are retried for a few
// seconds before the attempt is declared dead.
func (t *Tutorial) dialAgent(ctx context.Context, inst *sandbox.Instance) (caller, error) {
	conn, err := retry.Do(ctx, dialPolicy, func(ctx context.Context) (*protocol.Conn, error) {
		raw, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", inst.Port), handshakeTimeout)
		if err != nil {
			return nil, err
		}
		conn := protocol.NewConn(raw)
		if err := conn.ClientHandshake(t.secret, handshakeTimeout); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}, func(attempt int, delay time.Duration, err error) {
		t.logger.Debug("agent not reachable yet", zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		startupErr := sandbox.NewStartupError("the agent never became reachable", inst.Logs())
		startupErr.Cause = err
		return nil, startupErr
	}
	return protocol.NewClient(conn, inst.Logs), nil
}

// ConnectToShell points session tracking at a different shell process, for
// tutorials where the student is expected to start a nested shell.
func (t *Tutorial) ConnectToShell(ctx context.Context, name string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.running(); err != nil {
		return 0, err
	}
	var result protocol.ConnectToShellResult
	if err := t.agent.Call(protocol.NewConnectToShellRequest(name), &result); err != nil {
		return 0, err
	}
	t.shellName = name
	return result.PID, nil
}

// StudentCwd returns the tracked shell's current working directory, or ""
// when it cannot be read.
func (t *Tutorial) StudentCwd(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.running(); err != nil {
		return "", err
	}
	var result protocol.StudentCwdResult
	if err := t.agent.Call(protocol.NewStudentCwdRequest(), &result); err != nil {
		return "", err
	}
	return result.Path, nil
}

// Files lists the direct children of an absolute folder inside the sandbox,
// seen with root privileges.
func (t *Tutorial) Files(ctx context.Context, folder string) ([]protocol.FileInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.running(); err != nil {
		return nil, err
	}
	if !path.IsAbs(folder) {
		return nil, fmt.Errorf("folder must be absolute, got %q", folder)
	}
	var infos []protocol.FileInfo
	if err := t.agent.Call(protocol.NewFilesRequest(folder), &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// AttachCommand returns the command that puts the student's terminal inside
// the sandbox shell. The caller owns running it.
func (t *Tutorial) AttachCommand() (*exec.Cmd, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(); err != nil {
		return nil, err
	}
	return t.sandbox.AttachCommand(t.inst), nil
}

// SessionID returns the unique id of this session, assigned at start.
func (t *Tutorial) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// CurrentPuzzles returns the unlocked puzzles in config order. The returned
// data is a copy; solving and undoing do not mutate it.
func (t *Tutorial) CurrentPuzzles() []*puzzle.Data {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clonePuzzles(t.forest.CurrentPuzzles())
}

// AllPuzzles returns every generated puzzle, locked ones included.
func (t *Tutorial) AllPuzzles() []*puzzle.Data {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clonePuzzles(t.forest.AllPuzzles())
}

// IsFinished reports whether every puzzle in the forest is solved.
func (t *Tutorial) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forest.IsFinished()
}

// TotalScore sums the scores of every generated puzzle.
func (t *Tutorial) TotalScore() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forest.TotalScore()
}

// CurrentScore sums the scores of solved puzzles.
func (t *Tutorial) CurrentScore() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forest.CurrentScore()
}

// Elapsed is the time the student has been working: from the first prompt to
// now, or to the session's end once stopped.
func (t *Tutorial) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startAt.IsZero() {
		return 0
	}
	if !t.endAt.IsZero() {
		return t.endAt.Sub(t.startAt)
	}
	return time.Since(t.startAt)
}

// clonePuzzles deep-copies a puzzle list so callers can hold it outside the
// session lock.
func clonePuzzles(puzzles []*puzzle.Data) []*puzzle.Data {
	out := make([]*puzzle.Data, len(puzzles))
	for i, p := range puzzles {
		out[i] = p.Clone()
	}
	return out
}

// newToken returns a fresh random credential as hex text.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate a session credential: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
