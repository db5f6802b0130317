package agent

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/random"
)

// setup configures a fresh session: resolve the student account, build the
// random pools, apply resources, run the setup scripts and generate the root
// puzzles. Returns the generated puzzles in request order.
func (a *Agent) setup(req protocol.SetupRequest) ([]*puzzle.Data, error) {
	if err := a.configure(req.Home, req.User, req.NameDictionary, req.ContentSources); err != nil {
		return nil, err
	}
	a.sendCheckers = req.SendCheckers

	if err := a.applyResources(req.Resources); err != nil {
		return nil, err
	}
	if err := a.runSetupScripts(req.SetupScripts); err != nil {
		return nil, err
	}
	if err := a.dropPrivileges(); err != nil {
		return nil, err
	}

	puzzles, err := a.generate(req.Generators)
	if err != nil {
		return nil, err
	}
	a.logger.Info("session configured",
		zap.String("home", a.home),
		zap.String("user", a.user),
		zap.Int("puzzles", len(puzzles)))
	return puzzles, nil
}

// restore rehydrates a session after a snapshot relaunch. The filesystem
// already carries everything setup put there, so only the in-memory state is
// rebuilt: the pools from the staged files, the puzzles from their wire
// form. Puzzles without a checker spec stay ungradable.
func (a *Agent) restore(req protocol.RestoreRequest) error {
	if err := a.configure(req.Home, req.User, req.NameDictionary, req.ContentSources); err != nil {
		return err
	}
	if err := a.dropPrivileges(); err != nil {
		return err
	}

	restored := 0
	for _, data := range req.Puzzles {
		p, err := data.Rebuild(a.registry)
		if err != nil {
			return fmt.Errorf("failed to restore puzzle %s: %w", data.ID, err)
		}
		a.puzzles[p.ID] = p
		if p.Checker != nil && p.Checker.Fn != nil {
			restored++
		}
	}
	a.logger.Info("session restored",
		zap.Int("puzzles", len(req.Puzzles)),
		zap.Int("checkers", restored))
	return nil
}

// configure validates home and user and loads the random pools. Shared
// between setup and restore.
func (a *Agent) configure(home, userName, nameDictionary string, contentSources []string) error {
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return protocol.NewUserCodeError(fmt.Sprintf("home %q does not exist or is not a directory", home), "")
	}
	a.home = home
	if err := a.lookupUser(userName); err != nil {
		return err
	}

	dict, err := os.ReadFile(filepath.Join(a.dataDir, nameDictionary))
	if err != nil {
		return fmt.Errorf("failed to read name dictionary: %w", err)
	}
	sources := make([]string, 0, len(contentSources))
	for _, source := range contentSources {
		text, err := os.ReadFile(filepath.Join(a.dataDir, source))
		if err != nil {
			return fmt.Errorf("failed to read content source %s: %w", source, err)
		}
		sources = append(sources, string(text))
	}
	a.pool = random.NewPool(string(dict), sources)
	a.shellPID = 0
	return nil
}

// applyResources copies staged files to their destinations. Keys are paths
// relative to the data directory, values the destination (absolute, or
// relative to home). Copies and any directories created for them belong to
// the student.
func (a *Agent) applyResources(resources map[string]string) error {
	sources := make([]string, 0, len(resources))
	for source := range resources {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		dest := resources[source]
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(a.home, dest)
		}
		data, err := os.ReadFile(filepath.Join(a.dataDir, source))
		if err != nil {
			return protocol.NewUserCodeError(fmt.Sprintf("failed to read resource %s", source), err.Error())
		}
		if err := a.mkdirAllOwned(filepath.Dir(dest)); err != nil {
			return protocol.NewUserCodeError(fmt.Sprintf("failed to place resource %s", source), err.Error())
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return protocol.NewUserCodeError(fmt.Sprintf("failed to place resource %s", source), err.Error())
		}
		if err := os.Chown(dest, a.uid, a.gid); err != nil {
			return fmt.Errorf("failed to chown %s: %w", dest, err)
		}
	}
	return nil
}

// mkdirAllOwned is MkdirAll with every newly created directory chowned to
// the student, so resources never end up inside folders the student cannot
// write to.
func (a *Agent) mkdirAllOwned(dir string) error {
	var missing []string
	for probe := dir; ; probe = filepath.Dir(probe) {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		missing = append(missing, probe)
		if probe == filepath.Dir(probe) {
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Chown(missing[i], a.uid, a.gid); err != nil {
			return err
		}
	}
	return nil
}

// runSetupScripts runs each staged script with bash as the student, home as
// the working directory. A nonzero exit fails the setup with the combined
// output as diagnostics.
func (a *Agent) runSetupScripts(scripts []string) error {
	for _, script := range scripts {
		cmd := exec.Command("/bin/bash", filepath.Join(a.dataDir, script))
		cmd.Dir = a.home
		cmd.Env = append(os.Environ(),
			"HOME="+a.home,
			"USER="+a.user,
			"LOGNAME="+a.user,
		)
		if os.Getuid() == 0 {
			cmd.SysProcAttr = &syscall.SysProcAttr{
				Credential: &syscall.Credential{Uid: uint32(a.uid), Gid: uint32(a.gid)},
			}
		}
		var output bytes.Buffer
		cmd.Stdout = &output
		cmd.Stderr = &output
		if err := cmd.Run(); err != nil {
			context := strings.TrimSpace(output.String())
			if context == "" {
				context = err.Error()
			}
			return protocol.NewUserCodeError(fmt.Sprintf("setup script %s failed", script), context)
		}
	}
	return nil
}
