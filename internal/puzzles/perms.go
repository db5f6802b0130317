package puzzles

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

func registerPerms(reg *puzzle.Registry) error {
	generators := map[string]puzzle.GeneratorFunc{
		"perms.chown":       permsChown,
		"perms.writable":    permsWritable,
		"perms.executable":  permsExecutable,
		"perms.sudo_create": permsSudoCreate,
	}
	for name, gen := range generators {
		if err := reg.RegisterGenerator(name, gen); err != nil {
			return err
		}
	}
	if err := reg.RegisterChecker("perms.owner", nil, ownerChecker); err != nil {
		return err
	}
	if err := reg.RegisterChecker("perms.mode", nil, modeChecker); err != nil {
		return err
	}
	return reg.RegisterChecker("perms.exists", nil, existsChecker)
}

// permsChown plants a root-owned file in the home directory; the student has
// to take ownership with sudo.
func permsChown(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	path := filepath.Join(ctx.Home, "root_file")
	err := elevate(ctx, func() error {
		return os.WriteFile(path, nil, 0o644)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	checker, err := ctx.Checker("perms.owner", ownerOpts{Path: path, User: ctx.User})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Use sudo to take ownership of %q (your password is %q)",
		filepath.Base(path), ctx.User)
	return puzzle.NewScored(question, checker, 2)
}

// permsWritable drops a private file and asks for it to be world-writable.
func permsWritable(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	path, err := ctx.Rand.File(ctx.Home, "txt")
	if err != nil {
		return nil, err
	}
	content, err := ctx.Rand.Paragraphs(1, 1)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	checker, err := ctx.Checker("perms.mode", modeOpts{Path: path, Mask: 0o002})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Make %q world-writable", filepath.Base(path))
	return puzzle.New(question, checker)
}

// permsExecutable drops a script without the execute bit.
func permsExecutable(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	path, err := ctx.Rand.File(ctx.Home, "sh")
	if err != nil {
		return nil, err
	}
	script := "#!/bin/sh\necho 'Hello World!'\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	checker, err := ctx.Checker("perms.mode", modeOpts{Path: path, Mask: 0o100})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Make %q executable", filepath.Base(path))
	return puzzle.New(question, checker)
}

// permsSudoCreate names a file in a root-owned location and asks the student
// to create it.
func permsSudoCreate(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	path, err := ctx.Rand.File(ctx.Root, "")
	if err != nil {
		return nil, err
	}

	checker, err := ctx.Checker("perms.exists", existsOpts{
		Path: path,
		Hint: "You will need to use sudo.",
	})
	if err != nil {
		return nil, err
	}
	return puzzle.NewScored(fmt.Sprintf("Create %q", path), checker, 2)
}

type ownerOpts struct {
	Path string `json:"path"`
	User string `json:"user"`
}

// ownerChecker passes once the file belongs to the student, user and group
// both. A file still in the root group earns a pointed hint.
func ownerChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts ownerOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		account, err := user.Lookup(opts.User)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s: %w", opts.User, err)
		}
		uid, err := strconv.Atoi(account.Uid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse uid %q: %w", account.Uid, err)
		}
		gid, err := strconv.Atoi(account.Gid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gid %q: %w", account.Gid, err)
		}

		info, err := os.Stat(opts.Path)
		if err != nil {
			return false, nil
		}
		st, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return nil, fmt.Errorf("no ownership data for %s", opts.Path)
		}
		if int(st.Uid) == uid && int(st.Gid) == gid {
			return true, nil
		}
		if st.Gid == 0 {
			return "You need to change the group as well", nil
		}
		return false, nil
	}, nil
}

type modeOpts struct {
	Path string `json:"path"`
	// Mask is the permission bits that must all be set.
	Mask uint32 `json:"mask"`
}

func modeChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts modeOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		info, err := os.Stat(opts.Path)
		if err != nil {
			return false, nil
		}
		mask := os.FileMode(opts.Mask)
		return info.Mode().Perm()&mask == mask, nil
	}, nil
}

type existsOpts struct {
	Path string `json:"path"`
	Hint string `json:"hint,omitempty"`
}

// existsChecker passes once the path exists; until then it returns the hint,
// if one was configured.
func existsChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts existsOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		if _, err := os.Lstat(opts.Path); err == nil {
			return true, nil
		}
		if opts.Hint != "" {
			return opts.Hint, nil
		}
		return false, nil
	}, nil
}
