package puzzles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shellcamp/shellcamp/internal/puzzle"
)

func registerFiles(reg *puzzle.Registry) error {
	if err := reg.RegisterGenerator("files.copy", filesCopy); err != nil {
		return err
	}
	if err := reg.RegisterGenerator("files.remove", filesRemove); err != nil {
		return err
	}
	if err := reg.RegisterChecker("files.mirror", nil, mirrorChecker); err != nil {
		return err
	}
	return reg.RegisterChecker("files.gone", []string{puzzle.ParamFS}, goneChecker)
}

// filesCopy builds a small tree under ~/folder and asks for a full copy.
func filesCopy(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	src := filepath.Join(ctx.Home, "folder")
	if err := os.MkdirAll(src, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", src, err)
	}
	if err := fillTree(ctx, src, 6); err != nil {
		return nil, err
	}
	dst := src + " (copy)"

	checker, err := ctx.Checker("files.mirror", mirrorOpts{Src: src, Dst: dst})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Copy %q to %q", filepath.Base(src), filepath.Base(dst))
	return puzzle.NewScored(question, checker, 2)
}

// filesRemove builds a tree under a random folder and asks for it to be
// deleted.
func filesRemove(ctx *puzzle.GenContext) (*puzzle.Puzzle, error) {
	folder, err := ctx.Rand.File(ctx.Home, "")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", folder, err)
	}
	if err := fillTree(ctx, folder, 4); err != nil {
		return nil, err
	}

	checker, err := ctx.Checker("files.gone", goneOpts{Path: folder})
	if err != nil {
		return nil, err
	}
	question := fmt.Sprintf("Delete %q", filepath.Base(folder))
	return puzzle.New(question, checker)
}

// fillTree scatters count content files through random subfolders of root.
func fillTree(ctx *puzzle.GenContext, root string, count int) error {
	for i := 0; i < count; i++ {
		folder, err := ctx.Rand.Folder(root, 1, 2)
		if err != nil {
			return err
		}
		file, err := ctx.Rand.File(folder, "txt")
		if err != nil {
			return err
		}
		content, err := ctx.Rand.Paragraphs(1, 2)
		if err != nil {
			return err
		}
		if err := writeDeep(file, content); err != nil {
			return err
		}
	}
	return nil
}

type mirrorOpts struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// mirrorChecker passes when dst replicates src exactly: same entries, same
// file contents, recursively.
func mirrorChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts mirrorOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		srcInfo, err := os.Stat(opts.Src)
		if err != nil || !srcInfo.IsDir() {
			return false, nil
		}
		dstInfo, err := os.Stat(opts.Dst)
		if err != nil || !dstInfo.IsDir() {
			return false, nil
		}
		same, err := sameTree(opts.Src, opts.Dst)
		if err != nil {
			return nil, err
		}
		return same, nil
	}, nil
}

// sameTree compares two directories entry by entry.
func sameTree(src, dst string) (bool, error) {
	srcEntries, err := os.ReadDir(src)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", src, err)
	}
	dstEntries, err := os.ReadDir(dst)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", dst, err)
	}
	if len(srcEntries) != len(dstEntries) {
		return false, nil
	}
	byName := make(map[string]os.DirEntry, len(dstEntries))
	for _, entry := range dstEntries {
		byName[entry.Name()] = entry
	}
	for _, entry := range srcEntries {
		other, ok := byName[entry.Name()]
		if !ok || entry.IsDir() != other.IsDir() {
			return false, nil
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			same, err := sameTree(srcPath, dstPath)
			if err != nil || !same {
				return same, err
			}
			continue
		}
		srcData, err := os.ReadFile(srcPath)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", srcPath, err)
		}
		dstData, err := os.ReadFile(dstPath)
		if err != nil {
			return false, nil
		}
		if !bytes.Equal(srcData, dstData) {
			return false, nil
		}
	}
	return true, nil
}

type goneOpts struct {
	Path string `json:"path"`
}

// goneChecker passes once the path no longer exists, checked through the
// read-only filesystem view so even an unreadable leftover counts as present.
func goneChecker(raw json.RawMessage) (puzzle.CheckerFunc, error) {
	var opts goneOpts
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return func(args map[string]any) (any, error) {
		view, ok := args[puzzle.ParamFS].(fs.FS)
		if !ok {
			return nil, fmt.Errorf("filesystem view not bound")
		}
		rel := strings.TrimPrefix(filepath.Clean(opts.Path), "/")
		if _, err := fs.Stat(view, rel); err == nil {
			return false, nil
		}
		return true, nil
	}, nil
}
