package agent

import (
	"os"
	"path/filepath"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

// files lists the direct children of an absolute folder with root's view of
// the filesystem. A missing folder is an empty listing, and entries that
// cannot be examined are skipped rather than failing the whole call; the
// host uses this to draw a file tree, not to audit the filesystem.
func (a *Agent) files(folder string) ([]protocol.FileInfo, error) {
	infos := []protocol.FileInfo{}
	err := a.elevated(func() error {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			full := filepath.Join(folder, entry.Name())
			info, err := os.Lstat(full)
			if err != nil {
				continue
			}
			symlink := info.Mode()&os.ModeSymlink != 0
			dir := info.IsDir()
			if symlink {
				// Resolve the link before asking whether it is a directory;
				// a dangling link simply reports false.
				if target, err := os.Stat(full); err == nil {
					dir = target.IsDir()
				} else {
					dir = false
				}
			}
			infos = append(infos, protocol.FileInfo{Dir: dir, Symlink: symlink, Path: full})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
