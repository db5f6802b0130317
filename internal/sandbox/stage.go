package sandbox

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultStageIgnores are always excluded from staging, on top of whatever a
// .stageignore file in the data directory adds.
var defaultStageIgnores = []string{
	".git",
	".stageignore",
}

// Stage copies the session data directory into the container's data volume.
// Everything is staged root-owned; sensitive files are added separately with
// StageFile and tighter modes.
func (m *Manager) Stage(ctx context.Context, inst *Instance, dir string) error {
	archive, err := buildStageArchive(dir)
	if err != nil {
		return fmt.Errorf("failed to build staging archive: %w", err)
	}
	if err := m.client.CopyToContainer(ctx, inst.ID, DataDir, bytes.NewReader(archive), container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy staging archive: %w", err)
	}
	return nil
}

// StageFile writes a single file into the container's data volume with the
// given mode and owner.
func (m *Manager) StageFile(ctx context.Context, inst *Instance, name string, data []byte, mode int64, uid, gid int) error {
	archive, err := fileArchive(name, data, mode, uid, gid)
	if err != nil {
		return fmt.Errorf("failed to build archive for %s: %w", name, err)
	}
	if err := m.client.CopyToContainer(ctx, inst.ID, DataDir, bytes.NewReader(archive), container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return nil
}

// buildStageArchive tars the data directory, applying .stageignore excludes.
func buildStageArchive(dir string) ([]byte, error) {
	patterns := make([]string, 0, len(defaultStageIgnores)+10)
	patterns = append(patterns, defaultStageIgnores...)
	if lines, err := readIgnoreLines(filepath.Join(dir, ".stageignore")); err == nil {
		patterns = append(patterns, lines...)
	}
	matcher := gitignore.CompileIgnoreLines(patterns...)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Uid, header.Gid = 0, 0
		header.Uname, header.Gname = "root", "root"
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := tw.Write(data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fileArchive builds a single-entry tar for one file.
func fileArchive(name string, data []byte, mode int64, uid, gid int) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	header := &tar.Header{
		Name: name,
		Mode: mode,
		Size: int64(len(data)),
		Uid:  uid,
		Gid:  gid,
	}
	if err := tw.WriteHeader(header); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readIgnoreLines reads patterns from a gitignore-style file.
func readIgnoreLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
