package tutorial

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/shellcamp/shellcamp/internal/config"
	"github.com/shellcamp/shellcamp/internal/random"
)

// staged is the session data laid out for the sandbox volume. Paths are
// relative to the data dir, with forward slashes; host files are copied under
// numbered names so order survives and the sandbox never sees host paths.
type staged struct {
	dir        string
	dictionary string
	sources    []string
	resources  map[string]string
	scripts    []string
}

// buildStaging copies the tutorial's data files into a fresh temp directory
// shaped like the sandbox data dir. The caller removes dir once it has been
// staged into the volume.
func buildStaging(cfg *config.Config) (*staged, error) {
	dir, err := os.MkdirTemp("", "shellcamp-stage-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(dir)
		}
	}()
	s := &staged{dir: dir, dictionary: "name_dictionary.txt"}

	dictionary := []byte(random.DefaultNameDictionary())
	if cfg.NameDictionary != "" {
		dictionary, err = os.ReadFile(cfg.NameDictionary)
		if err != nil {
			return nil, fmt.Errorf("failed to read name dictionary: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, s.dictionary), dictionary, 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage name dictionary: %w", err)
	}

	if s.sources, err = stageGroup(dir, "content", cfg.ContentSources); err != nil {
		return nil, err
	}
	if s.scripts, err = stageGroup(dir, "scripts", cfg.SetupScripts); err != nil {
		return nil, err
	}

	if len(cfg.Resources) > 0 {
		hosts := make([]string, 0, len(cfg.Resources))
		for host := range cfg.Resources {
			hosts = append(hosts, host)
		}
		sort.Strings(hosts)
		rels, err := stageGroup(dir, "resources", hosts)
		if err != nil {
			return nil, err
		}
		s.resources = make(map[string]string, len(hosts))
		for i, host := range hosts {
			s.resources[rels[i]] = cfg.Resources[host]
		}
	}

	ok = true
	return s, nil
}

// stageGroup copies files into a subdirectory of the staging dir, prefixing
// each name with its index so config order is preserved on disk.
func stageGroup(dir, group string, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Join(dir, group), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir %s: %w", group, err)
	}
	rels := make([]string, len(files))
	for i, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		rel := path.Join(group, fmt.Sprintf("%02d_%s", i, filepath.Base(file)))
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", file, err)
		}
		rels[i] = rel
	}
	return rels, nil
}
