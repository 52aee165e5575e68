package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Source is one resolved input: a local file or a remote URL.
type Source struct {
	Path     string // local path or URL
	Remote   bool
	FileYear int // evaluation period from the name, 0 when undetermined
}

var yearPattern = regexp.MustCompile(`(?:19|20|21)\d{2}`)

// dataExtensions are the file types picked up when expanding a directory.
var dataExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
}

// Resolve expands command arguments into concrete sources. URLs pass
// through; directories contribute their data files (one level, dotfiles
// skipped); glob patterns expand; plain files must exist. Duplicate paths
// keep their first occurrence. Argument order is preserved, with directory
// and glob expansions sorted by name.
func Resolve(args []string) ([]Source, error) {
	var sources []Source
	seen := make(map[string]bool)

	add := func(path string, remote bool) {
		if seen[path] {
			return
		}
		seen[path] = true
		sources = append(sources, Source{
			Path:     path,
			Remote:   remote,
			FileYear: yearFromName(path),
		})
	}

	addDir := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			if !dataExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			add(filepath.Join(dir, name), false)
		}
		return nil
	}

	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			add(arg, true)
			continue
		}

		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("pattern %q matched nothing", arg)
			}
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil {
					return nil, fmt.Errorf("source %s: %w", match, err)
				}
				if info.IsDir() {
					if err := addDir(match); err != nil {
						return nil, err
					}
				} else {
					add(match, false)
				}
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", arg, err)
		}
		if info.IsDir() {
			if err := addDir(arg); err != nil {
				return nil, err
			}
		} else {
			add(arg, false)
		}
	}

	return sources, nil
}

// yearFromName extracts the evaluation year from a source name: the first
// 4-digit year in the base name, falling back to the full path. A
// file-year column in the source overrides this.
func yearFromName(path string) int {
	if m := yearPattern.FindString(filepath.Base(path)); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	if m := yearPattern.FindString(path); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	return 0
}
