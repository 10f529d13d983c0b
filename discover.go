package rubyscope

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jward/rubyscope/internal/syntax"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"tmp":          true,
	"log":          true,
	"coverage":     true,
}

// AnalyzeDirectory discovers the Ruby files under root and analyzes them
// with AnalyzeFiles. If root is inside a git repository, uses git ls-files
// to respect .gitignore. Falls back to a filesystem walk (skipping hidden
// dirs, vendor, node_modules, tmp, log and coverage).
func (e *Engine) AnalyzeDirectory(ctx context.Context, root string) ([]*FileAnalysis, error) {
	paths, err := ListRubyFiles(root)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeFiles(ctx, paths)
}

// ListRubyFiles returns the Ruby files under root in sorted order.
func ListRubyFiles(root string) ([]string, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available, fall back to walk.
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root.
func gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if syntax.IsRubyFile(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if syntax.IsRubyFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rubyscope: walk %s: %w", root, err)
	}
	return paths, nil
}
