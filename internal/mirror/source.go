package mirror

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source is a local directory tree whose subdirectories are mirrored as folders.
type Source struct {
	root string // absolute path
}

// NewSource creates a Source rooted at the given directory.
// The directory must already exist.
func NewSource(root string) (*Source, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("mirror: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("mirror: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mirror: root is not a directory: %s", abs)
	}
	return &Source{root: abs}, nil
}

// Root returns the absolute root path.
func (s *Source) Root() string { return s.root }

// Rel converts an absolute path below root into a slash-separated relative
// path. Paths outside root are rejected.
func (s *Source) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", fmt.Errorf("mirror: relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("mirror: path escapes root: %s", abs)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it.
func (s *Source) safePath(rel string) (string, error) {
	if rel == "" {
		return s.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("mirror: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(s.root, cleaned)
	if !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) && abs != s.root {
		return "", fmt.Errorf("mirror: path escapes root: %s", rel)
	}
	return abs, nil
}

// Dirs walks dir (relative to root) and returns every directory below it as
// a slash-separated path relative to root. Parents always precede their
// children. Hidden directories and directories whose name is only whitespace
// are skipped along with their contents.
func (s *Source) Dirs(dir string) ([]string, error) {
	base, err := s.safePath(dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() || p == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.TrimSpace(d.Name()) == "" {
			return filepath.SkipDir
		}
		rel, err := s.Rel(p)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: list: %w", err)
	}
	return out, nil
}
