// Package storage provides sandboxed access to the shared directory tree
// and the security event journal abstraction.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fyshare/fyshare/internal/util"
)

var (
	// ErrRejected is wrapped by every Resolve failure.
	ErrRejected = errors.New("path rejected")
	// ErrOutsideRoot indicates a path that resolves outside the root.
	ErrOutsideRoot = fmt.Errorf("%w: outside root", ErrRejected)
	// ErrNotDirectory is returned by NewRoot and List for non-directories.
	ErrNotDirectory = errors.New("not a directory")
)

// EntryKind distinguishes directories from regular files in a listing.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// Entry is one visible child of a listed directory.
type Entry struct {
	Name    string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

func (e Entry) IsDir() bool { return e.Kind == KindDir }

// Root is a canonical, symlink-free absolute directory. Every path handed
// out by Resolve is the root itself or one of its descendants.
type Root struct {
	path string
}

// NewRoot validates dir and canonicalizes it.
func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("root directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving root directory: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving root directory: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("reading root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", real, ErrNotDirectory)
	}
	f, err := os.Open(real)
	if err != nil {
		return nil, fmt.Errorf("no read permission for directory %s: %w", real, err)
	}
	f.Close()
	return &Root{path: real}, nil
}

// Path returns the canonical root directory.
func (r *Root) Path() string { return r.path }

// Contains reports whether p is the root or lies beneath it. The check is
// lexical and respects path segment boundaries: root /a/b does not contain
// /a/bc.
func (r *Root) Contains(p string) bool {
	if p == r.path {
		return true
	}
	prefix := r.path
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// Resolve maps a slash-separated, already URL-decoded request path onto
// the root. "." and ".." segments and symlinks are fully resolved before
// the containment check. Any I/O failure during resolution is reported as
// a rejection wrapping the underlying error.
func (r *Root) Resolve(requestPath string) (string, error) {
	if strings.IndexByte(requestPath, 0) >= 0 {
		return "", fmt.Errorf("%w: NUL byte in path", ErrRejected)
	}
	joined := filepath.Join(r.path, filepath.FromSlash(requestPath))
	if !r.Contains(joined) {
		return "", ErrOutsideRoot
	}
	real, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if !r.Contains(real) {
		return "", ErrOutsideRoot
	}
	return real, nil
}

// Rel returns the slash-separated location of abs relative to the root,
// "." for the root itself.
func (r *Root) Rel(abs string) string {
	rel, err := filepath.Rel(r.path, abs)
	if err != nil {
		return "."
	}
	return filepath.ToSlash(rel)
}

// List returns the visible entries of dir, which must be a resolved path
// inside the root. Hidden entries (leading ".") are skipped; entries whose
// metadata cannot be read are skipped. Directories sort first, then names
// in caseless order.
func (r *Root) List(dir string) ([]Entry, error) {
	if !r.Contains(dir) {
		return nil, ErrOutsideRoot
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		// Stat follows symlinks so linked directories list as directories.
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		e := Entry{Name: name, ModTime: info.ModTime()}
		if info.IsDir() {
			e.Kind = KindDir
		} else {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return strings.Compare(util.FoldKey(a.Name), util.FoldKey(b.Name))
	})
	return entries, nil
}
