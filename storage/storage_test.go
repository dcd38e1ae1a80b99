package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkfile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "share")
	mkfile(t, filepath.Join(dir, "docs", "readme.txt"), "hello")
	root, err := NewRoot(dir)
	require.NoError(t, err)
	return root
}

func TestNewRoot(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := NewRoot("  ")
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := NewRoot(filepath.Join(t.TempDir(), "missing"))
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("File", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		mkfile(t, file, "x")
		_, err := NewRoot(file)
		assert.ErrorIs(t, err, ErrNotDirectory)
	})

	t.Run("CanonicalizesSymlink", func(t *testing.T) {
		base := t.TempDir()
		real := filepath.Join(base, "real")
		require.NoError(t, os.Mkdir(real, 0o755))
		link := filepath.Join(base, "link")
		require.NoError(t, os.Symlink(real, link))

		root, err := NewRoot(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(real)
		require.NoError(t, err)
		assert.Equal(t, want, root.Path())
	})
}

func TestResolve(t *testing.T) {
	root := newTestRoot(t)

	t.Run("AcceptsFileUnderRoot", func(t *testing.T) {
		got, err := root.Resolve("/docs/readme.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root.Path(), "docs", "readme.txt"), got)
	})

	t.Run("RootItself", func(t *testing.T) {
		got, err := root.Resolve("/")
		require.NoError(t, err)
		assert.Equal(t, root.Path(), got)
	})

	t.Run("DotSegmentsInsideRoot", func(t *testing.T) {
		got, err := root.Resolve("/docs/../docs/./readme.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root.Path(), "docs", "readme.txt"), got)
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := root.Resolve("/../../../../../../../../etc/passwd")
		assert.ErrorIs(t, err, ErrOutsideRoot)
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("RejectsRelativeTraversal", func(t *testing.T) {
		_, err := root.Resolve("../share-sibling/secret")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("MissingIsRejectedWithCause", func(t *testing.T) {
		_, err := root.Resolve("/docs/nope.txt")
		assert.ErrorIs(t, err, ErrRejected)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.False(t, errors.Is(err, ErrOutsideRoot))
	})

	t.Run("RejectsNUL", func(t *testing.T) {
		_, err := root.Resolve("/docs/readme.txt\x00.png")
		assert.ErrorIs(t, err, ErrRejected)
	})
}

func TestResolveSymlinks(t *testing.T) {
	base := t.TempDir()
	share := filepath.Join(base, "a", "b")
	sibling := filepath.Join(base, "a", "bc")
	mkfile(t, filepath.Join(share, "inside.txt"), "in")
	mkfile(t, filepath.Join(sibling, "secret.txt"), "secret")

	require.NoError(t, os.Symlink(filepath.Join(sibling, "secret.txt"), filepath.Join(share, "escape.txt")))
	require.NoError(t, os.Symlink(sibling, filepath.Join(share, "escape-dir")))
	require.NoError(t, os.Symlink(filepath.Join(share, "inside.txt"), filepath.Join(share, "alias.txt")))

	root, err := NewRoot(share)
	require.NoError(t, err)

	_, err = root.Resolve("/escape.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot, "file symlink to sibling directory must be rejected")

	_, err = root.Resolve("/escape-dir/secret.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot, "directory symlink to sibling must be rejected")

	got, err := root.Resolve("/alias.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root.Path(), "inside.txt"), got)
}

func TestContainsRespectsSegments(t *testing.T) {
	root := &Root{path: "/a/b"}
	assert.True(t, root.Contains("/a/b"))
	assert.True(t, root.Contains("/a/b/c"))
	assert.False(t, root.Contains("/a/bc"))
	assert.False(t, root.Contains("/a/bc/d"))
	assert.False(t, root.Contains("/a"))

	top := &Root{path: "/"}
	assert.True(t, top.Contains("/etc/passwd"))
}

func TestRel(t *testing.T) {
	root := newTestRoot(t)
	assert.Equal(t, ".", root.Rel(root.Path()))
	assert.Equal(t, "docs/readme.txt", root.Rel(filepath.Join(root.Path(), "docs", "readme.txt")))
}

func TestList(t *testing.T) {
	root := newTestRoot(t)
	mkfile(t, filepath.Join(root.Path(), "Zeta.txt"), "zz")
	mkfile(t, filepath.Join(root.Path(), "alpha.txt"), "a")
	mkfile(t, filepath.Join(root.Path(), ".hidden"), "h")
	require.NoError(t, os.Mkdir(filepath.Join(root.Path(), "Music"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root.Path(), "docs"), filepath.Join(root.Path(), "linked")))

	entries, err := root.List(root.Path())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"docs", "linked", "Music", "alpha.txt", "Zeta.txt"}, names)

	assert.True(t, entries[0].IsDir())
	assert.True(t, entries[1].IsDir(), "symlinked directory lists as directory")
	assert.Equal(t, int64(2), entries[4].Size)
	assert.Zero(t, entries[0].Size)
}

func TestListRejects(t *testing.T) {
	root := newTestRoot(t)

	_, err := root.List(filepath.Dir(root.Path()))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = root.List(filepath.Join(root.Path(), "docs", "readme.txt"))
	assert.ErrorIs(t, err, ErrNotDirectory)
}
