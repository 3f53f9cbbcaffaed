package mirror

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/folderclient"
	"github.com/starford/arbor/internal/folderdb"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/testutil"
	"github.com/starford/arbor/internal/tree"
)

// mirrorTestEnv sets up a source dir, a folder service and a store.
func mirrorTestEnv(t *testing.T) (string, *Source, *store.Store, *folderdb.DB) {
	t.Helper()
	dir := t.TempDir()
	src, err := NewSource(dir)
	require.NoError(t, err)

	srv, db := testutil.TestServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(folderclient.New(srv.URL), store.WithLogger(logger))
	t.Cleanup(st.Close)
	return dir, src, st, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func namesUnder(t *testing.T, db *folderdb.DB, parentID string) []string {
	t.Helper()
	recs, err := db.List(context.Background())
	require.NoError(t, err)
	parent, ok := tree.Find(tree.Build(recs), parentID)
	if !ok {
		return nil
	}
	out := []string{}
	for _, c := range parent.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestSourceDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "file.txt"), []byte("x"), 0o644))

	src, err := NewSource(dir)
	require.NoError(t, err)

	dirs, err := src.Dirs("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b"}, dirs)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "  ", "inner"), 0o755))
	dirs, err = src.Dirs("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b"}, dirs, "blank directory names are skipped")

	_, err = src.Dirs("../outside")
	assert.Error(t, err)
}

func TestNewSourceRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewSource(f)
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	dir, src, st, db := mirrorTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "drafts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "music"), 0o755))

	m := New(st, src, models.Ptr(tree.RootID), nil)
	n, err := m.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"docs", "music"}, namesUnder(t, db, tree.RootID))
	docsID, ok := m.FolderID("docs")
	require.True(t, ok)
	assert.Equal(t, []string{"drafts"}, namesUnder(t, db, docsID))

	// A second import finds everything in place.
	n, err = m.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	count, err := db.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestImportTrimsDirectoryNames(t *testing.T) {
	dir, src, st, db := mirrorTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes ", " drafts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "   "), 0o755))

	m := New(st, src, models.Ptr(tree.RootID), nil)
	n, err := m.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Later runs start with an empty mapping and must find the trimmed names.
	for i := 0; i < 2; i++ {
		n, err = New(st, src, models.Ptr(tree.RootID), nil).Import(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	assert.Equal(t, []string{"notes"}, namesUnder(t, db, tree.RootID))
	notesID, ok := m.FolderID("notes ")
	require.True(t, ok)
	assert.Equal(t, []string{"drafts"}, namesUnder(t, db, notesID))

	count, err := db.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestImportUnknownParent(t *testing.T) {
	_, src, st, _ := mirrorTestEnv(t)
	m := New(st, src, models.Ptr("missing"), nil)
	_, err := m.Import(context.Background())
	assert.Error(t, err)
}

func TestWatchMirrorsChanges(t *testing.T) {
	dir, src, st, db := mirrorTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old"), 0o755))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(st, src, models.Ptr(tree.RootID), logger)
	_, err := m.Import(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "fresh"), 0o755))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := m.FolderID("fresh")
		return ok
	}, "new directory was not mirrored")

	require.NoError(t, os.Remove(filepath.Join(dir, "old")))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := m.FolderID("old")
		return !ok
	}, "removed directory was not deleted")

	assert.Equal(t, []string{"fresh"}, namesUnder(t, db, tree.RootID))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
