package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collect() (Callback, <-chan string) {
	ch := make(chan string, 64)
	return func(p string) { ch <- p }, ch
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func requireQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected path %s", got)
	case <-time.After(d):
	}
}

func TestFilters(t *testing.T) {
	require.True(t, PDFFilter("/a/b/契約書.PDF"))
	require.False(t, PDFFilter("/a/b/notes.txt"))
	f := ExtFilter("go", ".TS")
	require.True(t, f("main.go"))
	require.True(t, f("app.ts"))
	require.False(t, f("app.tsx"))
}

func TestWatcher_ReportsNewPDFs(t *testing.T) {
	dir := t.TempDir()
	cb, ch := collect()
	w, err := New(dir, PDFFilter, cb)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("x"), 0o644))
	target := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF"), 0o644))
	waitFor(t, ch, target)
}

func TestWatcher_Recursive(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old")
	require.NoError(t, os.Mkdir(existing, 0o755))
	cb, ch := collect()
	w, err := New(dir, PDFFilter, cb)
	require.NoError(t, err)
	defer w.Stop()

	inOld := filepath.Join(existing, "a.pdf")
	require.NoError(t, os.WriteFile(inOld, []byte("x"), 0o644))
	waitFor(t, ch, inOld)

	fresh := filepath.Join(dir, "new")
	require.NoError(t, os.Mkdir(fresh, 0o755))
	time.Sleep(100 * time.Millisecond)
	inNew := filepath.Join(fresh, "b.pdf")
	require.NoError(t, os.WriteFile(inNew, []byte("x"), 0o644))
	waitFor(t, ch, inNew)
}

func TestWatcher_SkipDirsAndOps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main"), 0o644))

	cb, ch := collect()
	w, err := New(dir, ExtFilter("go"), cb, WithOps(fsnotify.Create|fsnotify.Write), WithSkipDirs("node_modules"))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x.go"), []byte("x"), 0o644))
	requireQuiet(t, ch, 300*time.Millisecond)

	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o644))
	waitFor(t, ch, target)
}

func TestWatcher_SlowCallbackDoesNotBlockReader(t *testing.T) {
	dir := t.TempDir()
	release := make(chan struct{})
	got := make(chan string, 16)
	w, err := New(dir, PDFFilter, func(p string) {
		<-release
		got <- p
	})
	require.NoError(t, err)

	for _, n := range []string{"1.pdf", "2.pdf", "3.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	time.Sleep(200 * time.Millisecond)
	close(release)
	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case p := <-got:
			seen[filepath.Base(p)] = true
		case <-deadline:
			t.Fatalf("only saw %v", seen)
		}
	}
	w.Stop()
}

func TestNew_MissingFolder(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), PDFFilter, func(string) {})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSession_ReplaceAndStop(t *testing.T) {
	s := &Session{}
	require.False(t, s.Running())
	require.False(t, s.Stop())

	d1, d2 := t.TempDir(), t.TempDir()
	cb, ch := collect()
	require.NoError(t, s.Start(d1, PDFFilter, cb))
	require.Equal(t, d1, s.Folder())

	err := s.Start(filepath.Join(d1, "missing"), PDFFilter, cb)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, d1, s.Folder())

	require.NoError(t, s.Start(d2, PDFFilter, cb))
	require.Equal(t, d2, s.Folder())

	require.NoError(t, os.WriteFile(filepath.Join(d1, "old.pdf"), []byte("x"), 0o644))
	target := filepath.Join(d2, "new.pdf")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	select {
	case got := <-ch:
		require.Equal(t, target, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no event from the replacement watcher")
	}

	require.True(t, s.Stop())
	require.False(t, s.Running())
	require.Equal(t, "", s.Folder())
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	require.True(t, d.Allow("a"))
	now = now.Add(499 * time.Millisecond)
	require.False(t, d.Allow("a"))
	require.True(t, d.Allow("b"))
	now = now.Add(1 * time.Millisecond)
	require.True(t, d.Allow("a"))
}
