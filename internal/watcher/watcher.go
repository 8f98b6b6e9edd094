package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

// Filter selects the file paths that are reported.
type Filter func(path string) bool

type Callback func(path string)

func PDFFilter(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ExtFilter matches file extensions given without the leading dot.
func ExtFilter(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))]
		return ok
	}
}

type config struct {
	ops      fsnotify.Op
	skipDirs map[string]struct{}
}

type Option func(*config)

// WithOps sets the operations that report a path. Create only by default.
func WithOps(ops fsnotify.Op) Option {
	return func(c *config) {
		c.ops = ops
	}
}

// WithSkipDirs excludes directories by base name from watching and reporting.
func WithSkipDirs(names ...string) Option {
	return func(c *config) {
		for _, n := range names {
			c.skipDirs[n] = struct{}{}
		}
	}
}

// Watcher watches a directory tree. Matching paths are queued without limit by
// the event reader and handed to the callback by a single relay goroutine, so a
// slow callback never stalls fsnotify.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	filter Filter
	cb     Callback
	cfg    config

	mu     sync.Mutex
	queue  []string
	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New(root string, filter Filter, cb Callback, opts ...Option) (*Watcher, error) {
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: フォルダが存在しません: %s", appErr.ErrNotFound, root)
	}
	cfg := config{ops: fsnotify.Create, skipDirs: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&cfg)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create watcher: %v", appErr.ErrIO, err)
	}
	w := &Watcher{
		root:   root,
		fsw:    fsw,
		filter: filter,
		cb:     cb,
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	if err := w.addTree(root, false); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.wg.Add(2)
	go w.readLoop()
	go w.relayLoop()
	logutil.GetLogger(context.Background()).Info("watcher started", zap.String("root", root))
	return w, nil
}

func (w *Watcher) Root() string {
	return w.root
}

// Stop ends both goroutines and releases the fsnotify handle. Queued paths that
// were not delivered yet are dropped. Callbacks must not call Stop.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if err := w.fsw.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close watcher failed", zap.Error(err))
		}
		logutil.GetLogger(context.Background()).Info("watcher stopped", zap.String("root", w.root))
	})
}

// addTree adds dir and its subdirectories. With report set, matching files
// already inside are queued; they may predate the watch on a new directory.
func (w *Watcher) addTree(dir string, report bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("%w: walk %s: %v", appErr.ErrIO, dir, err)
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipped(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				if path == dir {
					return fmt.Errorf("%w: watch %s: %v", appErr.ErrIO, path, err)
				}
				logutil.GetLogger(context.Background()).Warn("watch subdir failed", zap.String("dir", path), zap.Error(err))
			}
			return nil
		}
		if report && w.filter(path) {
			w.enqueue(path)
		}
		return nil
	})
}

func (w *Watcher) skipped(name string) bool {
	_, ok := w.cfg.skipDirs[name]
	return ok
}

func (w *Watcher) underSkippedDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.skipped(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) readLoop() {
	defer w.wg.Done()
	logger := logutil.GetLogger(context.Background()).With(zap.String("root", w.root))
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.underSkippedDir(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(ev.Name, true); err != nil {
				logutil.GetLogger(context.Background()).Warn("watch new dir failed", zap.String("dir", ev.Name), zap.Error(err))
			}
			return
		}
	}
	if ev.Op&w.cfg.ops == 0 || !w.filter(ev.Name) {
		return
	}
	w.enqueue(ev.Name)
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	w.queue = append(w.queue, path)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) relayLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.wake:
		}
		w.mu.Lock()
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()
		for _, p := range batch {
			select {
			case <-w.stopCh:
				return
			default:
			}
			w.cb(p)
		}
	}
}
