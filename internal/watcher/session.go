package watcher

import (
	"fmt"
	"os"
	"sync"
	"time"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

// Session owns at most one running Watcher. Replacing the watcher happens under
// the lock, so two Start calls never leave two watchers running.
type Session struct {
	mu sync.Mutex
	w  *Watcher
}

// Start validates folder, stops the current watcher and installs a new one. On
// a missing folder the current watcher keeps running.
func (s *Session) Start(folder string, filter Filter, cb Callback, opts ...Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, err := os.Stat(folder); err != nil || !st.IsDir() {
		return fmt.Errorf("%w: フォルダが存在しません: %s", appErr.ErrNotFound, folder)
	}
	if s.w != nil {
		s.w.Stop()
		s.w = nil
	}
	w, err := New(folder, filter, cb, opts...)
	if err != nil {
		return err
	}
	s.w = w
	return nil
}

// Stop reports whether a watcher was running.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return false
	}
	s.w.Stop()
	s.w = nil
	return true
}

func (s *Session) Folder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return ""
	}
	return s.w.Root()
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w != nil
}

const DefaultDebounce = 500 * time.Millisecond

// Debouncer admits a path at most once per window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window, last: make(map[string]time.Time), now: time.Now}
}

func (d *Debouncer) Allow(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if prev, ok := d.last[path]; ok && now.Sub(prev) < d.window {
		return false
	}
	d.last[path] = now
	if len(d.last) > 1024 {
		for p, t := range d.last {
			if now.Sub(t) >= d.window {
				delete(d.last, p)
			}
		}
	}
	return true
}
