package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/model"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/prompt"
	"github.com/xxxsen/shoruichecker/internal/runner"
	"github.com/xxxsen/shoruichecker/internal/watcher"
)

const LogFileName = ".code-reviews.log"

var (
	DefaultExtensions = []string{"rs", "ts", "tsx", "js", "py", "go"}
	DefaultSkipDirs   = []string{".git", "node_modules", "target"}
)

type Option func(*Reviewer)

func WithGit(path string) Option {
	return func(r *Reviewer) {
		r.git = path
	}
}

func WithDebounce(d time.Duration) Option {
	return func(r *Reviewer) {
		r.debouncer = watcher.NewDebouncer(d)
	}
}

// Reviewer watches a source tree and asks the model to review every changed
// file, one at a time.
type Reviewer struct {
	session   watcher.Session
	runner    runner.Runner
	emitter   event.Emitter
	model     func() string
	debouncer *watcher.Debouncer
	git       string
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	logMu  sync.Mutex
}

func New(r runner.Runner, emitter event.Emitter, model func() string, opts ...Option) *Reviewer {
	if emitter == nil {
		emitter = event.Discard
	}
	rv := &Reviewer{
		runner:    r,
		emitter:   emitter,
		model:     model,
		debouncer: watcher.NewDebouncer(watcher.DefaultDebounce),
		git:       "git",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rv)
	}
	return rv
}

// Start replaces any running review watcher with one rooted at folder.
func (r *Reviewer) Start(folder string) error {
	if st, err := os.Stat(folder); err != nil || !st.IsDir() {
		return fmt.Errorf("%w: フォルダが存在しません: %s", appErr.ErrNotFound, folder)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	err := r.session.Start(folder, watcher.ExtFilter(DefaultExtensions...), func(path string) {
		r.onChange(ctx, folder, path)
	}, watcher.WithOps(fsnotify.Create|fsnotify.Write), watcher.WithSkipDirs(DefaultSkipDirs...))
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel
	logutil.GetLogger(ctx).Info("code review watcher started", zap.String("folder", folder))
	return nil
}

// Stop aborts the review in flight and stops watching. It reports whether a
// watcher was running.
func (r *Reviewer) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return r.session.Stop()
}

func (r *Reviewer) Folder() string {
	return r.session.Folder()
}

func (r *Reviewer) Running() bool {
	return r.session.Running()
}

func (r *Reviewer) onChange(ctx context.Context, folder, path string) {
	if !r.debouncer.Allow(path) {
		return
	}
	if _, err := r.ReviewFile(ctx, folder, path); err != nil && ctx.Err() == nil {
		logutil.GetLogger(ctx).Warn("code review failed", zap.String("path", path), zap.Error(err))
		event.EmitLog(r.emitter, fmt.Sprintf("レビューエラー: %s: %v", filepath.Base(path), err), event.LevelError)
	}
}

// ReviewFile reviews the pending change of path and records the result in the
// folder's review log. A file without changes returns (nil, nil).
func (r *Reviewer) ReviewFile(ctx context.Context, folder, path string) (*model.ReviewResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", path))
	content, isDiff, err := r.source(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		logger.Debug("no change to review")
		return nil, nil
	}
	name := filepath.Base(path)
	text := prompt.CodeReview(prompt.CodeReviewInput{FileName: name, Content: content, IsDiff: isDiff})
	out, err := r.runner.Run(ctx, runner.TextRequest(text, r.model()))
	if err != nil {
		return nil, err
	}
	result := &model.ReviewResult{
		Path:      path,
		Name:      name,
		Review:    out,
		Timestamp: r.now().Format(model.TimeLayout),
		HasIssues: prompt.HasIssues(out),
	}
	if err := r.appendLog(folder, result); err != nil {
		logger.Warn("write review log failed", zap.Error(err))
	}
	r.publish(result)
	return result, nil
}

func (r *Reviewer) publish(result *model.ReviewResult) {
	r.emitter.Emit(event.NameCodeReviewComplete, *result)
	if !result.HasIssues {
		event.EmitLog(r.emitter, "✓ レビュー完了: "+result.Name, event.LevelSuccess)
		return
	}
	event.EmitLog(r.emitter, fmt.Sprintf("✓ レビュー完了: %s (問題あり)", result.Name), event.LevelInfo)
	r.emitter.Emit(event.NameShowNotification, event.NotificationEvent{
		Title: "コードレビュー",
		Body:  fmt.Sprintf("%s: 問題が検出されました", result.Name),
		Path:  result.Path,
	})
}

// source returns the unstaged diff of path, then the staged diff, then the whole
// file. A missing git binary or a path outside a repository falls through to the
// file content.
func (r *Reviewer) source(ctx context.Context, path string) (string, bool, error) {
	for _, args := range [][]string{
		{"diff", "--", path},
		{"diff", "--cached", "--", path},
	} {
		out, err := r.runGit(ctx, filepath.Dir(path), args...)
		if err != nil {
			logutil.GetLogger(ctx).Debug("git diff unavailable", zap.String("path", path), zap.Error(err))
			break
		}
		if strings.TrimSpace(out) != "" {
			return out, true, nil
		}
	}
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %v", appErr.ErrIO, path, err)
	}
	return string(raw), false, nil
}

func (r *Reviewer) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.git, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (r *Reviewer) appendLog(folder string, result *model.ReviewResult) error {
	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrJSON, err)
	}
	r.logMu.Lock()
	defer r.logMu.Unlock()
	f, err := os.OpenFile(filepath.Join(folder, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrIO, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrIO, err)
	}
	return nil
}
