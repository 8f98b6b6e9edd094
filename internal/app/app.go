package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/analysis"
	"github.com/xxxsen/shoruichecker/internal/config"
	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/guideline"
	"github.com/xxxsen/shoruichecker/internal/history"
	"github.com/xxxsen/shoruichecker/internal/job"
	"github.com/xxxsen/shoruichecker/internal/model"
	"github.com/xxxsen/shoruichecker/internal/pdfmeta"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/repo"
	"github.com/xxxsen/shoruichecker/internal/review"
	"github.com/xxxsen/shoruichecker/internal/runner"
	"github.com/xxxsen/shoruichecker/internal/schedule"
	"github.com/xxxsen/shoruichecker/internal/settings"
	"github.com/xxxsen/shoruichecker/internal/watcher"
)

// App owns every long-lived component: the watch sessions, the pending list and
// the active policy.
type App struct {
	cfg       *config.Config
	settings  *settings.Store
	history   *history.Store
	runner    runner.Runner
	codec     *pdfmeta.Codec
	db        *sql.DB
	results   *repo.CheckResultRepo
	bus       *event.Bus
	pipeline  *analysis.Pipeline
	generator *guideline.Generator
	reviewer  *review.Reviewer
	scheduler *schedule.CronScheduler
	docs      watcher.Session

	mu      sync.Mutex
	policy  model.AnalyzePolicy
	pending []model.PendingFile
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func New(cfg *config.Config, r runner.Runner) (*App, error) {
	db, err := repo.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a := &App{
		cfg:      cfg,
		settings: settings.NewStore(cfg.SettingsPath, cfg.PolicyPath),
		history:  history.NewStore(cfg.HistoryDir),
		runner:   r,
		codec:    pdfmeta.New(),
		db:       db,
		results:  repo.NewCheckResultRepo(db),
		bus:      event.NewBus(0),
		pending:  make([]model.PendingFile, 0),
		now:      time.Now,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.policy = a.settings.LoadPolicy()
	a.pipeline = analysis.New(analysis.Deps{
		Runner:      r,
		History:     a.history,
		Embedder:    a.codec,
		Results:     a.results,
		Emitter:     a.bus,
		Model:       a.settings.Model,
		MaxParallel: cfg.Runner.MaxParallel,
	})
	a.generator = guideline.NewGenerator(r, a.codec, a.bus, a.settings.Model)
	a.reviewer = review.New(r, a.bus, a.settings.Model)
	return a, nil
}

func (a *App) Events() *event.Bus {
	return a.bus
}

func (a *App) Pipeline() *analysis.Pipeline {
	return a.pipeline
}

func (a *App) Settings() settings.Settings {
	return a.settings.Load()
}

// Restore resumes the watchers recorded in the settings. Failures are logged;
// a vanished folder must not keep the service from starting.
func (a *App) Restore(ctx context.Context) {
	logger := logutil.GetLogger(ctx)
	cur := a.settings.Load()
	if cur.WatchFolder != nil && *cur.WatchFolder != "" {
		if _, err := a.StartWatching(*cur.WatchFolder); err != nil {
			logger.Warn("restore pdf watcher failed", zap.String("folder", *cur.WatchFolder), zap.Error(err))
		}
	}
	if cur.CodeReviewEnabled && cur.CodeWatchFolder != nil && *cur.CodeWatchFolder != "" {
		if err := a.reviewer.Start(*cur.CodeWatchFolder); err != nil {
			logger.Warn("restore code watcher failed", zap.String("folder", *cur.CodeWatchFolder), zap.Error(err))
		}
	}
}

// StartScheduler registers the periodic jobs and starts them.
func (a *App) StartScheduler(ctx context.Context) error {
	s := schedule.NewCronScheduler()
	watchFolder := func() string {
		cur := a.settings.Load()
		if cur.WatchFolder == nil {
			return ""
		}
		return *cur.WatchFolder
	}
	if err := s.AddJob(job.NewGuidelineRefreshJob(watchFolder, a.codec, a.generator), a.cfg.GuidelineSchedule); err != nil {
		return err
	}
	if err := s.AddJob(job.NewCheckResultCleanupJob(a.results, a.cfg.ResultKeepDays), a.cfg.CleanupSchedule); err != nil {
		return err
	}
	s.Start(ctx)
	a.mu.Lock()
	a.scheduler = s
	a.mu.Unlock()
	return nil
}

func (a *App) TriggerJob(name string) error {
	a.mu.Lock()
	s := a.scheduler
	a.mu.Unlock()
	if s == nil {
		return fmt.Errorf("%w: scheduler not running", appErr.ErrUnavailable)
	}
	return s.Trigger(name)
}

func (a *App) StartWatching(folder string) (string, error) {
	if err := a.docs.Start(folder, watcher.PDFFilter, a.onPDF); err != nil {
		event.EmitLog(a.bus, fmt.Sprintf("監視開始エラー: %v", err), event.LevelError)
		return "", err
	}
	if _, err := a.settings.Update(func(s *settings.Settings) { s.WatchFolder = &folder }); err != nil {
		logutil.GetLogger(a.ctx).Warn("persist watch folder failed", zap.Error(err))
	}
	msg := "監視開始: " + folder
	event.EmitLog(a.bus, msg, event.LevelInfo)
	return msg, nil
}

func (a *App) StopWatching() string {
	a.docs.Stop()
	event.EmitLog(a.bus, "監視停止", event.LevelInfo)
	return "監視停止"
}

func (a *App) WatchFolder() string {
	return a.docs.Folder()
}

func (a *App) onPDF(path string) {
	logger := logutil.GetLogger(a.ctx).With(zap.String("path", path))
	st, err := os.Stat(path)
	if err != nil {
		logger.Debug("detected pdf vanished", zap.Error(err))
		return
	}
	file := model.PendingFile{
		Path:       path,
		Name:       filepath.Base(path),
		DetectedAt: a.now().Format(model.TimeLayout),
		SizeBytes:  uint64(st.Size()),
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = removePath(a.pending, path)
	a.pending = append(a.pending, file)
	auto := a.policy.ShouldAutoAnalyze(file)
	if auto {
		a.wg.Add(1)
	}
	a.mu.Unlock()

	logger.Info("pdf detected", zap.Uint64("size", file.SizeBytes), zap.Bool("auto_analyze", auto))
	a.bus.Emit(event.NamePdfDetected, event.PdfDetectedEvent{Path: path, Name: file.Name})
	a.bus.Emit(event.NameShowNotification, event.NotificationEvent{
		Title: "新しいPDFを検出",
		Body:  file.Name,
		Path:  path,
	})
	if !auto {
		return
	}
	go func() {
		defer a.wg.Done()
		if _, err := a.Analyze(a.ctx, []string{path}, "", ""); err != nil {
			logger.Warn("auto analysis failed", zap.Error(err))
		}
	}()
}

func (a *App) PendingFiles() []model.PendingFile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.PendingFile{}, a.pending...)
}

func (a *App) RemovePending(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = removePath(a.pending, path)
}

func (a *App) ClearPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = make([]model.PendingFile, 0)
}

func removePath(list []model.PendingFile, path string) []model.PendingFile {
	out := list[:0]
	for _, f := range list {
		if f.Path != path {
			out = append(out, f)
		}
	}
	return out
}

// Analyze runs an analysis job and drops the successfully analysed files from
// the pending list.
func (a *App) Analyze(ctx context.Context, paths []string, mode, instruction string) (*analysis.Report, error) {
	report, err := a.pipeline.Analyze(ctx, analysis.Job{Paths: paths, Mode: mode, Instruction: strings.TrimSpace(instruction)})
	if err != nil {
		return nil, err
	}
	for _, u := range report.Units {
		if u.OK() {
			a.RemovePending(u.Path)
		}
	}
	return report, nil
}

func (a *App) History() []model.AnalysisHistoryEntry {
	return a.history.ListAll()
}

func (a *App) CheckResults(ctx context.Context, limit int) ([]model.CheckResult, error) {
	return a.results.ListRecent(ctx, limit)
}

// JobResults lists the check results recorded by one analysis job.
func (a *App) JobResults(ctx context.Context, jobID string) ([]model.CheckResult, error) {
	return a.results.ListByJob(ctx, jobID)
}

func (a *App) Policy() model.AnalyzePolicy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy
}

func (a *App) SavePolicy(p model.AnalyzePolicy) error {
	if p.MaxSizeBytes > 0 && p.MinSizeBytes > p.MaxSizeBytes {
		return fmt.Errorf("%w: min_size_bytes exceeds max_size_bytes", appErr.ErrInvalidInput)
	}
	if p.IncludePatterns == nil {
		p.IncludePatterns = []string{}
	}
	if p.ExcludePatterns == nil {
		p.ExcludePatterns = []string{}
	}
	a.mu.Lock()
	a.policy = p
	a.mu.Unlock()
	return a.settings.SavePolicy(p)
}

func (a *App) Model() string {
	return a.settings.Model()
}

func (a *App) SetModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: model is required", appErr.ErrInvalidInput)
	}
	return a.settings.SetModel(name)
}

func (a *App) SetCodeWatchFolder(folder string) error {
	cur, err := a.settings.Update(func(s *settings.Settings) { s.CodeWatchFolder = &folder })
	if err != nil {
		return err
	}
	if cur.CodeReviewEnabled {
		return a.reviewer.Start(folder)
	}
	return nil
}

func (a *App) SetCodeReviewEnabled(enabled bool) error {
	cur, err := a.settings.Update(func(s *settings.Settings) { s.CodeReviewEnabled = enabled })
	if err != nil {
		return err
	}
	if !enabled {
		a.reviewer.Stop()
		return nil
	}
	if cur.CodeWatchFolder != nil && *cur.CodeWatchFolder != "" {
		return a.reviewer.Start(*cur.CodeWatchFolder)
	}
	return nil
}

func (a *App) CodeReviewRunning() bool {
	return a.reviewer.Running()
}

func (a *App) EmbedResult(path, result, instruction string) error {
	return a.codec.Embed(path, result, instruction)
}

func (a *App) ReadResult(path string) (*model.PdfEmbeddedData, bool) {
	return a.codec.Read(path)
}

// GenerateGuidelines rebuilds the guidelines of folder. Without explicit paths
// every analysed PDF directly inside folder is used.
func (a *App) GenerateGuidelines(ctx context.Context, folder string, paths []string, instruction string) (string, error) {
	if folder == "" && len(paths) > 0 {
		folder = filepath.Dir(paths[0])
	}
	if folder == "" {
		return "", fmt.Errorf("%w: folder is required", appErr.ErrInvalidInput)
	}
	if len(paths) == 0 {
		collected, err := guideline.CollectFolder(folder, a.codec)
		if err != nil {
			return "", err
		}
		paths = collected
	}
	return a.generator.Generate(ctx, folder, paths, instruction)
}

func (a *App) CheckCLI(ctx context.Context) (string, error) {
	return a.runner.Probe(ctx)
}

// Close stops the watchers and the scheduler, waits for background analyses and
// closes the database.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	s := a.scheduler
	a.mu.Unlock()

	a.docs.Stop()
	a.reviewer.Stop()
	a.cancel()
	if s != nil {
		s.Stop()
	}
	a.wg.Wait()
	return a.db.Close()
}
