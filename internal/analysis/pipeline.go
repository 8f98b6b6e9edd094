package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/guideline"
	"github.com/xxxsen/shoruichecker/internal/history"
	"github.com/xxxsen/shoruichecker/internal/model"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/prompt"
	"github.com/xxxsen/shoruichecker/internal/runner"
)

const ModeCompare = "compare"

type Job struct {
	Paths       []string
	Mode        string
	Instruction string
	// SkipEmbed leaves the PDFs untouched.
	SkipEmbed bool
}

type UnitResult struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Result   string `json:"result,omitempty"`
	Err      error  `json:"-"`
}

func (u UnitResult) OK() bool {
	return u.Err == nil
}

type Report struct {
	JobID        string       `json:"job_id"`
	Text         string       `json:"text"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	Units        []UnitResult `json:"units"`
}

type Embedder interface {
	Embed(path, result, instruction string) error
}

type ResultSaver interface {
	Save(ctx context.Context, item *model.CheckResult) error
}

type Deps struct {
	Runner      runner.Runner
	History     *history.Store
	Embedder    Embedder
	Results     ResultSaver
	Emitter     event.Emitter
	Model       func() string
	MaxParallel int
}

// Pipeline turns analysis jobs into model calls and records successful results
// in the history store, the PDFs and the check result table. Recording is best
// effort; only the model call decides success.
type Pipeline struct {
	runner      runner.Runner
	history     *history.Store
	embedder    Embedder
	results     ResultSaver
	emitter     event.Emitter
	model       func() string
	maxParallel int
	now         func() time.Time
}

func New(deps Deps) *Pipeline {
	p := &Pipeline{
		runner:      deps.Runner,
		history:     deps.History,
		embedder:    deps.Embedder,
		results:     deps.Results,
		emitter:     deps.Emitter,
		model:       deps.Model,
		maxParallel: deps.MaxParallel,
		now:         time.Now,
	}
	if p.emitter == nil {
		p.emitter = event.Discard
	}
	return p
}

// Analyze runs job. Single-file and compare jobs return the model error as is;
// multi-file jobs always return a report with one unit per input path.
func (p *Pipeline) Analyze(ctx context.Context, job Job) (*Report, error) {
	if len(job.Paths) == 0 {
		return nil, fmt.Errorf("%w: ファイルが指定されていません", appErr.ErrInvalidInput)
	}
	jobID := uuid.NewString()
	modelName := p.model()
	if job.Mode == ModeCompare {
		return p.compare(ctx, jobID, modelName, job)
	}
	return p.individual(ctx, jobID, modelName, job)
}

func (p *Pipeline) emitInstruction(instruction string) {
	if instruction == "" {
		return
	}
	first := strings.SplitN(instruction, "\n", 2)[0]
	event.EmitLog(p.emitter, "カスタム指示: "+first, event.LevelInfo)
}

func (p *Pipeline) individual(ctx context.Context, jobID, modelName string, job Job) (*Report, error) {
	total := len(job.Paths)
	event.EmitLog(p.emitter, fmt.Sprintf("=== PDF個別解析開始 (%d ファイル) ===", total), event.LevelInfo)
	p.emitInstruction(job.Instruction)

	if total == 1 {
		path := job.Paths[0]
		name := filepath.Base(path)
		event.EmitLog(p.emitter, name+" を解析中...", event.LevelWave)
		out, err := p.analyzeOne(ctx, jobID, modelName, path, job)
		if err != nil {
			event.EmitLog(p.emitter, fmt.Sprintf("解析エラー: %v", err), event.LevelError)
			return nil, err
		}
		event.EmitLog(p.emitter, "✓ 解析完了", event.LevelSuccess)
		unit := UnitResult{FileName: name, Path: path, Result: out}
		return &Report{JobID: jobID, Text: out, Total: 1, SuccessCount: 1, Units: []UnitResult{unit}}, nil
	}

	event.EmitLog(p.emitter, fmt.Sprintf("%s で %d ファイルを並列解析中...", modelName, total), event.LevelWave)
	units := make([]UnitResult, total)
	var g errgroup.Group
	if p.maxParallel > 0 {
		g.SetLimit(p.maxParallel)
	}
	for i, path := range job.Paths {
		i, path := i, path
		g.Go(func() error {
			unit := UnitResult{FileName: filepath.Base(path), Path: path}
			unit.Result, unit.Err = p.safeAnalyzeOne(ctx, jobID, modelName, path, job)
			units[i] = unit
			p.emitter.Emit(event.NameAnalysisProgress, event.ProgressEvent{
				FileName:  unit.FileName,
				Completed: true,
				Success:   unit.OK(),
			})
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{JobID: jobID, Total: total, Units: units, Text: Combine(units)}
	for _, u := range units {
		if u.OK() {
			report.SuccessCount++
		}
	}
	event.EmitLog(p.emitter, fmt.Sprintf("✓ 解析完了 (%d/%d)", report.SuccessCount, total), event.LevelSuccess)
	return report, nil
}

// safeAnalyzeOne turns a panic in one unit into that unit's error.
func (p *Pipeline) safeAnalyzeOne(ctx context.Context, jobID, modelName, path string, job Job) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(ctx).Error("analysis unit panic", zap.String("path", path), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return p.analyzeOne(ctx, jobID, modelName, path, job)
}

func (p *Pipeline) analyzeOne(ctx context.Context, jobID, modelName, path string, job Job) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID), zap.String("path", path))
	name := filepath.Base(path)
	folder := filepath.Dir(path)

	text := prompt.Single(prompt.SingleInput{
		FileName:    name,
		Guidelines:  guideline.RelevantFor(folder, name),
		Instruction: job.Instruction,
		History:     history.BuildContext(p.history.Load(folder)),
	})
	start := time.Now()
	out, err := p.runner.Run(ctx, runner.TextWithFiles(text, modelName, []string{path}))
	if err != nil {
		logger.Warn("analysis failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
		p.saveResult(ctx, jobID, path, "", err)
		return "", err
	}
	logger.Info("analysis finished", zap.Duration("cost", time.Since(start)))

	if err := p.history.Record(folder, history.NewEntry(name, path, out, p.now())); err != nil {
		logger.Warn("save history failed", zap.Error(err))
	}
	p.embed(ctx, job, path, out)
	p.saveResult(ctx, jobID, path, out, nil)
	return out, nil
}

func (p *Pipeline) compare(ctx context.Context, jobID, modelName string, job Job) (*Report, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID))
	names := make([]string, 0, len(job.Paths))
	for _, path := range job.Paths {
		names = append(names, filepath.Base(path))
	}
	event.EmitLog(p.emitter, fmt.Sprintf("=== PDF照合解析開始 (%d ファイル) ===", len(job.Paths)), event.LevelInfo)
	for _, n := range names {
		event.EmitLog(p.emitter, "  - "+n, event.LevelInfo)
	}
	p.emitInstruction(job.Instruction)
	event.EmitLog(p.emitter, modelName+" で照合中...", event.LevelWave)

	folder := filepath.Dir(job.Paths[0])
	text := prompt.Compare(prompt.CompareInput{
		FileNames:   runner.AttachmentNames(job.Paths),
		Guidelines:  guideline.RelevantFor(folder, names...),
		Instruction: job.Instruction,
		History:     history.BuildContext(p.history.Load(folder)),
	})
	out, err := p.runner.Run(ctx, runner.TextWithFiles(text, modelName, job.Paths))
	if err != nil {
		logger.Warn("compare analysis failed", zap.Error(err))
		event.EmitLog(p.emitter, fmt.Sprintf("照合エラー: %v", err), event.LevelError)
		return nil, err
	}

	now := p.now()
	entries := make([]model.AnalysisHistoryEntry, 0, len(job.Paths))
	units := make([]UnitResult, 0, len(job.Paths))
	for i, path := range job.Paths {
		entries = append(entries, history.NewCompareEntry(names[i], path, out, names, now))
		units = append(units, UnitResult{FileName: names[i], Path: path, Result: out})
	}
	if err := p.history.Record(folder, entries...); err != nil {
		logger.Warn("save history failed", zap.Error(err))
	}
	for _, path := range job.Paths {
		p.embed(ctx, job, path, out)
		p.saveResult(ctx, jobID, path, out, nil)
	}
	event.EmitLog(p.emitter, "✓ 照合完了", event.LevelSuccess)
	return &Report{JobID: jobID, Text: out, Total: len(job.Paths), SuccessCount: len(job.Paths), Units: units}, nil
}

func (p *Pipeline) embed(ctx context.Context, job Job, path, result string) {
	if job.SkipEmbed || p.embedder == nil {
		return
	}
	if err := p.embedder.Embed(path, result, job.Instruction); err != nil {
		logutil.GetLogger(ctx).Warn("embed result failed", zap.String("path", path), zap.Error(err))
	}
}

func (p *Pipeline) saveResult(ctx context.Context, jobID, path, result string, runErr error) {
	if p.results == nil {
		return
	}
	item := NewCheckResult(jobID, path, result, runErr, p.now())
	if err := p.results.Save(ctx, item); err != nil {
		logutil.GetLogger(ctx).Warn("save check result failed", zap.String("path", path), zap.Error(err))
	}
}

// Combine renders per-unit results in input order. Failed units carry their
// error in place of a result.
func Combine(units []UnitResult) string {
	var b strings.Builder
	for _, u := range units {
		b.WriteString("\n## 📄 " + u.FileName + "\n")
		b.WriteString("---\n")
		if u.OK() {
			b.WriteString(u.Result)
		} else {
			b.WriteString(fmt.Sprintf("⚠ エラー: %v", u.Err))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// NewCheckResult classifies one analysis outcome.
func NewCheckResult(jobID, path, result string, runErr error, now time.Time) *model.CheckResult {
	item := &model.CheckResult{
		JobID:     jobID,
		FilePath:  path,
		FileName:  filepath.Base(path),
		CheckedAt: now.Format(model.TimeLayout),
	}
	switch {
	case runErr != nil:
		item.Status = model.CheckStatusError
		item.Message = runErr.Error()
	case len(history.ExtractIssues(result)) > 0:
		issues := history.ExtractIssues(result)
		item.Status = model.CheckStatusWarning
		item.Message = issues[0]
		item.Details = result
	default:
		item.Status = model.CheckStatusOK
		item.Message = firstNonEmptyLine(result)
		item.Details = result
	}
	return item
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
