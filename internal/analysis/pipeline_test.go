package analysis

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/history"
	"github.com/xxxsen/shoruichecker/internal/model"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/runner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu       sync.Mutex
	reqs     []runner.Request
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (f *fakeRunner) Name() string { return "fake" }

func (f *fakeRunner) Probe(context.Context) (string, error) { return "fake", nil }

func (f *fakeRunner) Run(_ context.Context, req runner.Request) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	time.Sleep(f.delay)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	names := make([]string, 0, len(req.Files))
	for _, p := range req.Files {
		names = append(names, filepath.Base(p))
	}
	joined := strings.Join(names, ",")
	switch {
	case strings.Contains(joined, "bad"):
		return "", errors.New("exit code 1: quota")
	case strings.Contains(joined, "panic"):
		panic("runner exploded")
	case strings.Contains(joined, "warn"):
		return "## 書類\n⚠ 金額不一致\n", nil
	}
	return "✓ OK: " + joined, nil
}

type embedCall struct {
	path, result, instruction string
}

type recordEmbedder struct {
	mu    sync.Mutex
	calls []embedCall
}

func (r *recordEmbedder) Embed(path, result, instruction string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, embedCall{path, result, instruction})
	return nil
}

type recordResults struct {
	mu    sync.Mutex
	items []*model.CheckResult
}

func (r *recordResults) Save(_ context.Context, item *model.CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

type fixture struct {
	pipeline *Pipeline
	runner   *fakeRunner
	history  *history.Store
	embedder *recordEmbedder
	results  *recordResults
	events   *event.Recorder
	folder   string
}

func newFixture(t *testing.T, maxParallel int) *fixture {
	f := &fixture{
		runner:   &fakeRunner{},
		history:  history.NewStore(t.TempDir()),
		embedder: &recordEmbedder{},
		results:  &recordResults{},
		events:   &event.Recorder{},
		folder:   t.TempDir(),
	}
	f.pipeline = New(Deps{
		Runner:      f.runner,
		History:     f.history,
		Embedder:    f.embedder,
		Results:     f.results,
		Emitter:     f.events,
		Model:       func() string { return "gemini-2.5-pro" },
		MaxParallel: maxParallel,
	})
	f.pipeline.now = func() time.Time { return time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.folder, name)
}

func (f *fixture) logMessages() []string {
	out := make([]string, 0)
	for _, ev := range f.events.Named(event.NameLog) {
		out = append(out, ev.Payload.(event.LogEvent).Message)
	}
	return out
}

func TestAnalyze_NoPaths(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.pipeline.Analyze(context.Background(), Job{})
	require.ErrorIs(t, err, appErr.ErrInvalidInput)
	require.Empty(t, f.runner.reqs)
	require.Empty(t, f.events.Events())
}

func TestAnalyze_SingleFile(t *testing.T) {
	f := newFixture(t, 0)
	path := f.path("見積書.pdf")
	report, err := f.pipeline.Analyze(context.Background(), Job{Paths: []string{path}, Instruction: "金額を確認\n詳細"})
	require.NoError(t, err)
	require.Equal(t, "✓ OK: 見積書.pdf", report.Text)
	require.Equal(t, 1, report.SuccessCount)

	require.Len(t, f.runner.reqs, 1)
	req := f.runner.reqs[0]
	require.Equal(t, []string{path}, req.Files)
	require.Equal(t, "gemini-2.5-pro", req.Model)
	require.Contains(t, req.Prompt, "ファイル: 見積書.pdf")
	require.Contains(t, req.Prompt, "金額を確認")

	h := f.history.Load(f.folder)
	require.Len(t, h.Entries, 1)
	require.Equal(t, "2024-07-01 09:00:00", h.Entries[0].AnalyzedAt)
	require.Equal(t, []embedCall{{path, "✓ OK: 見積書.pdf", "金額を確認\n詳細"}}, f.embedder.calls)
	require.Len(t, f.results.items, 1)
	require.Equal(t, model.CheckStatusOK, f.results.items[0].Status)
	require.Equal(t, report.JobID, f.results.items[0].JobID)

	msgs := f.logMessages()
	require.Equal(t, "=== PDF個別解析開始 (1 ファイル) ===", msgs[0])
	require.Contains(t, msgs, "カスタム指示: 金額を確認")
	require.Contains(t, msgs, "見積書.pdf を解析中...")
	require.Contains(t, msgs, "✓ 解析完了")
}

func TestAnalyze_SingleFileFailure(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.pipeline.Analyze(context.Background(), Job{Paths: []string{f.path("bad.pdf")}})
	require.EqualError(t, err, "exit code 1: quota")
	require.Empty(t, f.history.Load(f.folder).Entries)
	require.Empty(t, f.embedder.calls)
	require.Len(t, f.results.items, 1)
	require.Equal(t, model.CheckStatusError, f.results.items[0].Status)
	require.Contains(t, f.logMessages(), "解析エラー: exit code 1: quota")
}

func TestAnalyze_ParallelPartialFailure(t *testing.T) {
	f := newFixture(t, 0)
	paths := []string{f.path("a.pdf"), f.path("bad.pdf"), f.path("c.pdf")}
	report, err := f.pipeline.Analyze(context.Background(), Job{Paths: paths})
	require.NoError(t, err)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 2, report.SuccessCount)
	require.Len(t, report.Units, 3)
	require.Equal(t, "bad.pdf", report.Units[1].FileName)
	require.False(t, report.Units[1].OK())

	want := "\n## 📄 a.pdf\n---\n✓ OK: a.pdf\n\n" +
		"\n## 📄 bad.pdf\n---\n⚠ エラー: exit code 1: quota\n\n" +
		"\n## 📄 c.pdf\n---\n✓ OK: c.pdf\n\n"
	require.Equal(t, want, report.Text)

	progress := f.events.Named(event.NameAnalysisProgress)
	require.Len(t, progress, 3)
	success := 0
	for _, ev := range progress {
		if ev.Payload.(event.ProgressEvent).Success {
			success++
		}
	}
	require.Equal(t, 2, success)

	require.Len(t, f.history.Load(f.folder).Entries, 2)
	require.Len(t, f.embedder.calls, 2)
	msgs := f.logMessages()
	require.Contains(t, msgs, "gemini-2.5-pro で 3 ファイルを並列解析中...")
	require.Equal(t, "✓ 解析完了 (2/3)", msgs[len(msgs)-1])
}

func TestAnalyze_PanicBecomesUnitError(t *testing.T) {
	f := newFixture(t, 0)
	report, err := f.pipeline.Analyze(context.Background(), Job{Paths: []string{f.path("a.pdf"), f.path("panic.pdf")}})
	require.NoError(t, err)
	require.Equal(t, 1, report.SuccessCount)
	require.Contains(t, report.Units[1].Err.Error(), "runner exploded")
}

func TestAnalyze_MaxParallel(t *testing.T) {
	f := newFixture(t, 2)
	f.runner.delay = 30 * time.Millisecond
	paths := []string{f.path("1.pdf"), f.path("2.pdf"), f.path("3.pdf"), f.path("4.pdf"), f.path("5.pdf")}
	report, err := f.pipeline.Analyze(context.Background(), Job{Paths: paths})
	require.NoError(t, err)
	require.Equal(t, 5, report.SuccessCount)
	require.LessOrEqual(t, atomic.LoadInt32(&f.runner.peak), int32(2))
}

func TestAnalyze_Compare(t *testing.T) {
	f := newFixture(t, 0)
	paths := []string{f.path("見積書.pdf"), f.path("契約書.pdf")}
	report, err := f.pipeline.Analyze(context.Background(), Job{Paths: paths, Mode: ModeCompare})
	require.NoError(t, err)
	require.Equal(t, "✓ OK: 見積書.pdf,契約書.pdf", report.Text)
	require.Len(t, f.runner.reqs, 1)
	require.Equal(t, paths, f.runner.reqs[0].Files)

	h := f.history.Load(f.folder)
	require.Len(t, h.Entries, 2)
	for _, e := range h.Entries {
		require.Equal(t, history.CompareType, *e.DocumentType)
		require.Equal(t, "【照合解析】対象: 見積書.pdf, 契約書.pdf", e.Summary)
	}
	require.Len(t, f.embedder.calls, 2)
	require.Len(t, f.results.items, 2)

	msgs := f.logMessages()
	require.Equal(t, "=== PDF照合解析開始 (2 ファイル) ===", msgs[0])
	require.Equal(t, "  - 見積書.pdf", msgs[1])
	require.Contains(t, msgs, "gemini-2.5-pro で照合中...")
	require.Contains(t, msgs, "✓ 照合完了")
}

func TestAnalyze_CompareFailureMutatesNothing(t *testing.T) {
	f := newFixture(t, 0)
	paths := []string{f.path("a.pdf"), f.path("bad.pdf")}
	_, err := f.pipeline.Analyze(context.Background(), Job{Paths: paths, Mode: ModeCompare})
	require.Error(t, err)
	require.Empty(t, f.history.Load(f.folder).Entries)
	require.Empty(t, f.embedder.calls)
	require.Empty(t, f.results.items)
	require.Contains(t, f.logMessages(), "照合エラー: exit code 1: quota")
}

func TestAnalyze_HistoryFeedsNextPrompt(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.pipeline.Analyze(context.Background(), Job{Paths: []string{f.path("warn.pdf")}})
	require.NoError(t, err)
	_, err = f.pipeline.Analyze(context.Background(), Job{Paths: []string{f.path("next.pdf")}})
	require.NoError(t, err)
	require.Contains(t, f.runner.reqs[1].Prompt, "過去の解析履歴")
	require.Contains(t, f.runner.reqs[1].Prompt, "⚠ 金額不一致")
	require.Equal(t, model.CheckStatusWarning, f.results.items[0].Status)
	require.Equal(t, "⚠ 金額不一致", f.results.items[0].Message)
}

func TestHeadless(t *testing.T) {
	f := newFixture(t, 0)
	var out bytes.Buffer
	path := f.path("a.pdf")
	require.NoError(t, f.pipeline.Headless(context.Background(), &out, path, false))
	require.Equal(t, "解析中: "+path+"\n\n✓ OK: a.pdf\n", out.String())
	require.Empty(t, f.embedder.calls)

	out.Reset()
	require.NoError(t, f.pipeline.Headless(context.Background(), &out, path, true))
	require.True(t, strings.HasSuffix(out.String(), "\n✓ 結果をPDFに埋め込みました\n"))
	require.Len(t, f.embedder.calls, 1)

	require.Error(t, f.pipeline.Headless(context.Background(), &out, f.path("bad.pdf"), true))
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML("<report>", "## 📄 a.pdf\n---\n| 項目 | 値 |\n|---|---|\n| 金額 | 100 |\n")
	require.NoError(t, err)
	require.Contains(t, page, "<title>&lt;report&gt;</title>")
	require.Contains(t, page, "<h2>📄 a.pdf</h2>")
	require.Contains(t, page, "<table>")
}

func TestNewCheckResult(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ok := NewCheckResult("j", "/x/a.pdf", "\n  概要です\n", nil, now)
	require.Equal(t, model.CheckStatusOK, ok.Status)
	require.Equal(t, "概要です", ok.Message)
	require.Equal(t, "a.pdf", ok.FileName)
	require.Equal(t, "2024-01-02 03:04:05", ok.CheckedAt)

	failed := NewCheckResult("j", "/x/a.pdf", "", errors.New("boom"), now)
	require.Equal(t, model.CheckStatusError, failed.Status)
	require.Equal(t, "boom", failed.Message)
}

func TestAnalyze_CompareListsAttachedNames(t *testing.T) {
	f := newFixture(t, 0)
	paths := []string{f.path("a.pdf"), filepath.Join(f.folder, "sub", "a.pdf")}
	_, err := f.pipeline.Analyze(context.Background(), Job{Paths: paths, Mode: ModeCompare})
	require.NoError(t, err)
	require.Len(t, f.runner.reqs, 1)
	require.Contains(t, f.runner.reqs[0].Prompt, "a.pdf\n1_a.pdf")
}
