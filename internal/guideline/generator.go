package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/model"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/prompt"
	"github.com/xxxsen/shoruichecker/internal/runner"
)

var issueMarkers = []string{"⚠", "警告", "不整合", "矛盾", "注意", "確認"}

// Reader returns the analysis data embedded in a PDF.
type Reader interface {
	Read(path string) (*model.PdfEmbeddedData, bool)
}

type Generator struct {
	runner  runner.Runner
	reader  Reader
	emitter event.Emitter
	model   func() string
}

func NewGenerator(r runner.Runner, reader Reader, emitter event.Emitter, model func() string) *Generator {
	if emitter == nil {
		emitter = event.Discard
	}
	return &Generator{runner: r, reader: reader, emitter: emitter, model: model}
}

type collected struct {
	fileName string
	data     *model.PdfEmbeddedData
}

// Generate asks the model to rewrite the folder's guidelines from the results
// embedded in paths. The parsed output replaces the stored file; output that is
// not JSON is kept verbatim in RawFileName and returned as is.
func (g *Generator) Generate(ctx context.Context, folder string, paths []string, instruction string) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("folder", folder))
	items := make([]collected, 0, len(paths))
	for _, p := range paths {
		if data, ok := g.reader.Read(p); ok {
			items = append(items, collected{fileName: filepath.Base(p), data: data})
		}
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: 選択ファイルに解析データがありません", appErr.ErrNotFound)
	}
	event.EmitLog(g.emitter, fmt.Sprintf("=== ガイドライン生成 (%d ファイル) ===", len(items)), event.LevelInfo)

	in := prompt.GuidelineInput{
		Issues:        collectIssues(items),
		Instructions:  collectInstructions(items, instruction),
		DocumentTypes: DetectAll(fileNames(items)),
	}
	if existing, ok := Load(folder); ok {
		data, err := json.MarshalIndent(existing, "", "  ")
		if err == nil {
			in.ExistingJSON = string(data)
		}
	}

	modelName := g.model()
	event.EmitLog(g.emitter, fmt.Sprintf("%s で要約中...", modelName), event.LevelWave)
	out, err := g.runner.Run(ctx, runner.JSONRequest(prompt.GuidelineRegeneration(in), modelName))
	if err != nil {
		event.EmitLog(g.emitter, fmt.Sprintf("エラー: %v", err), event.LevelError)
		return "", err
	}

	parsed := &model.Guidelines{}
	if err := json.Unmarshal([]byte(extractJSON(out)), parsed); err != nil {
		logger.Warn("guideline output is not json, keep raw text", zap.Error(err))
		event.EmitLog(g.emitter, fmt.Sprintf("JSON解析エラー: %v - 生データ保存", err), event.LevelInfo)
		if werr := os.WriteFile(filepath.Join(folder, RawFileName), []byte(out), 0o644); werr != nil {
			logger.Warn("save raw guideline failed", zap.Error(werr))
		}
		return out, nil
	}
	if err := Save(folder, parsed); err != nil {
		logger.Warn("save guideline failed", zap.Error(err))
	}
	event.EmitLog(g.emitter, fmt.Sprintf("✓ ガイドライン生成完了 (%d 項目)", parsed.Count()), event.LevelSuccess)
	logger.Info("guidelines regenerated", zap.Int("files", len(items)), zap.Int("items", parsed.Count()))
	return Summary(parsed), nil
}

// CollectFolder lists the PDFs directly inside folder that carry embedded results.
func CollectFolder(folder string, reader Reader) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", appErr.ErrIO, folder, err)
	}
	out := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		p := filepath.Join(folder, e.Name())
		if _, ok := reader.Read(p); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func collectIssues(items []collected) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, it := range items {
		for _, line := range strings.Split(it.data.Result, "\n") {
			if !containsAny(line, issueMarkers) {
				continue
			}
			formatted := fmt.Sprintf("[%s] %s", it.fileName, strings.TrimSpace(line))
			if _, ok := seen[formatted]; ok {
				continue
			}
			seen[formatted] = struct{}{}
			out = append(out, formatted)
		}
	}
	return out
}

func collectInstructions(items []collected, current string) []string {
	out := make([]string, 0)
	if current != "" {
		out = append(out, current)
	}
	for _, it := range items {
		if it.data.Instruction == nil {
			continue
		}
		inst := *it.data.Instruction
		if !contains(out, inst) {
			out = append(out, inst)
		}
	}
	return out
}

func fileNames(items []collected) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.fileName)
	}
	return out
}

// extractJSON returns the span from the first '{' to the last '}', which strips
// Markdown fences and surrounding prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
