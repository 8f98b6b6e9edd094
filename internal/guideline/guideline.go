package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/model"
)

const (
	FileName     = ".guidelines.json"
	RawFileName  = ".guidelines.md"
	linesPerPart = 5
)

var documentTypes = []struct {
	name     string
	keywords []string
}{
	{"見積書", []string{"見積", "estimate"}},
	{"契約書", []string{"契約", "contract"}},
	{"請求書", []string{"請求", "invoice"}},
	{"交通誘導員", []string{"交通誘導", "配置", "警備"}},
	{"測量図面", []string{"測量", "横断", "縦断"}},
	{"施工計画", []string{"施工", "計画"}},
}

// DetectDocumentTypes infers document types from a file name. Types are returned
// in table order, each at most once.
func DetectDocumentTypes(fileName string) []string {
	name := strings.ToLower(fileName)
	out := make([]string, 0)
	for _, dt := range documentTypes {
		for _, kw := range dt.keywords {
			if strings.Contains(name, kw) {
				out = append(out, dt.name)
				break
			}
		}
	}
	return out
}

// DetectAll merges the types of every name, keeping first-seen order.
func DetectAll(fileNames []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, n := range fileNames {
		for _, t := range DetectDocumentTypes(n) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func PathFor(folder string) string {
	return filepath.Join(folder, FileName)
}

func Load(folder string) (*model.Guidelines, bool) {
	raw, err := os.ReadFile(PathFor(folder))
	if err != nil {
		return nil, false
	}
	g := &model.Guidelines{}
	if err := json.Unmarshal(raw, g); err != nil {
		logutil.GetLogger(context.Background()).Warn("guideline file unreadable",
			zap.String("folder", folder), zap.Error(err))
		return nil, false
	}
	normalize(g)
	return g, true
}

// Save replaces the folder's guideline file.
func Save(folder string, g *model.Guidelines) error {
	normalize(g)
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guidelines: %w", err)
	}
	if err := os.WriteFile(PathFor(folder), data, 0o644); err != nil {
		return fmt.Errorf("write guidelines: %w", err)
	}
	return nil
}

func normalize(g *model.Guidelines) {
	if g.Common == nil {
		g.Common = []string{}
	}
	if g.Categories == nil {
		g.Categories = map[string][]string{}
	}
}

// Relevant renders the common lines and the lines of each given type, at most
// five per section. It returns "" when nothing applies.
func Relevant(g *model.Guidelines, types []string) string {
	if g == nil {
		return ""
	}
	lines := make([]string, 0)
	if len(g.Common) > 0 {
		lines = append(lines, "【共通】")
		lines = append(lines, head(g.Common, linesPerPart)...)
	}
	for _, t := range types {
		items, ok := g.Categories[t]
		if !ok {
			continue
		}
		lines = append(lines, "【"+t+"】")
		lines = append(lines, head(items, linesPerPart)...)
	}
	return strings.Join(lines, "\n")
}

// RelevantFor loads the folder's guidelines and selects the parts that match
// the given file names.
func RelevantFor(folder string, fileNames ...string) string {
	g, ok := Load(folder)
	if !ok {
		return ""
	}
	return Relevant(g, DetectAll(fileNames))
}

// Summary renders guidelines as Markdown with categories in name order.
func Summary(g *model.Guidelines) string {
	var b strings.Builder
	b.WriteString("## ガイドライン\n\n")
	if len(g.Common) > 0 {
		b.WriteString("### 共通\n")
		for _, item := range g.Common {
			b.WriteString("- " + item + "\n")
		}
	}
	cats := make([]string, 0, len(g.Categories))
	for c := range g.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		b.WriteString("\n### " + c + "\n")
		for _, item := range g.Categories[c] {
			b.WriteString("- " + item + "\n")
		}
	}
	return b.String()
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
