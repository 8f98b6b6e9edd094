package history

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/model"
)

const (
	MaxEntries        = 50
	contextEntries    = 10
	contextSummaryLns = 3
	summaryLines      = 10
	CompareType       = "照合解析"
)

var issueMarkers = []string{"⚠", "警告", "不整合", "矛盾"}

// Store keeps one JSON file per project folder. Files are read fresh on every call;
// writers within this process are serialised per folder, writers in other
// processes may still lose updates.
type Store struct {
	dir   string
	locks sync.Map
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// PathHash is a stable hash of the folder string. No case or separator
// normalisation is applied.
func PathHash(folder string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(folder))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Store) PathFor(folder string) string {
	return filepath.Join(s.dir, PathHash(folder)+".json")
}

func (s *Store) Load(folder string) *model.AnalysisHistory {
	empty := &model.AnalysisHistory{ProjectFolder: folder, Entries: []model.AnalysisHistoryEntry{}}
	raw, err := os.ReadFile(s.PathFor(folder))
	if err != nil {
		return empty
	}
	var h model.AnalysisHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		logutil.GetLogger(context.Background()).Warn("history file unreadable, using empty history",
			zap.String("folder", folder), zap.Error(err))
		return empty
	}
	if h.Entries == nil {
		h.Entries = []model.AnalysisHistoryEntry{}
	}
	return &h
}

// Save writes h with a plain overwrite; a crash mid-write can leave a torn file,
// which Load then treats as empty.
func (s *Store) Save(h *model.AnalysisHistory) error {
	path := s.PathFor(h.ProjectFolder)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// AppendOrReplace drops any entry with the same file name, appends entry and keeps
// the newest MaxEntries.
func AppendOrReplace(h *model.AnalysisHistory, entry model.AnalysisHistoryEntry) {
	kept := h.Entries[:0]
	for _, e := range h.Entries {
		if e.FileName != entry.FileName {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	if len(kept) > MaxEntries {
		kept = append([]model.AnalysisHistoryEntry(nil), kept[len(kept)-MaxEntries:]...)
	}
	h.Entries = kept
}

// Record reloads the folder's history, applies every entry and saves once.
func (s *Store) Record(folder string, entries ...model.AnalysisHistoryEntry) error {
	lock := s.lockFor(folder)
	lock.Lock()
	defer lock.Unlock()
	h := s.Load(folder)
	for _, e := range entries {
		AppendOrReplace(h, e)
	}
	return s.Save(h)
}

func (s *Store) lockFor(folder string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(folder, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ListAll merges every project history, newest first.
func (s *Store) ListAll() []model.AnalysisHistoryEntry {
	all := make([]model.AnalysisHistoryEntry, 0)
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return all
	}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var h model.AnalysisHistory
		if err := json.Unmarshal(raw, &h); err != nil {
			continue
		}
		all = append(all, h.Entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].AnalyzedAt > all[j].AnalyzedAt
	})
	return all
}

func NewEntry(fileName, filePath, result string, now time.Time) model.AnalysisHistoryEntry {
	return model.AnalysisHistoryEntry{
		FileName:     fileName,
		FilePath:     filePath,
		AnalyzedAt:   now.Format(model.TimeLayout),
		DocumentType: documentTypeOf(result),
		Summary:      strings.Join(firstLines(result, summaryLines), "\n"),
		Issues:       ExtractIssues(result),
	}
}

func NewCompareEntry(fileName, filePath, result string, fileNames []string, now time.Time) model.AnalysisHistoryEntry {
	docType := CompareType
	issues := make([]string, 0)
	for _, line := range splitLines(result) {
		if strings.Contains(line, "⚠") {
			issues = append(issues, strings.TrimSpace(line))
		}
	}
	return model.AnalysisHistoryEntry{
		FileName:     fileName,
		FilePath:     filePath,
		AnalyzedAt:   now.Format(model.TimeLayout),
		DocumentType: &docType,
		Summary:      "【照合解析】対象: " + strings.Join(fileNames, ", "),
		Issues:       issues,
	}
}

// ExtractIssues returns trimmed lines carrying a warning marker.
func ExtractIssues(result string) []string {
	issues := make([]string, 0)
	for _, line := range splitLines(result) {
		for _, marker := range issueMarkers {
			if strings.Contains(line, marker) {
				issues = append(issues, strings.TrimSpace(line))
				break
			}
		}
	}
	return issues
}

func documentTypeOf(result string) *string {
	var t string
	switch {
	case strings.Contains(result, "契約書"):
		t = "契約書"
	case strings.Contains(result, "見積"):
		t = "見積書"
	case strings.Contains(result, "請求"):
		t = "請求書"
	case strings.Contains(result, "配置実績"), strings.Contains(result, "交通誘導"):
		t = "交通誘導員配置実績"
	default:
		return nil
	}
	return &t
}

// BuildContext renders the newest entries as prompt context. An empty history
// renders as the empty string.
func BuildContext(h *model.AnalysisHistory) string {
	if h == nil || len(h.Entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## 過去の解析履歴（参考情報）\n")
	b.WriteString("以下は同じプロジェクトで過去に解析した書類の情報です。整合性チェック時に参照してください。\n\n")
	for i, n := len(h.Entries)-1, 0; i >= 0 && n < contextEntries; i, n = i-1, n+1 {
		entry := h.Entries[i]
		fmt.Fprintf(&b, "### %s (%s)\n", entry.FileName, entry.AnalyzedAt)
		if entry.DocumentType != nil {
			fmt.Fprintf(&b, "- 書類タイプ: %s\n", *entry.DocumentType)
		}
		if len(entry.Issues) > 0 {
			b.WriteString("- 検出された問題:\n")
			for _, issue := range entry.Issues {
				fmt.Fprintf(&b, "  - %s\n", issue)
			}
		}
		fmt.Fprintf(&b, "- 要約: %s\n\n", strings.Join(firstLines(entry.Summary, contextSummaryLns), " "))
	}
	return b.String()
}

func firstLines(s string, n int) []string {
	lines := splitLines(s)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

// splitLines splits on \n, strips a trailing \r and ignores a final empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
