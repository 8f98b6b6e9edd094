package history

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/shoruichecker/internal/model"
)

func entry(name, at string) model.AnalysisHistoryEntry {
	return model.AnalysisHistoryEntry{FileName: name, FilePath: "/p/" + name, AnalyzedAt: at, Summary: name, Issues: []string{}}
}

func TestPathHash_Stable(t *testing.T) {
	require.Equal(t, PathHash("test/folder/path"), PathHash("test/folder/path"))
	require.NotEqual(t, PathHash("test/folder/path"), PathHash("different/path"))
	require.NotEqual(t, PathHash(`C:\Work`), PathHash(`c:\work`))
}

func TestLoad_MissingFileReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	h := s.Load("some/folder")
	require.Equal(t, "some/folder", h.ProjectFolder)
	require.Empty(t, h.Entries)
}

func TestLoad_CorruptFileReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(s.PathFor("f"), []byte("{not json"), 0o644))
	h := s.Load("f")
	require.Equal(t, "f", h.ProjectFolder)
	require.Empty(t, h.Entries)
}

func TestAppendOrReplace_BoundsToFifty(t *testing.T) {
	h := &model.AnalysisHistory{ProjectFolder: "f"}
	for i := 0; i < MaxEntries; i++ {
		AppendOrReplace(h, entry(fmt.Sprintf("doc%02d.pdf", i), "2024-01-01 00:00:00"))
	}
	require.Len(t, h.Entries, MaxEntries)

	AppendOrReplace(h, entry("doc50.pdf", "2024-01-01 00:00:00"))
	require.Len(t, h.Entries, MaxEntries)
	require.Equal(t, "doc01.pdf", h.Entries[0].FileName)
	require.Equal(t, "doc50.pdf", h.Entries[MaxEntries-1].FileName)
}

func TestAppendOrReplace_DedupesByFileName(t *testing.T) {
	h := &model.AnalysisHistory{ProjectFolder: "f"}
	AppendOrReplace(h, entry("a.pdf", "2024-01-01 00:00:00"))
	AppendOrReplace(h, entry("b.pdf", "2024-01-01 00:00:01"))
	replacement := entry("a.pdf", "2024-01-01 00:00:02")
	replacement.Summary = "new"
	AppendOrReplace(h, replacement)

	require.Len(t, h.Entries, 2)
	require.Equal(t, "b.pdf", h.Entries[0].FileName)
	require.Equal(t, "a.pdf", h.Entries[1].FileName)
	require.Equal(t, "new", h.Entries[1].Summary)
}

func TestRecordAndListAll_SortedDescending(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Record("proj1", entry("a.pdf", "2024-01-02 10:00:00")))
	require.NoError(t, s.Record("proj2", entry("b.pdf", "2024-03-01 09:00:00"), entry("c.pdf", "2023-12-31 23:59:59")))

	all := s.ListAll()
	require.Len(t, all, 3)
	require.Equal(t, "b.pdf", all[0].FileName)
	require.Equal(t, "a.pdf", all[1].FileName)
	require.Equal(t, "c.pdf", all[2].FileName)
}

func TestListAll_MissingDir(t *testing.T) {
	s := NewStore(t.TempDir() + "/nope")
	require.Empty(t, s.ListAll())
}

func TestNewEntry_ExtractsTypeIssuesSummary(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 3, 4, 0, time.Local)
	e := NewEntry("test.pdf", "/path/to/test.pdf", "契約書の内容です\n⚠ 金額に不整合があります\n  矛盾あり  ", now)
	require.Equal(t, "test.pdf", e.FileName)
	require.NotNil(t, e.DocumentType)
	require.Equal(t, "契約書", *e.DocumentType)
	require.Equal(t, []string{"⚠ 金額に不整合があります", "矛盾あり"}, e.Issues)
	require.Equal(t, "2024-05-01 09:03:04", e.AnalyzedAt)
}

func TestNewEntry_SummaryKeepsTenLines(t *testing.T) {
	result := ""
	for i := 0; i < 15; i++ {
		result += fmt.Sprintf("line%d\n", i)
	}
	e := NewEntry("x.pdf", "/x.pdf", result, time.Now())
	require.Nil(t, e.DocumentType)
	require.Equal(t, "line0\nline1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9", e.Summary)
}

func TestBuildContext_Empty(t *testing.T) {
	require.Empty(t, BuildContext(&model.AnalysisHistory{ProjectFolder: "test"}))
}

func TestBuildContext_NewestTenWithIssues(t *testing.T) {
	h := &model.AnalysisHistory{ProjectFolder: "f"}
	for i := 0; i < 12; i++ {
		e := entry(fmt.Sprintf("doc%02d.pdf", i), "2024-01-01 00:00:00")
		e.Summary = "first\nsecond\nthird\nfourth"
		h.Entries = append(h.Entries, e)
	}
	h.Entries[11].Issues = []string{"⚠ one", "⚠ two"}
	ctx := BuildContext(h)

	require.Contains(t, ctx, "### doc11.pdf")
	require.Contains(t, ctx, "### doc02.pdf")
	require.NotContains(t, ctx, "### doc01.pdf")
	require.Contains(t, ctx, "  - ⚠ one\n  - ⚠ two\n")
	require.Contains(t, ctx, "- 要約: first second third\n")
	require.NotContains(t, ctx, "fourth")
}

func TestNewCompareEntry(t *testing.T) {
	e := NewCompareEntry("a.pdf", "/a.pdf", "概要\n ⚠ 金額不一致 \n警告 only", []string{"a.pdf", "b.pdf"}, time.Now())
	require.Equal(t, CompareType, *e.DocumentType)
	require.Equal(t, "【照合解析】対象: a.pdf, b.pdf", e.Summary)
	require.Equal(t, []string{"⚠ 金額不一致"}, e.Issues)
}
