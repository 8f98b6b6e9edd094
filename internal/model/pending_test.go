package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func enabledPolicy() AnalyzePolicy {
	p := DefaultAnalyzePolicy()
	p.AutoAnalyze = true
	return p
}

func TestShouldAutoAnalyze_DisabledAlwaysFalse(t *testing.T) {
	p := DefaultAnalyzePolicy()
	p.IncludePatterns = []string{"契約"}
	file := PendingFile{Name: "契約書.pdf", SizeBytes: 4096}
	require.False(t, p.ShouldAutoAnalyze(file))
}

func TestShouldAutoAnalyze_SizeWindow(t *testing.T) {
	p := enabledPolicy()
	require.False(t, p.ShouldAutoAnalyze(PendingFile{Name: "a.pdf", SizeBytes: 1023}))
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "a.pdf", SizeBytes: 1024}))
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "a.pdf", SizeBytes: p.MaxSizeBytes}))
	require.False(t, p.ShouldAutoAnalyze(PendingFile{Name: "a.pdf", SizeBytes: p.MaxSizeBytes + 1}))
}

func TestShouldAutoAnalyze_ExcludeBeatsInclude(t *testing.T) {
	p := enabledPolicy()
	p.IncludePatterns = []string{"invoice"}
	require.False(t, p.ShouldAutoAnalyze(PendingFile{Name: "Invoice_DRAFT.pdf", SizeBytes: 2048}))
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "INVOICE_final.pdf", SizeBytes: 2048}))
}

func TestShouldAutoAnalyze_IncludeFilter(t *testing.T) {
	p := enabledPolicy()
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "anything.pdf", SizeBytes: 2048}))

	p.IncludePatterns = []string{"見積", "contract"}
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "2024_見積.pdf", SizeBytes: 2048}))
	require.True(t, p.ShouldAutoAnalyze(PendingFile{Name: "Contract-A.pdf", SizeBytes: 2048}))
	require.False(t, p.ShouldAutoAnalyze(PendingFile{Name: "report.pdf", SizeBytes: 2048}))
}
