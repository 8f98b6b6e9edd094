package prompt

import (
	"strings"
)

// NoIssuesMarker is the line the reviewer is asked to print for clean changes.
const NoIssuesMarker = "問題なし"

type CodeReviewInput struct {
	FileName string
	// Content is a unified diff when IsDiff is set, otherwise the whole file.
	Content string
	IsDiff  bool
}

func CodeReview(in CodeReviewInput) string {
	var b strings.Builder
	b.WriteString(preamble)
	if in.IsDiff {
		b.WriteString("以下の差分をコードレビューしてください。\n\n")
	} else {
		b.WriteString("以下のファイルをコードレビューしてください。\n\n")
	}
	b.WriteString("## 観点\n")
	b.WriteString("- バグや論理的な誤り\n")
	b.WriteString("- エラー処理の漏れ\n")
	b.WriteString("- セキュリティ上の問題\n")
	b.WriteString("- 可読性を大きく損なう書き方\n\n")
	b.WriteString("## 出力形式\n")
	b.WriteString("- 問題がある箇所は「⚠」で始めて具体的に指摘\n")
	b.WriteString("- 問題がなければ「" + NoIssuesMarker + "」とだけ出力\n\n")
	b.WriteString("ファイル: " + in.FileName + "\n\n")
	b.WriteString(fence + "\n")
	b.WriteString(in.Content)
	if !strings.HasSuffix(in.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n")
	return b.String()
}

// HasIssues reports whether a review flagged anything.
func HasIssues(review string) bool {
	return strings.Contains(review, "⚠")
}
