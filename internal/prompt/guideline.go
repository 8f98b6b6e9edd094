package prompt

import (
	"strings"
)

const (
	noExistingGuidelines = "（なし - 新規作成）"
	noNewIssues          = "（新規問題なし）"
	noInstructions       = "（なし）"
	fence                = "```"
)

type GuidelineInput struct {
	// ExistingJSON is the pretty-printed current guideline file, empty when none.
	ExistingJSON  string
	Issues        []string
	Instructions  []string
	DocumentTypes []string
}

func GuidelineRegeneration(in GuidelineInput) string {
	existing := in.ExistingJSON
	if existing == "" {
		existing = noExistingGuidelines
	}
	issues := noNewIssues
	if len(in.Issues) > 0 {
		issues = strings.Join(in.Issues, "\n")
	}
	instructions := noInstructions
	if len(in.Instructions) > 0 {
		instructions = strings.Join(in.Instructions, "\n")
	}

	var b strings.Builder
	b.WriteString("あなたは書類チェックの専門家です。\n\n")
	b.WriteString("既存のガイドラインを、新しいデータに基づいて改修してください。\n")
	b.WriteString("既存の有用な項目は保持しつつ、新しいパターンを追加・統合してください。\n\n")
	b.WriteString("## 既存のガイドライン\n" + existing + "\n\n")
	b.WriteString("## 今回検出された新しい問題・警告\n" + issues + "\n\n")
	b.WriteString("## ユーザーが重視しているチェック観点\n" + instructions + "\n\n")
	b.WriteString("## 対象書類タイプ\n" + strings.Join(in.DocumentTypes, ", ") + "\n\n")
	b.WriteString("## タスク\n")
	b.WriteString("1. 既存ガイドラインの有用な項目は保持\n")
	b.WriteString("2. 新しい問題パターンがあれば追加\n")
	b.WriteString("3. 重複は統合、古くなった項目は更新\n")
	b.WriteString("4. 各カテゴリ最大10項目まで（重要度順）\n\n")
	b.WriteString("## 出力形式（厳守）\n")
	b.WriteString("JSON形式のみ出力。説明文不要。\n")
	b.WriteString("項目は具体的に（「金額確認」ではなく「税込/税抜の混在に注意」のように）。\n\n")
	b.WriteString(fence + "json\n")
	b.WriteString(`{
  "common": ["間違いパターン1", "パターン2"],
  "categories": {
    "契約書": ["契約書で起きやすい間違い1"],
    "見積書": ["見積書で起きやすい間違い1"]
  }
}`)
	b.WriteString("\n" + fence)
	return b.String()
}
