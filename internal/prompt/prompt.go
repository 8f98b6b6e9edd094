package prompt

import (
	"fmt"
	"strings"
)

const preamble = "あなたは日本語で回答するアシスタントです。必ず日本語で回答してください。\n\n"

const singleRules = `添付のPDF書類の内容を読み取り、整合性をチェックしてください。

## 注意事項
- 文字は正確に読み取ること（特に地名、人名、会社名）
- 似た漢字を間違えないこと
- 数値は桁を間違えないこと

## 書類タイプ別チェックポイント

### 契約書の場合
- 契約当事者（発注者・受注者）の名称が書類内で一貫しているか
- 金額計算（工事価格 + 消費税 = 請負代金額）が正しいか
- 工期の日付が妥当か（着工日 < 完成日）
- 必要な署名・押印欄があるか
- 選択肢形式の項目は○（丸）がついている選択肢を読み取ること

### 交通誘導員配置実績の場合
- 人数欄の数値と、実際に列挙された名前の数が一致するか
- 集計表と伝票の人数・日付・時間が一致するか

### 測量図面の場合
- 縦断図と横断図の計画高・地盤高の照合
`

const singleOutput = `
## 出力形式
- まず書類タイプを判定して報告
- 整合している項目は「✓」で示す
- 問題がある項目は「⚠」で具体的に指摘
- 過去の解析履歴がある場合、それとの整合性も確認すること
`

const compareIntro = "添付の複数PDF書類を照合し、書類間の整合性をチェックしてください。\n\n## 照合対象ファイル\n"

const compareRules = `

## チェックポイント
- 書類間で当事者名（発注者・受注者・会社名）が一致しているか
- 金額が書類間で整合しているか（見積書と契約書の金額一致等）
- 日付の整合性（契約日、工期、納期等）
- 数量・単価の整合性
- 印影・署名の有無
- 過去の解析履歴との整合性
`

const compareOutput = `
## 出力形式
1. 各書類の概要を簡潔に説明
2. 書類間で整合している項目は「✓」で示す
3. 不整合や矛盾がある項目は「⚠」で具体的に指摘
4. 総合判定（整合/要確認/不整合）
`

type SingleInput struct {
	FileName    string
	Guidelines  string
	Instruction string
	History     string
}

type CompareInput struct {
	FileNames   []string
	Guidelines  string
	Instruction string
	History     string
}

// Single builds the per-file check prompt. Sections appear in a fixed order and
// empty optional sections are omitted.
func Single(in SingleInput) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(singleRules)
	b.WriteString(GuidelineSection(in.Guidelines))
	b.WriteString(singleOutput)
	b.WriteString(InstructionSection(in.Instruction))
	b.WriteString(in.History)
	b.WriteString("\nファイル: ")
	b.WriteString(in.FileName)
	return b.String()
}

func Compare(in CompareInput) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(compareIntro)
	b.WriteString(strings.Join(in.FileNames, "\n"))
	b.WriteString(compareRules)
	b.WriteString(GuidelineSection(in.Guidelines))
	b.WriteString(compareOutput)
	b.WriteString(InstructionSection(in.Instruction))
	b.WriteString(in.History)
	return b.String()
}

func GuidelineSection(guidelines string) string {
	if guidelines == "" {
		return ""
	}
	return fmt.Sprintf("\n## 該当ガイドライン\n%s\n", guidelines)
}

func InstructionSection(instruction string) string {
	if instruction == "" {
		return ""
	}
	return fmt.Sprintf("\n## ユーザー指定のチェック項目\n以下の項目も必ず確認してください：\n%s\n", instruction)
}
