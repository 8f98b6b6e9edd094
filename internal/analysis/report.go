package analysis

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Headless analyses one PDF and prints the result to w. The caller reports the
// returned error.
func (p *Pipeline) Headless(ctx context.Context, w io.Writer, path string, embed bool) error {
	fmt.Fprintf(w, "解析中: %s\n", path)
	report, err := p.Analyze(ctx, Job{Paths: []string{path}, SkipEmbed: !embed})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", report.Text)
	if embed {
		fmt.Fprintln(w, "\n✓ 結果をPDFに埋め込みました")
	}
	return nil
}

// RenderHTML wraps the rendered markdown report in a standalone page.
func RenderHTML(title, report string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(report), &body); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html lang=\"ja\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
