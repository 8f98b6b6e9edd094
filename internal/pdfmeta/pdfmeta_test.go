package pdfmeta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeMinimalPDF writes a one-page PDF with a correct xref table.
func writeMinimalPDF(t *testing.T, dir, name string) string {
	t.Helper()
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestEncodeDecode(t *testing.T) {
	for _, s := range []string{"", "hello", "日本語テスト\n⚠ 警告", "{\"a\":1}"} {
		got, ok := Decode(Encode(s))
		require.True(t, ok)
		require.Equal(t, s, got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, ok := Decode("not base64!!")
	require.False(t, ok)
	_, ok = Decode(Encode(string([]byte{0xff, 0xfe})))
	require.False(t, ok)
}

func TestRead_NoMetadata(t *testing.T) {
	c := New()
	path := writeMinimalPDF(t, t.TempDir(), "plain.pdf")
	_, ok := c.Read(path)
	require.False(t, ok)
}

func TestRead_NotAPDF(t *testing.T) {
	c := New()
	path := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, ok := c.Read(path)
	require.False(t, ok)

	_, ok = c.Read(filepath.Join(t.TempDir(), "missing.pdf"))
	require.False(t, ok)
}

func TestEmbedRead_RoundTrip(t *testing.T) {
	c := New()
	c.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.Local) }
	path := writeMinimalPDF(t, t.TempDir(), "doc.pdf")

	result := "解析結果\n⚠ 日付の不整合"
	require.NoError(t, c.Embed(path, result, "金額を重点的に"))
	got, ok := c.Read(path)
	require.True(t, ok)
	require.Equal(t, result, got.Result)
	require.NotNil(t, got.Instruction)
	require.Equal(t, "金額を重点的に", *got.Instruction)
	require.Equal(t, "2024-07-01 12:00:00", got.Date)
}

func TestEmbed_EmptyInstructionClearsPrevious(t *testing.T) {
	c := New()
	path := writeMinimalPDF(t, t.TempDir(), "doc.pdf")

	require.NoError(t, c.Embed(path, "first", "focus"))
	require.NoError(t, c.Embed(path, "second", ""))
	got, ok := c.Read(path)
	require.True(t, ok)
	require.Equal(t, "second", got.Result)
	require.Nil(t, got.Instruction)
}

func TestEmbed_MissingFile(t *testing.T) {
	c := New()
	err := c.Embed(filepath.Join(t.TempDir(), "missing.pdf"), "x", "")
	require.Error(t, err)
}

func TestEmbed_RewritesSameFile(t *testing.T) {
	dir := t.TempDir()
	path := writeMinimalPDF(t, dir, "a.pdf")
	before, err := os.Stat(path)
	require.NoError(t, err)

	c := New()
	require.NoError(t, c.Embed(path, "✓ OK", "金額"))
	after, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, os.SameFile(before, after))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, ok := c.Read(path)
	require.True(t, ok)
	require.Equal(t, "✓ OK", data.Result)
}
