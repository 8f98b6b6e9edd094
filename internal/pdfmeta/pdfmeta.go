package pdfmeta

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/model"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

const (
	KeyResult      = "ShoruiCheckerResult"
	KeyInstruction = "ShoruiCheckerInstruction"
	KeyDate        = "ShoruiCheckerDate"
	KeyVersion     = "ShoruiCheckerVersion"
	Version        = "1.0"
)

func init() {
	api.DisableConfigDir()
}

func Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func Decode(s string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

type cachedRead struct {
	size  int64
	mtime time.Time
	data  *model.PdfEmbeddedData
}

// Codec stores analysis results in a PDF's Info dictionary. Values are Base64 so
// arbitrary text survives PDF string encoding.
type Codec struct {
	conf  *pdfmodel.Configuration
	cache *expirable.LRU[string, cachedRead]
	now   func() time.Time
}

func New() *Codec {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &Codec{
		conf:  conf,
		cache: expirable.NewLRU[string, cachedRead](256, nil, 10*time.Minute),
		now:   time.Now,
	}
}

// Embed rewrites path in place with result, instruction and the current time.
// An empty instruction removes any previously stored one. The file is truncated
// and rewritten rather than replaced, so a folder watcher sees a write and no
// new file.
func (c *Codec) Embed(path, result, instruction string) error {
	c.cache.Remove(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", appErr.ErrPDF, path, err)
	}
	props := map[string]string{
		KeyResult:  Encode(result),
		KeyDate:    c.now().Format(model.TimeLayout),
		KeyVersion: Version,
	}
	if instruction != "" {
		props[KeyInstruction] = Encode(instruction)
	}
	var buf bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(raw), &buf, props, c.conf); err != nil {
		return fmt.Errorf("%w: embed %s: %v", appErr.ErrPDF, path, err)
	}
	out := buf.Bytes()
	if instruction == "" {
		existing, err := api.Properties(bytes.NewReader(raw), c.conf)
		if err != nil {
			return fmt.Errorf("%w: reread %s: %v", appErr.ErrPDF, path, err)
		}
		if _, ok := existing[KeyInstruction]; ok {
			var cleared bytes.Buffer
			if err := api.RemoveProperties(bytes.NewReader(out), &cleared, []string{KeyInstruction}, c.conf); err != nil {
				return fmt.Errorf("%w: clear instruction %s: %v", appErr.ErrPDF, path, err)
			}
			out = cleared.Bytes()
		}
	}
	if err := overwrite(path, out); err != nil {
		return fmt.Errorf("%w: write %s: %v", appErr.ErrPDF, path, err)
	}
	return nil
}

func overwrite(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read returns the embedded data, or false when the file is unreadable or carries
// no result.
func (c *Codec) Read(path string) (*model.PdfEmbeddedData, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if hit, ok := c.cache.Get(path); ok && hit.size == st.Size() && hit.mtime.Equal(st.ModTime()) {
		return hit.data, hit.data != nil
	}
	data := c.read(path)
	c.cache.Add(path, cachedRead{size: st.Size(), mtime: st.ModTime(), data: data})
	return data, data != nil
}

func (c *Codec) read(path string) *model.PdfEmbeddedData {
	props, err := c.properties(path)
	if err != nil {
		logutil.GetLogger(context.Background()).Debug("pdf properties unreadable", zap.String("path", path), zap.Error(err))
		return nil
	}
	raw, ok := props[KeyResult]
	if !ok {
		return nil
	}
	result, ok := Decode(raw)
	if !ok {
		return nil
	}
	out := &model.PdfEmbeddedData{Result: result, Date: props[KeyDate]}
	if rawInst, ok := props[KeyInstruction]; ok {
		if inst, ok := Decode(rawInst); ok {
			out.Instruction = &inst
		}
	}
	return out
}

func (c *Codec) properties(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return api.Properties(f, c.conf)
}
