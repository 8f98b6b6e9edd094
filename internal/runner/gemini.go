package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/genai"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

// geminiAPIRunner calls the Gemini API directly and sends PDFs as inline parts.
type geminiAPIRunner struct {
	apiKey  string
	filters []string
}

func (r *geminiAPIRunner) Name() string {
	return "gemini"
}

func (r *geminiAPIRunner) client(ctx context.Context) (*genai.Client, error) {
	if r.apiKey == "" {
		return nil, appErr.ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  r.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (r *geminiAPIRunner) Run(ctx context.Context, req Request) (string, error) {
	client, err := r.client(ctx)
	if err != nil {
		return "", err
	}
	parts := []*genai.Part{{Text: req.Prompt}}
	for _, f := range req.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", appErr.ErrIO, f, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mimeOf(f)}})
	}
	var cfg *genai.GenerateContentConfig
	if req.OutputFormat == FormatJSON {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, []*genai.Content{{Role: "user", Parts: parts}}, cfg)
	if err != nil {
		logutil.GetLogger(ctx).Warn("gemini api call failed", zap.String("model", req.Model), zap.Error(err))
		return "", fmt.Errorf("%w: gemini api: %v", appErr.ErrProcess, err)
	}
	return Clean(strings.TrimSpace(resp.Text()), r.filters), nil
}

func (r *geminiAPIRunner) Probe(ctx context.Context) (string, error) {
	if _, err := r.client(ctx); err != nil {
		return "", err
	}
	return "gemini api configured", nil
}

func mimeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "text/plain"
	}
}

func createGeminiAPIFactory(args interface{}) (Runner, error) {
	opts, err := decodeOptions(args)
	if err != nil {
		return nil, err
	}
	return &geminiAPIRunner{
		apiKey:  strings.TrimSpace(opts.APIKey),
		filters: mergeFilters(opts.NoiseFilters),
	}, nil
}

func init() {
	Register("gemini", createGeminiAPIFactory)
}
