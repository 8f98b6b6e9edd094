package runner

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

const anthropicMaxTokens = 8192

// anthropicRunner sends the prompt and base64 PDF document blocks to the Messages API.
type anthropicRunner struct {
	apiKey string
}

func (r *anthropicRunner) Name() string {
	return "anthropic"
}

func (r *anthropicRunner) Run(ctx context.Context, req Request) (string, error) {
	if r.apiKey == "" {
		return "", appErr.ErrUnavailable
	}
	client := anthropic.NewClient(
		option.WithAPIKey(r.apiKey),
		option.WithMaxRetries(0),
	)
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Files)+1)
	for _, f := range req.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", appErr.ErrIO, f, err)
		}
		blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(data),
		}))
	}
	prompt := req.Prompt
	if req.OutputFormat == FormatJSON {
		prompt += "\n\nJSONのみを出力してください。"
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(claudeModel(req.Model)),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("anthropic api call failed", zap.String("model", req.Model), zap.Error(err))
		return "", fmt.Errorf("%w: anthropic api: %v", appErr.ErrProcess, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (r *anthropicRunner) Probe(ctx context.Context) (string, error) {
	if r.apiKey == "" {
		return "", appErr.ErrUnavailable
	}
	return "anthropic api configured", nil
}

func createAnthropicFactory(args interface{}) (Runner, error) {
	opts, err := decodeOptions(args)
	if err != nil {
		return nil, err
	}
	return &anthropicRunner{apiKey: strings.TrimSpace(opts.APIKey)}, nil
}

func init() {
	Register("anthropic", createAnthropicFactory)
}
