package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultNoiseFilters are diagnostic lines the model CLI prints on stdout.
var DefaultNoiseFilters = []string{
	"Loaded cached credentials",
	"Hook registry initialized",
}

// Request describes one model invocation. Files are source paths; backends decide
// how they reach the model.
type Request struct {
	Prompt       string
	Model        string
	Files        []string
	OutputFormat string
}

func TextRequest(prompt, model string) Request {
	return Request{Prompt: prompt, Model: model, OutputFormat: FormatText}
}

func TextWithFiles(prompt, model string, files []string) Request {
	return Request{Prompt: prompt, Model: model, Files: files, OutputFormat: FormatText}
}

func JSONRequest(prompt, model string) Request {
	return Request{Prompt: prompt, Model: model, OutputFormat: FormatJSON}
}

type Runner interface {
	Name() string
	Run(ctx context.Context, req Request) (string, error)
	// Probe checks that the backend is usable and returns a version or status line.
	Probe(ctx context.Context) (string, error)
}

// Options is the decoded form of the runner section of the app config.
type Options struct {
	CLIPath      string   `json:"cli_path"`
	APIKey       string   `json:"api_key"`
	ScratchDir   string   `json:"scratch_dir"`
	NoiseFilters []string `json:"noise_filters"`
}

type Factory func(args interface{}) (Runner, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(name string, args interface{}) (Runner, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("runner.backend is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported runner backend: %s", name)
	}
	return factory(args)
}

func decodeOptions(args interface{}) (*Options, error) {
	opts := &Options{}
	if args == nil {
		return opts, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode runner config: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("decode runner config: %w", err)
	}
	return opts, nil
}

// Clean drops every line containing one of filters. Remaining lines keep their
// order and whitespace; CRLF endings are normalised and a trailing newline is
// not kept.
func Clean(output string, filters []string) string {
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if isNoise(line, filters) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string, filters []string) bool {
	for _, f := range filters {
		if f != "" && strings.Contains(line, f) {
			return true
		}
	}
	return false
}

func mergeFilters(extra []string) []string {
	out := make([]string, 0, len(DefaultNoiseFilters)+len(extra))
	out = append(out, DefaultNoiseFilters...)
	for _, f := range extra {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
