package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

const (
	promptFile   = "prompt.txt"
	errorLogFile = ".shoruichecker_error.log"
	scratchTag   = ".shoruichecker_temp"

	defaultClaudeModel = "claude-sonnet-4-20250514"
)

type argsBuilder func(req Request, files []string) []string

type outputDecoder func(req Request, out string) (string, error)

// CLIRunner drives a model CLI as a subprocess. The prompt is piped on stdin and
// the working directory is a fresh scratch dir holding copies of the input files,
// which are passed as relative names.
type CLIRunner struct {
	name        string
	path        string
	scratchBase string
	filters     []string
	buildArgs   argsBuilder
	decode      outputDecoder
}

func (r *CLIRunner) Name() string {
	return r.name
}

func (r *CLIRunner) Run(ctx context.Context, req Request) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("runner", r.name), zap.String("model", req.Model))
	scratch, err := NewScratch(r.scratchBase, scratchTag+"_"+r.name)
	if err != nil {
		return "", err
	}
	defer scratch.Remove()

	if err := scratch.WriteFile(promptFile, []byte(req.Prompt)); err != nil {
		return "", err
	}
	names := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		name, err := scratch.Copy(f)
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}

	cmd := exec.CommandContext(ctx, r.path, r.buildArgs(req, names)...)
	cmd.Dir = scratch.Dir()
	cmd.Stdin = strings.NewReader(req.Prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	logger.Debug("invoke model cli", zap.String("path", r.path), zap.Int("files", len(names)), zap.Int("prompt_len", len(req.Prompt)))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr := appErr.NewProcessError(exitErr.ExitCode(), stderr.String(), stdout.String())
			r.writeErrorLog(ctx, perr)
			logger.Warn("model cli failed", zap.String("status", perr.Status), zap.Duration("cost", time.Since(start)))
			return "", perr
		}
		logger.Error("model cli could not be started", zap.Error(err))
		return "", fmt.Errorf("%w: start %s: %v", appErr.ErrProcess, r.path, err)
	}
	logger.Debug("model cli finished", zap.Duration("cost", time.Since(start)), zap.Int("stdout_len", stdout.Len()))

	out := Clean(stdout.String(), r.filters)
	if r.decode != nil {
		return r.decode(req, out)
	}
	return out, nil
}

// writeErrorLog keeps the last failure next to the scratch dirs, which are removed.
func (r *CLIRunner) writeErrorLog(ctx context.Context, perr *appErr.ProcessError) {
	base := r.scratchBase
	if base == "" {
		base = os.TempDir()
	}
	line := fmt.Sprintf("[%s] %s\n%s\n", time.Now().Format(time.RFC3339), r.name, perr.Error())
	if err := os.WriteFile(filepath.Join(base, errorLogFile), []byte(line), 0o644); err != nil {
		logutil.GetLogger(ctx).Warn("write error log failed", zap.Error(err))
	}
}

func (r *CLIRunner) Probe(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, r.path, "--version").CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", appErr.NewProcessError(exitErr.ExitCode(), string(out), "")
		}
		return "", fmt.Errorf("%w: %s: %v", appErr.ErrNotFound, r.path, err)
	}
	return strings.TrimSpace(Clean(string(out), r.filters)), nil
}

// ResolveCLIPath prefers the npm shim under %APPDATA% on Windows installs and
// falls back to a PATH lookup of the bare name.
func ResolveCLIPath(name string) string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		candidate := filepath.Join(appData, "npm", name+".cmd")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

func geminiArgs(req Request, files []string) []string {
	args := []string{"-m", req.Model, "-o", req.OutputFormat}
	return append(args, files...)
}

func claudeArgs(req Request, files []string) []string {
	args := []string{"-p", "--model", claudeModel(req.Model), "--output-format", req.OutputFormat}
	if len(files) > 0 {
		args = append(args, "--allowedTools", "Read")
	}
	return args
}

// claudeModel maps the shared default (a Gemini model name) to a Claude model.
func claudeModel(m string) string {
	if m == "" || strings.HasPrefix(m, "gemini") {
		return defaultClaudeModel
	}
	return m
}

// decodeClaudeEnvelope unwraps the {"result": ...} object claude prints in json mode.
func decodeClaudeEnvelope(req Request, out string) (string, error) {
	if req.OutputFormat != FormatJSON {
		return out, nil
	}
	var env struct {
		Result  string `json:"result"`
		IsError bool   `json:"is_error"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		return out, nil
	}
	if env.IsError {
		return "", fmt.Errorf("%w: %s", appErr.ErrProcess, env.Result)
	}
	return env.Result, nil
}

func newCLIFactory(name, bin string, build argsBuilder, decode outputDecoder) Factory {
	return func(args interface{}) (Runner, error) {
		opts, err := decodeOptions(args)
		if err != nil {
			return nil, err
		}
		path := strings.TrimSpace(opts.CLIPath)
		if path == "" {
			path = ResolveCLIPath(bin)
		}
		return &CLIRunner{
			name:        name,
			path:        path,
			scratchBase: opts.ScratchDir,
			filters:     mergeFilters(opts.NoiseFilters),
			buildArgs:   build,
			decode:      decode,
		}, nil
	}
}

func init() {
	Register("gemini-cli", newCLIFactory("gemini-cli", "gemini", geminiArgs, nil))
	Register("claude-cli", newCLIFactory("claude-cli", "claude", claudeArgs, decodeClaudeEnvelope))
}
