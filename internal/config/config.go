package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	AppName               = "shoruichecker"
	DefaultListen         = "127.0.0.1:17890"
	DefaultGuidelineSpec  = "0 */6 * * *"
	DefaultCleanupSpec    = "30 3 * * *"
	DefaultResultKeepDays = 90
	DefaultAnalyzeWindow  = 2
)

type Config struct {
	DataDir           string           `json:"data_dir" yaml:"data_dir"`
	DBPath            string           `json:"db_path" yaml:"db_path"`
	HistoryDir        string           `json:"history_dir" yaml:"history_dir"`
	SettingsPath      string           `json:"settings_path" yaml:"settings_path"`
	PolicyPath        string           `json:"policy_path" yaml:"policy_path"`
	ScratchDir        string           `json:"scratch_dir" yaml:"scratch_dir"`
	Listen            string           `json:"listen" yaml:"listen"`
	CORSOrigins       []string         `json:"cors_origins" yaml:"cors_origins"`
	// AnalyzeWindowSec throttles repeated analysis requests; negative disables it.
	AnalyzeWindowSec  int              `json:"analyze_window_sec" yaml:"analyze_window_sec"`
	LogConfig         logger.LogConfig `json:"log_config" yaml:"log_config"`
	Runner            RunnerConfig     `json:"runner" yaml:"runner"`
	GuidelineSchedule string           `json:"guideline_schedule" yaml:"guideline_schedule"`
	CleanupSchedule   string           `json:"cleanup_schedule" yaml:"cleanup_schedule"`
	ResultKeepDays    int              `json:"result_keep_days" yaml:"result_keep_days"`
}

type RunnerConfig struct {
	Backend      string   `json:"backend" yaml:"backend"`
	CLIPath      string   `json:"cli_path" yaml:"cli_path"`
	APIKey       string   `json:"api_key" yaml:"api_key"`
	MaxParallel  int      `json:"max_parallel" yaml:"max_parallel"`
	NoiseFilters []string `json:"noise_filters" yaml:"noise_filters"`
}

// Load reads the config at path. An empty path yields the defaults rooted at the
// user's config directory. Files ending in .yaml or .yml are decoded as YAML,
// everything else as JSON.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		default:
			if err := json.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		}
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		c.DataDir = filepath.Join(base, AppName)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "results.db")
	}
	if c.HistoryDir == "" {
		c.HistoryDir = filepath.Join(c.DataDir, "history")
	}
	if c.SettingsPath == "" {
		c.SettingsPath = filepath.Join(c.DataDir, "settings.json")
	}
	if c.PolicyPath == "" {
		c.PolicyPath = filepath.Join(c.DataDir, "policy.json")
	}
	if c.ScratchDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		c.ScratchDir = home
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.AnalyzeWindowSec == 0 {
		c.AnalyzeWindowSec = DefaultAnalyzeWindow
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.GuidelineSchedule == "" {
		c.GuidelineSchedule = DefaultGuidelineSpec
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = DefaultCleanupSpec
	}
	if c.ResultKeepDays <= 0 {
		c.ResultKeepDays = DefaultResultKeepDays
	}
	if c.Runner.Backend == "" {
		c.Runner.Backend = "gemini-cli"
	}
	if c.Runner.MaxParallel < 0 {
		return fmt.Errorf("runner.max_parallel must be >= 0")
	}
	switch c.Runner.Backend {
	case "gemini-cli", "claude-cli":
	case "gemini", "anthropic":
		if c.Runner.APIKey == "" {
			return fmt.Errorf("runner.api_key is required for %s backend", c.Runner.Backend)
		}
	default:
		return fmt.Errorf("runner.backend must be gemini-cli, claude-cli, gemini or anthropic")
	}
	return nil
}
