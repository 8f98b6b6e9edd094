package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/model"
)

const DefaultModel = "gemini-2.5-pro"

type Settings struct {
	WatchFolder       *string `json:"watch_folder"`
	Model             *string `json:"model"`
	CodeWatchFolder   *string `json:"code_watch_folder"`
	CodeReviewEnabled bool    `json:"code_review_enabled"`
}

// Store persists the user settings and the auto-analysis policy as two JSON files.
// A missing or unreadable file is treated as defaults.
type Store struct {
	mu           sync.Mutex
	settingsPath string
	policyPath   string
}

func NewStore(settingsPath, policyPath string) *Store {
	return &Store{settingsPath: settingsPath, policyPath: policyPath}
}

func (s *Store) Load() Settings {
	var out Settings
	if !readJSON(s.settingsPath, &out) {
		return Settings{}
	}
	return out
}

func (s *Store) Save(v Settings) error {
	return writeJSON(s.settingsPath, v)
}

// Update applies fn to the current settings and saves the result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.Load()
	fn(&cur)
	if err := s.Save(cur); err != nil {
		return cur, err
	}
	return cur, nil
}

func (s *Store) Model() string {
	cur := s.Load()
	if cur.Model == nil || *cur.Model == "" {
		return DefaultModel
	}
	return *cur.Model
}

func (s *Store) SetModel(name string) error {
	_, err := s.Update(func(v *Settings) { v.Model = &name })
	return err
}

func (s *Store) LoadPolicy() model.AnalyzePolicy {
	policy := model.DefaultAnalyzePolicy()
	if !readJSON(s.policyPath, &policy) {
		return model.DefaultAnalyzePolicy()
	}
	return policy
}

func (s *Store) SavePolicy(p model.AnalyzePolicy) error {
	return writeJSON(s.policyPath, p)
}

func readJSON(path string, dst interface{}) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logutil.GetLogger(context.Background()).Warn("ignore malformed json file", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
