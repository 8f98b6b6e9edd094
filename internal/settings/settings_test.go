package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/shoruichecker/internal/model"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "nested", "settings.json"), filepath.Join(dir, "policy.json"))
}

func TestModel_DefaultsToGemini(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, DefaultModel, s.Model())
	require.Contains(t, s.Model(), "gemini")
}

func TestSetModel_PersistsAndCreatesParent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetModel("gemini-2.5-flash"))
	require.Equal(t, "gemini-2.5-flash", s.Model())
	_, err := os.Stat(s.settingsPath)
	require.NoError(t, err)
}

func TestLoad_MalformedFileFallsBack(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.settingsPath), 0o755))
	require.NoError(t, os.WriteFile(s.settingsPath, []byte("{broken"), 0o644))
	got := s.Load()
	require.Nil(t, got.WatchFolder)
	require.False(t, got.CodeReviewEnabled)
}

func TestPolicy_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, model.DefaultAnalyzePolicy(), s.LoadPolicy())

	p := model.DefaultAnalyzePolicy()
	p.AutoAnalyze = true
	p.IncludePatterns = []string{"契約"}
	require.NoError(t, s.SavePolicy(p))
	require.Equal(t, p, s.LoadPolicy())
}
