package model

import "strings"

type PendingFile struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	DetectedAt string `json:"detected_at"`
	SizeBytes  uint64 `json:"size_bytes"`
}

type AnalyzePolicy struct {
	AutoAnalyze     bool     `json:"auto_analyze"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
	MinSizeBytes    uint64   `json:"min_size_bytes"`
	MaxSizeBytes    uint64   `json:"max_size_bytes"`
}

func DefaultAnalyzePolicy() AnalyzePolicy {
	return AnalyzePolicy{
		AutoAnalyze:     false,
		IncludePatterns: []string{},
		ExcludePatterns: []string{"test", "draft"},
		MinSizeBytes:    1024,
		MaxSizeBytes:    50 * 1024 * 1024,
	}
}

// ShouldAutoAnalyze reports whether a detected file is queued for analysis without
// user action. Exclude patterns win over include patterns; an empty include list
// accepts every name.
func (p AnalyzePolicy) ShouldAutoAnalyze(file PendingFile) bool {
	if !p.AutoAnalyze {
		return false
	}
	if file.SizeBytes < p.MinSizeBytes || file.SizeBytes > p.MaxSizeBytes {
		return false
	}
	name := strings.ToLower(file.Name)
	for _, pattern := range p.ExcludePatterns {
		if strings.Contains(name, strings.ToLower(pattern)) {
			return false
		}
	}
	if len(p.IncludePatterns) == 0 {
		return true
	}
	for _, pattern := range p.IncludePatterns {
		if strings.Contains(name, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
