package model

// TimeLayout is the zero-padded layout used for every persisted timestamp; lexical
// order of formatted values equals chronological order.
const TimeLayout = "2006-01-02 15:04:05"

type AnalysisHistoryEntry struct {
	FileName     string   `json:"file_name"`
	FilePath     string   `json:"file_path"`
	AnalyzedAt   string   `json:"analyzed_at"`
	DocumentType *string  `json:"document_type"`
	Summary      string   `json:"summary"`
	Issues       []string `json:"issues"`
}

type AnalysisHistory struct {
	ProjectFolder string                 `json:"project_folder"`
	Entries       []AnalysisHistoryEntry `json:"entries"`
}
