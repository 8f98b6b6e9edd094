package model

type ReviewResult struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Review    string `json:"review_result"`
	Timestamp string `json:"timestamp"`
	HasIssues bool   `json:"has_issues"`
}
