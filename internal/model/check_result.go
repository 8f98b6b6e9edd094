package model

const (
	CheckStatusOK      = "ok"
	CheckStatusWarning = "warning"
	CheckStatusError   = "error"
)

type CheckResult struct {
	ID        int64  `json:"id" db:"id"`
	JobID     string `json:"job_id" db:"job_id"`
	FilePath  string `json:"file_path" db:"file_path"`
	FileName  string `json:"file_name" db:"file_name"`
	CheckedAt string `json:"checked_at" db:"checked_at"`
	Status    string `json:"status" db:"status"`
	Message   string `json:"message" db:"message"`
	Details   string `json:"details" db:"details"`
}
