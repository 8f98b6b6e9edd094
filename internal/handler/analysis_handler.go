package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/analysis"
	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/model"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type AnalysisHandler struct {
	app *app.App
}

func NewAnalysisHandler(a *app.App) *AnalysisHandler {
	return &AnalysisHandler{app: a}
}

type analyzeRequest struct {
	Paths       []string `json:"paths" binding:"required,min=1"`
	Mode        string   `json:"mode"`
	Instruction string   `json:"instruction"`
	HTML        bool     `json:"html"`
}

type unitResponse struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type analyzeResponse struct {
	JobID        string         `json:"job_id"`
	Result       string         `json:"result"`
	HTML         string         `json:"html,omitempty"`
	Total        int            `json:"total"`
	SuccessCount int            `json:"success_count"`
	Units        []unitResponse `json:"units"`
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.app.Analyze(c.Request.Context(), req.Paths, req.Mode, req.Instruction)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := analyzeResponse{
		JobID:        report.JobID,
		Result:       report.Text,
		Total:        report.Total,
		SuccessCount: report.SuccessCount,
		Units:        make([]unitResponse, 0, len(report.Units)),
	}
	for _, u := range report.Units {
		item := unitResponse{FileName: u.FileName, Path: u.Path, Success: u.OK()}
		if u.Err != nil {
			item.Error = u.Err.Error()
		}
		resp.Units = append(resp.Units, item)
	}
	if req.HTML {
		page, err := analysis.RenderHTML(filepath.Base(req.Paths[0]), report.Text)
		if err != nil {
			handleError(c, err)
			return
		}
		resp.HTML = page
	}
	response.Success(c, resp)
}

func (h *AnalysisHandler) History(c *gin.Context) {
	response.Success(c, h.app.History())
}

// Results lists recent check results, or those of one job when job_id is given.
func (h *AnalysisHandler) Results(c *gin.Context) {
	var (
		items []model.CheckResult
		err   error
	)
	if jobID := c.Query("job_id"); jobID != "" {
		items, err = h.app.JobResults(c.Request.Context(), jobID)
	} else {
		items, err = h.app.CheckResults(c.Request.Context(), intQuery(c, "limit", 50))
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}
