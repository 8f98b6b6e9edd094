package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/model"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type SettingsHandler struct {
	app *app.App
}

func NewSettingsHandler(a *app.App) *SettingsHandler {
	return &SettingsHandler{app: a}
}

func (h *SettingsHandler) GetPolicy(c *gin.Context) {
	response.Success(c, h.app.Policy())
}

func (h *SettingsHandler) SavePolicy(c *gin.Context) {
	var req model.AnalyzePolicy
	if !bindJSON(c, &req) {
		return
	}
	if err := h.app.SavePolicy(req); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, h.app.Policy())
}

func (h *SettingsHandler) GetModel(c *gin.Context) {
	response.Success(c, gin.H{"model": h.app.Model()})
}

type modelRequest struct {
	Model string `json:"model"`
}

func (h *SettingsHandler) SetModel(c *gin.Context) {
	var req modelRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.app.SetModel(req.Model); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"model": h.app.Model()})
}

type codeReviewRequest struct {
	Folder  *string `json:"folder"`
	Enabled *bool   `json:"enabled"`
}

// SetCodeReview applies the folder before the enabled flag, so one request can
// point the reviewer at a new tree and switch it on.
func (h *SettingsHandler) SetCodeReview(c *gin.Context) {
	var req codeReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Folder != nil {
		if err := h.app.SetCodeWatchFolder(*req.Folder); err != nil {
			handleError(c, err)
			return
		}
	}
	if req.Enabled != nil {
		if err := h.app.SetCodeReviewEnabled(*req.Enabled); err != nil {
			handleError(c, err)
			return
		}
	}
	cur := h.app.Settings()
	response.Success(c, gin.H{
		"folder":  cur.CodeWatchFolder,
		"enabled": cur.CodeReviewEnabled,
		"running": h.app.CodeReviewRunning(),
	})
}
