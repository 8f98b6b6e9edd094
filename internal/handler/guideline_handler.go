package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type GuidelineHandler struct {
	app *app.App
}

func NewGuidelineHandler(a *app.App) *GuidelineHandler {
	return &GuidelineHandler{app: a}
}

type guidelineRequest struct {
	Folder      string   `json:"folder"`
	Paths       []string `json:"paths"`
	Instruction string   `json:"instruction"`
}

func (h *GuidelineHandler) Generate(c *gin.Context) {
	var req guidelineRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.app.GenerateGuidelines(c.Request.Context(), req.Folder, req.Paths, req.Instruction)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"summary": summary})
}
