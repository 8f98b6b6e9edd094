package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type SystemHandler struct {
	app *app.App
}

func NewSystemHandler(a *app.App) *SystemHandler {
	return &SystemHandler{app: a}
}

// CheckCLI reports backend availability in the payload; an unusable backend is
// not a request failure.
func (h *SystemHandler) CheckCLI(c *gin.Context) {
	version, err := h.app.CheckCLI(c.Request.Context())
	if err != nil {
		response.Success(c, gin.H{"available": false, "error": err.Error()})
		return
	}
	response.Success(c, gin.H{"available": true, "version": version})
}

func (h *SystemHandler) RunJob(c *gin.Context) {
	if err := h.app.TriggerJob(c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
