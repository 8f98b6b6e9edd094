package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type PDFHandler struct {
	app *app.App
}

func NewPDFHandler(a *app.App) *PDFHandler {
	return &PDFHandler{app: a}
}

type embedRequest struct {
	Path        string `json:"path" binding:"required"`
	Result      string `json:"result"`
	Instruction string `json:"instruction"`
}

func (h *PDFHandler) Embed(c *gin.Context) {
	var req embedRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.app.EmbedResult(req.Path, req.Result, req.Instruction); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *PDFHandler) Result(c *gin.Context) {
	path, ok := requiredQuery(c, "path")
	if !ok {
		return
	}
	data, found := h.app.ReadResult(path)
	if !found {
		handleError(c, fmt.Errorf("%w: 解析データがありません: %s", appErr.ErrNotFound, path))
		return
	}
	response.Success(c, data)
}
