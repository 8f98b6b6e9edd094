package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

type WatchHandler struct {
	app *app.App
}

func NewWatchHandler(a *app.App) *WatchHandler {
	return &WatchHandler{app: a}
}

type watchRequest struct {
	Folder string `json:"folder" binding:"required"`
}

func (h *WatchHandler) Start(c *gin.Context) {
	var req watchRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.app.StartWatching(req.Folder)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"message": msg, "folder": req.Folder})
}

func (h *WatchHandler) Stop(c *gin.Context) {
	response.Success(c, gin.H{"message": h.app.StopWatching()})
}

func (h *WatchHandler) Status(c *gin.Context) {
	folder := h.app.WatchFolder()
	response.Success(c, gin.H{"running": folder != "", "folder": folder})
}

func (h *WatchHandler) Pending(c *gin.Context) {
	response.Success(c, h.app.PendingFiles())
}

func (h *WatchHandler) ClearPending(c *gin.Context) {
	h.app.ClearPending()
	response.Success(c, gin.H{"ok": true})
}

func (h *WatchHandler) RemovePending(c *gin.Context) {
	path, ok := requiredQuery(c, "path")
	if !ok {
		return
	}
	h.app.RemovePending(path)
	response.Success(c, gin.H{"ok": true})
}
