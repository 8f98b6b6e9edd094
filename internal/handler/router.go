package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/app"
)

type RouterDeps struct {
	Watch      *WatchHandler
	Analysis   *AnalysisHandler
	Settings   *SettingsHandler
	PDF        *PDFHandler
	Guidelines *GuidelineHandler
	System     *SystemHandler
	Events     *EventsHandler
	// ModelGuard wraps the routes that start model calls.
	ModelGuard gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	guard := deps.ModelGuard
	if guard == nil {
		guard = func(c *gin.Context) { c.Next() }
	}

	api.POST("/watch", deps.Watch.Start)
	api.DELETE("/watch", deps.Watch.Stop)
	api.GET("/watch", deps.Watch.Status)
	api.GET("/pending", deps.Watch.Pending)
	api.DELETE("/pending", deps.Watch.ClearPending)
	api.DELETE("/pending/item", deps.Watch.RemovePending)

	api.POST("/analyze", guard, deps.Analysis.Analyze)
	api.GET("/history", deps.Analysis.History)
	api.GET("/results", deps.Analysis.Results)

	api.GET("/policy", deps.Settings.GetPolicy)
	api.PUT("/policy", deps.Settings.SavePolicy)
	api.GET("/model", deps.Settings.GetModel)
	api.PUT("/model", deps.Settings.SetModel)
	api.PUT("/code-review", deps.Settings.SetCodeReview)

	api.POST("/pdf/embed", deps.PDF.Embed)
	api.GET("/pdf/result", deps.PDF.Result)

	api.POST("/guidelines", guard, deps.Guidelines.Generate)
	api.GET("/cli/check", deps.System.CheckCLI)
	api.POST("/jobs/:name/run", deps.System.RunJob)

	api.GET("/events", deps.Events.Stream)
}

func NewRouterDeps(a *app.App, modelGuard gin.HandlerFunc) RouterDeps {
	return RouterDeps{
		Watch:      NewWatchHandler(a),
		Analysis:   NewAnalysisHandler(a),
		Settings:   NewSettingsHandler(a),
		PDF:        NewPDFHandler(a),
		Guidelines: NewGuidelineHandler(a),
		System:     NewSystemHandler(a),
		Events:     NewEventsHandler(a.Events()),
		ModelGuard: modelGuard,
	}
}
