package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/handler"
	"github.com/xxxsen/shoruichecker/internal/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "watch folders, run scheduled jobs and serve the local api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logutil.GetLogger(ctx)

			a.Restore(ctx)
			if err := a.StartScheduler(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}

			deps := handler.NewRouterDeps(a, middleware.RateLimit(time.Duration(cfg.AnalyzeWindowSec)*time.Second))
			engine, err := webapi.NewEngine(
				"/api/v1",
				cfg.Listen,
				webapi.WithRegister(func(group *gin.RouterGroup) {
					handler.RegisterRoutes(group, deps)
				}),
				webapi.WithExtraMiddlewares(
					middleware.LocalOnly(),
					middleware.CORS(cfg.CORSOrigins),
					gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})),
				),
			)
			if err != nil {
				return fmt.Errorf("init web engine: %w", err)
			}
			logger.Info("http server listening", zap.String("addr", cfg.Listen), zap.String("backend", cfg.Runner.Backend))

			go func() {
				if err := engine.Run(); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("server stopping...")
			return nil
		},
	}
}
