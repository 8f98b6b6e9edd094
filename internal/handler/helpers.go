package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	response.Fail(c, err)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		handleError(c, fmt.Errorf("%w: %v", appErr.ErrInvalidInput, err))
		return false
	}
	return true
}

func requiredQuery(c *gin.Context, key string) (string, bool) {
	v := c.Query(key)
	if v == "" {
		handleError(c, fmt.Errorf("%w: %s required", appErr.ErrInvalidInput, key))
		return "", false
	}
	return v, true
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
