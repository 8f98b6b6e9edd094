package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/shoruichecker/internal/pkg/errcode"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failed envelope. The HTTP status stays 200; code carries the errcode value.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// Fail maps err onto an errcode and keeps its message verbatim, so a caller sees the
// same diagnostic the CLI would print.
func Fail(c *gin.Context, err error) {
	Error(c, CodeOf(err), err.Error())
}

func CodeOf(err error) int {
	switch {
	case appErr.IsNotFound(err):
		return errcode.ErrNotFound
	case appErr.IsInvalidInput(err):
		return errcode.ErrInvalid
	case appErr.IsProcess(err):
		return errcode.ErrProcess
	case appErr.IsPDF(err):
		return errcode.ErrPDF
	case appErr.IsUnavailable(err):
		return errcode.ErrUnavailable
	default:
		return errcode.ErrInternal
	}
}
