package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIO           = errors.New("io error")
	ErrProcess      = errors.New("process error")
	ErrJSON         = errors.New("json error")
	ErrPDF          = errors.New("pdf error")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("backend unavailable")
)

// ProcessError describes a model CLI invocation that exited unsuccessfully.
type ProcessError struct {
	ExitCode int
	Status   string
	Stderr   string
	Stdout   string
}

func NewProcessError(exitCode int, stderr, stdout string) *ProcessError {
	status := "terminated"
	if exitCode >= 0 {
		status = fmt.Sprintf("exit code %d", exitCode)
	}
	return &ProcessError{ExitCode: exitCode, Status: status, Stderr: stderr, Stdout: stdout}
}

func (e *ProcessError) Error() string {
	var detail string
	if strings.TrimSpace(e.Stdout) == "" {
		detail = fmt.Sprintf("%s: %s", e.Status, e.Stderr)
	} else {
		detail = fmt.Sprintf("%s: %s\n%s", e.Status, e.Stderr, e.Stdout)
	}
	return strings.TrimSpace(detail)
}

func (e *ProcessError) Unwrap() error {
	return ErrProcess
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsProcess(err error) bool {
	return errors.Is(err, ErrProcess)
}

func IsPDF(err error) bool {
	return errors.Is(err, ErrPDF)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
