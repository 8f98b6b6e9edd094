package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrInternal
	ErrProcess
	ErrPDF
	ErrUnavailable
	ErrForbidden
	ErrTooMany
)
