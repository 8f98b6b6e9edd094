package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/shoruichecker/internal/pkg/errcode"
	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, errcode.ErrNotFound, CodeOf(fmt.Errorf("%w: a.pdf", appErr.ErrNotFound)))
	require.Equal(t, errcode.ErrInvalid, CodeOf(fmt.Errorf("%w: paths", appErr.ErrInvalidInput)))
	require.Equal(t, errcode.ErrProcess, CodeOf(appErr.NewProcessError(1, "quota", "")))
	require.Equal(t, errcode.ErrPDF, CodeOf(fmt.Errorf("%w: embed", appErr.ErrPDF)))
	require.Equal(t, errcode.ErrUnavailable, CodeOf(fmt.Errorf("%w: no key", appErr.ErrUnavailable)))
	require.Equal(t, errcode.ErrInternal, CodeOf(errors.New("boom")))
}
