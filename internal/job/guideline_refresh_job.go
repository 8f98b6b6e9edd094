package job

import (
	"context"
	"os"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/guideline"
)

type GuidelineGenerator interface {
	Generate(ctx context.Context, folder string, paths []string, instruction string) (string, error)
}

// GuidelineRefreshJob regenerates the guidelines of the watched folder from the
// results embedded in its PDFs. Folders whose guidelines are newer than every
// analysed PDF are left alone.
type GuidelineRefreshJob struct {
	folder    func() string
	reader    guideline.Reader
	generator GuidelineGenerator
}

func NewGuidelineRefreshJob(folder func() string, reader guideline.Reader, generator GuidelineGenerator) *GuidelineRefreshJob {
	return &GuidelineRefreshJob{folder: folder, reader: reader, generator: generator}
}

func (j *GuidelineRefreshJob) Name() string {
	return "guideline_refresh"
}

func (j *GuidelineRefreshJob) Run(ctx context.Context) error {
	if j.generator == nil || j.folder == nil {
		return nil
	}
	folder := j.folder()
	if folder == "" {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("folder", folder))
	paths, err := guideline.CollectFolder(folder, j.reader)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Debug("no analysed pdf, skip guideline refresh")
		return nil
	}
	if upToDate(guideline.PathFor(folder), paths) {
		logger.Debug("guidelines up to date, skip refresh")
		return nil
	}
	_, err = j.generator.Generate(ctx, folder, paths, "")
	return err
}

func upToDate(guidelinePath string, paths []string) bool {
	gst, err := os.Stat(guidelinePath)
	if err != nil {
		return false
	}
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil || st.ModTime().After(gst.ModTime()) {
			return false
		}
	}
	return true
}

