package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/model"
)

type CheckResultDeleter interface {
	DeleteBefore(ctx context.Context, checkedAt string) (int64, error)
}

type CheckResultCleanupJob struct {
	repo     CheckResultDeleter
	keepDays int
	now      func() time.Time
}

func NewCheckResultCleanupJob(repo CheckResultDeleter, keepDays int) *CheckResultCleanupJob {
	return &CheckResultCleanupJob{repo: repo, keepDays: keepDays, now: time.Now}
}

func (j *CheckResultCleanupJob) Name() string {
	return "check_result_cleanup"
}

func (j *CheckResultCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	keepDays := j.keepDays
	if keepDays <= 0 {
		keepDays = 90
	}
	cutoff := j.now().AddDate(0, 0, -keepDays).Format(model.TimeLayout)
	n, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("old check results removed", zap.Int64("count", n), zap.String("cutoff", cutoff))
	}
	return nil
}
