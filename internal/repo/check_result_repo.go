package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/shoruichecker/internal/model"
)

const checkResultTable = "check_results"

var checkResultFields = []string{"id", "job_id", "file_path", "file_name", "checked_at", "status", "message", "details"}

type CheckResultRepo struct {
	db *sqlx.DB
}

func NewCheckResultRepo(db *sql.DB) *CheckResultRepo {
	return &CheckResultRepo{db: sqlx.NewDb(db, "sqlite")}
}

func (r *CheckResultRepo) Save(ctx context.Context, item *model.CheckResult) error {
	data := map[string]interface{}{
		"job_id":     item.JobID,
		"file_path":  item.FilePath,
		"file_name":  item.FileName,
		"checked_at": item.CheckedAt,
		"status":     item.Status,
		"message":    item.Message,
		"details":    item.Details,
	}
	sqlStr, args, err := builder.BuildInsert(checkResultTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// ListRecent returns the newest results first.
func (r *CheckResultRepo) ListRecent(ctx context.Context, limit int) ([]model.CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"_orderby": "id desc",
		"_limit":   []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect(checkResultTable, where, checkResultFields)
	if err != nil {
		return nil, err
	}
	items := make([]model.CheckResult, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *CheckResultRepo) ListByJob(ctx context.Context, jobID string) ([]model.CheckResult, error) {
	where := map[string]interface{}{
		"job_id":   jobID,
		"_orderby": "id asc",
	}
	sqlStr, args, err := builder.BuildSelect(checkResultTable, where, checkResultFields)
	if err != nil {
		return nil, err
	}
	items := make([]model.CheckResult, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteBefore removes results checked strictly before checkedAt, which uses
// model.TimeLayout so string order is time order.
func (r *CheckResultRepo) DeleteBefore(ctx context.Context, checkedAt string) (int64, error) {
	where := map[string]interface{}{"checked_at <": checkedAt}
	sqlStr, args, err := builder.BuildDelete(checkResultTable, where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
