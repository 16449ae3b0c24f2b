package repository

import (
	"context"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HomeworkRepository 基于 gorm 的 HomeworkStore 实现（MySQL / SQLite）
type HomeworkRepository struct {
	DB *gorm.DB
}

func NewHomeworkRepository(db *gorm.DB) *HomeworkRepository {
	return &HomeworkRepository{DB: db}
}

func (r *HomeworkRepository) Get(ctx context.Context, questionGID, studentID string) (*model.HomeworkRecord, error) {
	var rec model.HomeworkRecord
	err := r.DB.WithContext(ctx).
		Where("question_gid = ? AND student_id = ?", questionGID, studentID).
		Take(&rec).Error
	if err != nil {
		return nil, storeError(err, "get %s/%s", questionGID, studentID)
	}
	return &rec, nil
}

func (r *HomeworkRepository) Put(ctx context.Context, rec *model.HomeworkRecord) error {
	if rec.IsNew() {
		return r.insert(ctx, rec)
	}
	return r.update(ctx, rec)
}

func (r *HomeworkRepository) insert(ctx context.Context, rec *model.HomeworkRecord) error {
	row := rec.Clone()
	row.Version = 1
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return storeError(res.Error, "insert %s/%s", rec.QuestionGID, rec.StudentID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s already exists", util.ErrConflict, rec.QuestionGID, rec.StudentID)
	}
	rec.MarkPersisted(1)
	return nil
}

func (r *HomeworkRepository) update(ctx context.Context, rec *model.HomeworkRecord) error {
	cols := rec.DirtyColumns()
	if len(cols) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(cols)+1)
	for _, c := range cols {
		switch c {
		case model.ColumnAnswer:
			updates[c] = rec.Answer
		case model.ColumnState:
			updates[c] = rec.State
		case model.ColumnExplanation:
			updates[c] = rec.Explanation
		case model.ColumnScore:
			updates[c] = rec.Score
		case model.ColumnAttempts:
			updates[c] = rec.Attempts
		}
	}
	next := rec.Version + 1
	updates["version"] = next

	res := r.DB.WithContext(ctx).
		Model(&model.HomeworkRecord{}).
		Where("question_gid = ? AND student_id = ? AND version = ?", rec.QuestionGID, rec.StudentID, rec.Version).
		Updates(updates)
	if res.Error != nil {
		return storeError(res.Error, "update %s/%s", rec.QuestionGID, rec.StudentID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s version %d is stale", util.ErrConflict, rec.QuestionGID, rec.StudentID, rec.Version)
	}
	rec.MarkPersisted(next)
	return nil
}

func (r *HomeworkRepository) Query(ctx context.Context, questionGID string, pred StudentPredicate, fn func(*model.HomeworkRecord) error) error {
	db := r.DB.WithContext(ctx).Model(&model.HomeworkRecord{}).Where("question_gid = ?", questionGID)
	if pred.Op == OpGreaterThan {
		db = db.Where("student_id > ?", pred.Value)
	} else {
		db = db.Where("student_id = ?", pred.Value)
	}

	rows, err := db.Order("student_id").Rows()
	if err != nil {
		return storeError(err, "query %s", questionGID)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.HomeworkRecord
		if err := r.DB.ScanRows(rows, &rec); err != nil {
			return storeError(err, "scan %s", questionGID)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeError(err, "query %s", questionGID)
	}
	return nil
}

// storeError 将底层错误归类为领域错误
func storeError(err error, format string, args ...interface{}) error {
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", util.ErrRecordNotFound, what)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", util.ErrStoreTimeout, what, err)
	default:
		return fmt.Errorf("%w: %s: %v", util.ErrStore, what, err)
	}
}
