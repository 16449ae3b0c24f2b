package repository

import (
	"context"
	"course_homework_backend/internal/model"
)

// PredicateOp 对 student_id 的比较方式
type PredicateOp int

const (
	OpEquals PredicateOp = iota
	OpGreaterThan
)

// StudentPredicate filters the range key of a question's records.
type StudentPredicate struct {
	Op    PredicateOp
	Value string
}

func StudentEquals(v string) StudentPredicate {
	return StudentPredicate{Op: OpEquals, Value: v}
}

func StudentAfter(v string) StudentPredicate {
	return StudentPredicate{Op: OpGreaterThan, Value: v}
}

// AllStudents 匹配除空白键以外的所有记录（包括标准答案）
func AllStudents() StudentPredicate {
	return StudentAfter(" ")
}

func (p StudentPredicate) Match(studentID string) bool {
	if p.Op == OpGreaterThan {
		return studentID > p.Value
	}
	return studentID == p.Value
}

// HomeworkStore is the keyed persistence layer for homework records.
//
// Put is conditional: a new record is inserted only if its key is free, and
// a loaded record is updated only if its stored version still matches. A
// lost race returns util.ErrConflict and leaves the stored row untouched.
// Get returns util.ErrRecordNotFound for a missing key. Query calls fn for
// each matching row as it is read and stops at the first error fn returns.
type HomeworkStore interface {
	Get(ctx context.Context, questionGID, studentID string) (*model.HomeworkRecord, error)
	Put(ctx context.Context, rec *model.HomeworkRecord) error
	Query(ctx context.Context, questionGID string, pred StudentPredicate, fn func(*model.HomeworkRecord) error) error
}
