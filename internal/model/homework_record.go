package model

import (
	"course_homework_backend/internal/util"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// HomeworkState 作答评测状态
type HomeworkState int8

const (
	StateIncorrect HomeworkState = -1
	StatePending   HomeworkState = 0
	StateCorrect   HomeworkState = 1
)

func (s HomeworkState) Valid() bool {
	return s == StateIncorrect || s == StatePending || s == StateCorrect
}

func (s HomeworkState) String() string {
	switch s {
	case StateCorrect:
		return "correct"
	case StateIncorrect:
		return "incorrect"
	case StatePending:
		return "pending"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

const (
	// AnswerKey 是标准答案伪记录的 student_id
	AnswerKey = "-"
	// QuestionGIDSeparator joins course, problem set and question ids.
	QuestionGIDSeparator = "|"
)

// score 列的精度：decimal(10,2)
const ScoreScale int32 = 2

// ScoreLimit 是 decimal(10,2) 可存储分数的上界（不含）
var ScoreLimit = decimal.New(1, 8)

// 记录中可被修改的列
const (
	ColumnAnswer      = "answer"
	ColumnState       = "state"
	ColumnExplanation = "explanation"
	ColumnScore       = "score"
	ColumnAttempts    = "attempts"
)

// QuestionRef 定位一道题
type QuestionRef struct {
	CourseID     int64 `json:"course_id"`
	ProblemsetID int64 `json:"problemset_id"`
	QuestionID   int64 `json:"question_id"`
}

func (q QuestionRef) GID() string {
	return QuestionGID(q.CourseID, q.ProblemsetID, q.QuestionID)
}

func QuestionGID(courseID, problemsetID, questionID int64) string {
	return strings.Join([]string{
		strconv.FormatInt(courseID, 10),
		strconv.FormatInt(problemsetID, 10),
		strconv.FormatInt(questionID, 10),
	}, QuestionGIDSeparator)
}

// HomeworkRecord 一名学生在一道题上的评测状态；student_id 为 AnswerKey 时保存标准答案、满分与最大尝试次数。
// Attempts, Score and Explanation are nullable because rows written by older
// versions of the table may lack them.
type HomeworkRecord struct {
	QuestionGID  string              `gorm:"column:question_gid;primaryKey;type:varchar(64)" json:"question_gid"`
	StudentID    string              `gorm:"primaryKey;type:varchar(128)" json:"student_id"`
	CourseID     int64               `gorm:"not null;index:idx_homework_pset,priority:1" json:"course_id"`
	ProblemsetID int64               `gorm:"not null;index:idx_homework_pset,priority:2" json:"problemset_id"`
	QuestionID   int64               `gorm:"not null" json:"question_id"`
	Answer       string              `gorm:"type:text" json:"answer"`
	Explanation  *string             `gorm:"type:text" json:"explanation,omitempty"`
	Attempts     *int                `json:"attempts,omitempty"`
	Score        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"score"`
	State        HomeworkState       `gorm:"not null;type:smallint" json:"state"`
	CreateTime   time.Time           `gorm:"not null" json:"create_time"`
	Version      int64               `gorm:"not null" json:"-"`

	dirty map[string]struct{}
	isNew bool
}

func (HomeworkRecord) TableName() string {
	return "course_homework"
}

// CreateRecordParams 创建记录所需字段，Answer 与 State 为必填（允许空字符串答案）
type CreateRecordParams struct {
	CourseID     int64          `validate:"gt=0"`
	ProblemsetID int64          `validate:"gt=0"`
	QuestionID   int64          `validate:"gt=0"`
	StudentID    string         `validate:"required,max=128,excludes=0x7C"`
	Answer       *string        `validate:"required"`
	State        *HomeworkState `validate:"required"`
	Explanation  *string
}

var validate = validator.New()

// NewHomeworkRecord validates params and builds an unsaved record.
func NewHomeworkRecord(p CreateRecordParams) (*HomeworkRecord, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	if p.StudentID <= " " {
		return nil, fmt.Errorf("%w: student id %q must sort after the blank key", util.ErrValidation, p.StudentID)
	}
	if !p.State.Valid() {
		return nil, fmt.Errorf("%w: invalid state %d", util.ErrValidation, *p.State)
	}
	if p.StudentID == AnswerKey && *p.State != StateCorrect {
		return nil, fmt.Errorf("%w: answer key must be created in state %s, got %s",
			util.ErrValidation, StateCorrect, *p.State)
	}

	rec := &HomeworkRecord{
		QuestionGID:  QuestionGID(p.CourseID, p.ProblemsetID, p.QuestionID),
		StudentID:    p.StudentID,
		CourseID:     p.CourseID,
		ProblemsetID: p.ProblemsetID,
		QuestionID:   p.QuestionID,
		Answer:       *p.Answer,
		State:        *p.State,
		CreateTime:   time.Now().UTC().Truncate(time.Second),
		isNew:        true,
	}
	if p.StudentID == AnswerKey && p.Explanation != nil {
		e := *p.Explanation
		rec.Explanation = &e
	}
	return rec, nil
}

func (r *HomeworkRecord) Ref() QuestionRef {
	return QuestionRef{CourseID: r.CourseID, ProblemsetID: r.ProblemsetID, QuestionID: r.QuestionID}
}

func (r *HomeworkRecord) IsAnswerKey() bool {
	return r.StudentID == AnswerKey
}

// IsNew 为 true 表示记录尚未写入存储
func (r *HomeworkRecord) IsNew() bool {
	return r.isNew
}

func (r *HomeworkRecord) markDirty(cols ...string) {
	if r.dirty == nil {
		r.dirty = make(map[string]struct{}, len(cols))
	}
	for _, c := range cols {
		r.dirty[c] = struct{}{}
	}
}

// DirtyColumns returns the modified columns in a stable order.
func (r *HomeworkRecord) DirtyColumns() []string {
	cols := make([]string, 0, len(r.dirty))
	for c := range r.dirty {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// MarkPersisted 由存储在写入成功后调用
func (r *HomeworkRecord) MarkPersisted(version int64) {
	r.dirty = nil
	r.isNew = false
	r.Version = version
}

func (r *HomeworkRecord) SetAnswer(answer string, state HomeworkState) {
	r.Answer = answer
	r.State = state
	r.markDirty(ColumnAnswer, ColumnState)
}

func (r *HomeworkRecord) SetExplanation(text string) {
	r.Explanation = &text
	r.markDirty(ColumnExplanation)
}

func (r *HomeworkRecord) SetScore(score decimal.Decimal) {
	r.Score = decimal.NullDecimal{Decimal: score, Valid: true}
	r.markDirty(ColumnScore)
}

func (r *HomeworkRecord) SetAttempts(n int) {
	r.Attempts = &n
	r.markDirty(ColumnAttempts)
}

func (r *HomeworkRecord) IncrementAttempts() {
	r.SetAttempts(r.AttemptsOr(0) + 1)
}

func (r *HomeworkRecord) AttemptsOr(def int) int {
	if r.Attempts == nil {
		return def
	}
	return *r.Attempts
}

func (r *HomeworkRecord) ScoreOr(def decimal.Decimal) decimal.Decimal {
	if !r.Score.Valid {
		return def
	}
	return r.Score.Decimal
}

func (r *HomeworkRecord) ExplanationOr(def *string) *string {
	if r.Explanation == nil {
		return def
	}
	e := *r.Explanation
	return &e
}

// Clone 深拷贝，包括脏字段集合
func (r *HomeworkRecord) Clone() *HomeworkRecord {
	c := *r
	if r.Explanation != nil {
		e := *r.Explanation
		c.Explanation = &e
	}
	if r.Attempts != nil {
		a := *r.Attempts
		c.Attempts = &a
	}
	c.dirty = nil
	if len(r.dirty) > 0 {
		c.markDirty(r.DirtyColumns()...)
	}
	return &c
}
