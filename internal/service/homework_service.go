package service

import (
	"context"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/repository"
	"course_homework_backend/internal/util"
	"course_homework_backend/pkg/logger"
	"course_homework_backend/pkg/monitoring"
	"course_homework_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// 热更新可能关闭 Redis 或清空 lock_ttl，而启动时装配的锁仍在使用
const defaultLockTTL = 5 * time.Second

type HomeworkService struct {
	Records *RecordService
	Locker  repository.KeyLocker
	Cache   *repository.AnswerKeyCache
}

func NewHomeworkService(records *RecordService, locker repository.KeyLocker, cache *repository.AnswerKeyCache) *HomeworkService {
	if locker == nil {
		locker = repository.NoopKeyLocker{}
	}
	return &HomeworkService{Records: records, Locker: locker, Cache: cache}
}

// AnswerKeyInfo 标准答案信息；查询失败时为零值
type AnswerKeyInfo struct {
	Answer      *string         `json:"answer"`
	Score       decimal.Decimal `json:"score"`
	Attempts    int             `json:"attempts"`
	Explanation *string         `json:"explanation"`
}

type CheckResult struct {
	State        model.HomeworkState `json:"state"`
	Score        decimal.Decimal     `json:"score"`
	UsedAttempts int                 `json:"used_attempts"`
	MaxScore     decimal.Decimal     `json:"max_score"`
	MaxAttempts  int                 `json:"max_attempts"`
	Explanation  *string             `json:"explanation"`
}

type AnswerKeyParams struct {
	Answer      string          `json:"answer"`
	Score       decimal.Decimal `json:"score"`
	MaxAttempts int             `json:"max_attempts"`
	Explanation *string         `json:"explanation"`
}

func refFields(ref model.QuestionRef, studentID string) []zap.Field {
	return []zap.Field{
		zap.Int64("course", ref.CourseID),
		zap.Int64("pset", ref.ProblemsetID),
		zap.Int64("question", ref.QuestionID),
		zap.String("student", studentID),
	}
}

// GetAnswer returns the stored answer, score, attempts and explanation of a
// record, the answer key when studentID is model.AnswerKey.
//
// It never fails: a missing or unreadable record is logged and reported as
// the zero value so that a broken answer key degrades submissions to a zero
// score instead of failing them.
func (s *HomeworkService) GetAnswer(ctx context.Context, ref model.QuestionRef, studentID string) (info AnswerKeyInfo) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.AnswerKeyLookupFailures.Inc()
			logger.Log.Error("panic while getting answer",
				append(refFields(ref, studentID), zap.Any("panic", r))...)
			info = AnswerKeyInfo{}
		}
	}()

	rec, err := s.loadAnswer(ctx, ref, studentID)
	if err != nil {
		monitoring.AnswerKeyLookupFailures.Inc()
		fields := append(refFields(ref, studentID), zap.Error(err))
		if errors.Is(err, util.ErrRecordNotFound) {
			logger.Log.Warn("answer not found", fields...)
		} else {
			logger.Log.Error("exception while getting answer", fields...)
		}
		return AnswerKeyInfo{}
	}

	answer := rec.Answer
	return AnswerKeyInfo{
		Answer:      &answer,
		Score:       rec.ScoreOr(decimal.Zero),
		Attempts:    rec.AttemptsOr(0),
		Explanation: rec.ExplanationOr(nil),
	}
}

func (s *HomeworkService) loadAnswer(ctx context.Context, ref model.QuestionRef, studentID string) (*model.HomeworkRecord, error) {
	if studentID != model.AnswerKey {
		return s.Records.Fetch(ctx, ref, studentID)
	}
	if rec, ok := s.Cache.Get(ctx, ref.GID()); ok {
		return rec, nil
	}
	rec, err := s.Records.Fetch(ctx, ref, model.AnswerKey)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, rec, s.Records.Settings().AnswerKeyCacheTTL)
	return rec, nil
}

// evaluate 只做比较，不访问存储；答错时不返回解析
func evaluate(key AnswerKeyInfo, answer string) CheckResult {
	res := CheckResult{
		State:       model.StateIncorrect,
		Score:       decimal.Zero,
		MaxScore:    key.Score,
		MaxAttempts: key.Attempts,
	}
	if key.Answer != nil && *key.Answer == answer {
		res.State = model.StateCorrect
		res.Score = key.Score
		res.Explanation = key.Explanation
	}
	return res
}

// CheckAnswer evaluates answer against the question's answer key. With
// record set, the outcome is written to the student's record: attempts grow
// only while the record stays incorrect, and a correct record or one whose
// attempts ran out keeps its stored answer, state and score. UsedAttempts is
// the attempt count before this submission.
func (s *HomeworkService) CheckAnswer(ctx context.Context, ref model.QuestionRef, studentID, answer string, record bool) (*CheckResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "HomeworkService.CheckAnswer")
	defer span.End()
	span.SetAttributes(
		attribute.String("homework.question_gid", ref.GID()),
		attribute.Bool("homework.record", record),
	)

	if studentID == "" || studentID == model.AnswerKey {
		return nil, fmt.Errorf("%w: invalid student id %q", util.ErrValidation, studentID)
	}

	key := s.GetAnswer(ctx, ref, model.AnswerKey)
	logger.Log.Debug("comparing answer",
		append(refFields(ref, studentID), zap.String("answer", answer), zap.Stringp("expected", key.Answer))...)

	eval := evaluate(key, answer)
	if !record {
		eval.UsedAttempts = 1
		monitoring.Evaluations.WithLabelValues(eval.State.String(), "false").Inc()
		return &eval, nil
	}

	var res *CheckResult
	err := s.serialized(ctx, ref, studentID, func() error {
		var err error
		res, err = s.recordAttempt(ctx, ref, studentID, answer, eval)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.Evaluations.WithLabelValues(res.State.String(), "true").Inc()
	span.SetAttributes(attribute.Int("homework.state", int(res.State)))
	return res, nil
}

// recordAttempt 读取-判定-写回，写冲突时由 serialized 重试
func (s *HomeworkService) recordAttempt(ctx context.Context, ref model.QuestionRef, studentID, answer string, eval CheckResult) (*CheckResult, error) {
	res := eval
	res.UsedAttempts = 1

	rec, err := s.Records.Fetch(ctx, ref, studentID)
	switch {
	case err == nil:
		res.UsedAttempts = rec.AttemptsOr(0)
		attemptsRanOut := res.MaxAttempts > 0 && res.UsedAttempts >= res.MaxAttempts
		if rec.State != model.StateCorrect && !attemptsRanOut {
			rec.SetAnswer(answer, eval.State)
		} else {
			res.Score = rec.ScoreOr(decimal.Zero)
		}
	case errors.Is(err, util.ErrRecordNotFound):
		state := eval.State
		rec, err = model.NewHomeworkRecord(model.CreateRecordParams{
			CourseID:     ref.CourseID,
			ProblemsetID: ref.ProblemsetID,
			QuestionID:   ref.QuestionID,
			StudentID:    studentID,
			Answer:       &answer,
			State:        &state,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	res.State = rec.State
	if rec.State == model.StateIncorrect {
		rec.IncrementAttempts()
	}
	if eval.State != model.StateCorrect || rec.State != model.StateCorrect {
		res.Explanation = nil
	}
	rec.SetScore(res.Score)

	if err := s.Records.Save(ctx, rec); err != nil {
		return nil, err
	}
	return &res, nil
}

// serialized runs op under the per-key lock and retries it while the store
// reports a lost conditional write.
func (s *HomeworkService) serialized(ctx context.Context, ref model.QuestionRef, studentID string, op func() error) error {
	settings := s.Records.Settings()
	lockTTL := settings.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTTL)
	unlock, err := s.Locker.Lock(lockCtx, repository.LockKey(ref.GID(), studentID), lockTTL)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	for i := 0; i < settings.MaxRetries; i++ {
		err := op()
		if !errors.Is(err, util.ErrConflict) {
			return err
		}
		monitoring.WriteConflicts.Inc()
		logger.Log.Warn("homework write conflict, retrying",
			append(refFields(ref, studentID), zap.Int("try", i+1), zap.Error(err))...)
	}
	return fmt.Errorf("%w: %s/%s after %d tries", util.ErrConcurrency, ref.GID(), studentID, settings.MaxRetries)
}

// SetAnswerKey creates or replaces the answer key of a question.
func (s *HomeworkService) SetAnswerKey(ctx context.Context, ref model.QuestionRef, p AnswerKeyParams) (*model.HomeworkRecord, error) {
	ctx, span := tracing.Tracer().Start(ctx, "HomeworkService.SetAnswerKey")
	defer span.End()

	if p.Score.IsNegative() {
		return nil, fmt.Errorf("%w: score must not be negative", util.ErrValidation)
	}
	// score 列为 decimal(10,2)，超出精度的值会被数据库静默舍入
	if !p.Score.Equal(p.Score.Truncate(model.ScoreScale)) {
		return nil, fmt.Errorf("%w: score %s has more than %d decimal places", util.ErrValidation, p.Score, model.ScoreScale)
	}
	if p.Score.GreaterThanOrEqual(model.ScoreLimit) {
		return nil, fmt.Errorf("%w: score %s must be below %s", util.ErrValidation, p.Score, model.ScoreLimit)
	}

	var saved *model.HomeworkRecord
	err := s.serialized(ctx, ref, model.AnswerKey, func() error {
		rec, err := s.Records.Fetch(ctx, ref, model.AnswerKey)
		switch {
		case err == nil:
			rec.SetAnswer(p.Answer, model.StateCorrect)
			if p.Explanation != nil {
				rec.SetExplanation(*p.Explanation)
			}
		case errors.Is(err, util.ErrRecordNotFound):
			state := model.StateCorrect
			rec, err = model.NewHomeworkRecord(model.CreateRecordParams{
				CourseID:     ref.CourseID,
				ProblemsetID: ref.ProblemsetID,
				QuestionID:   ref.QuestionID,
				StudentID:    model.AnswerKey,
				Answer:       &p.Answer,
				State:        &state,
				Explanation:  p.Explanation,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}
		rec.SetScore(p.Score)
		rec.SetAttempts(p.MaxAttempts)
		if err := s.Records.Save(ctx, rec); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	// 无论成功与否都使缓存失效，避免残留旧答案
	s.Cache.Invalidate(ctx, ref.GID())
	if err != nil {
		return nil, err
	}

	logger.Log.Info("answer key updated",
		append(refFields(ref, model.AnswerKey),
			zap.String("score", saved.ScoreOr(decimal.Zero).String()),
			zap.Int("max_attempts", saved.AttemptsOr(0)))...)
	return saved, nil
}
