package service

import (
	"context"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/repository"
	"course_homework_backend/pkg/tracing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// 报表按题并发查询的上限
const reportQueryConcurrency = 4

type StudentAnswer struct {
	ID         string              `json:"id"`
	Answer     string              `json:"answer"`
	Evaluation model.HomeworkState `json:"evaluation"`
	Score      decimal.Decimal     `json:"score"`
	Attempts   int                 `json:"attempts"`
}

type QuestionReport struct {
	ID          int64           `json:"id"`
	Students    []StudentAnswer `json:"students"`
	MaxScore    decimal.Decimal `json:"max_score"`
	MaxAttempts int             `json:"max_attempts"`
}

type Report struct {
	CourseID     int64                      `json:"course_id"`
	ProblemsetID int64                      `json:"problemset_id"`
	MaxScore     decimal.Decimal            `json:"max_score"`
	Questions    []QuestionReport           `json:"questions"`
	Scores       map[string]decimal.Decimal `json:"scores"`
}

type QuestionMetadata struct {
	ID       int64           `json:"id"`
	Score    decimal.Decimal `json:"score"`
	Attempts int             `json:"attempts"`
	Answer   *string         `json:"answer,omitempty"`
}

type ProblemsetMetadata struct {
	CourseID     int64              `json:"course_id"`
	ProblemsetID int64              `json:"problemset_id"`
	Questions    []QuestionMetadata `json:"questions"`
	MaxScore     decimal.Decimal    `json:"max_score"`
}

// GetReport lists every student's answer per question, or a single
// student's when studentID is set, and sums each student's scores across
// the questions. Questions are read independently, so the report is not a
// snapshot of concurrent submissions.
func (s *HomeworkService) GetReport(ctx context.Context, courseID, problemsetID int64, questionIDs []int64, studentID *string) (*Report, error) {
	ctx, span := tracing.Tracer().Start(ctx, "HomeworkService.GetReport")
	defer span.End()
	span.SetAttributes(attribute.Int("homework.questions", len(questionIDs)))

	questions := make([]QuestionReport, len(questionIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportQueryConcurrency)
	for i, qid := range questionIDs {
		i, qid := i, qid
		g.Go(func() error {
			ref := model.QuestionRef{CourseID: courseID, ProblemsetID: problemsetID, QuestionID: qid}
			q, err := s.questionReport(gctx, ref, studentID)
			if err != nil {
				return err
			}
			questions[i] = *q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		CourseID:     courseID,
		ProblemsetID: problemsetID,
		MaxScore:     decimal.Zero,
		Questions:    questions,
		Scores:       make(map[string]decimal.Decimal),
	}
	for _, q := range questions {
		report.MaxScore = report.MaxScore.Add(q.MaxScore)
		for _, st := range q.Students {
			report.Scores[st.ID] = report.Scores[st.ID].Add(st.Score)
		}
	}
	return report, nil
}

func (s *HomeworkService) questionReport(ctx context.Context, ref model.QuestionRef, studentID *string) (*QuestionReport, error) {
	q := &QuestionReport{
		ID:       ref.QuestionID,
		Students: make([]StudentAnswer, 0),
		MaxScore: decimal.Zero,
	}
	collect := func(rec *model.HomeworkRecord) error {
		if rec.IsAnswerKey() {
			q.MaxScore = rec.ScoreOr(decimal.Zero)
			q.MaxAttempts = rec.AttemptsOr(0)
			return nil
		}
		q.Students = append(q.Students, StudentAnswer{
			ID:         rec.StudentID,
			Answer:     rec.Answer,
			Evaluation: rec.State,
			Score:      rec.ScoreOr(decimal.Zero),
			Attempts:   rec.AttemptsOr(0),
		})
		return nil
	}

	if studentID == nil {
		return q, s.Records.Query(ctx, ref, repository.AllStudents(), collect)
	}
	if err := s.Records.Query(ctx, ref, repository.StudentEquals(*studentID), collect); err != nil {
		return nil, err
	}
	if *studentID != model.AnswerKey {
		if err := s.Records.Query(ctx, ref, repository.StudentEquals(model.AnswerKey), collect); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// GetProblemsetMetadata reports each question's score and attempt limit from
// its answer key, with the answers themselves only when sendAnswers is set.
// Questions without an answer key are omitted.
func (s *HomeworkService) GetProblemsetMetadata(ctx context.Context, courseID, problemsetID int64, questionIDs []int64, sendAnswers bool) (*ProblemsetMetadata, error) {
	ctx, span := tracing.Tracer().Start(ctx, "HomeworkService.GetProblemsetMetadata")
	defer span.End()

	meta := &ProblemsetMetadata{
		CourseID:     courseID,
		ProblemsetID: problemsetID,
		Questions:    make([]QuestionMetadata, 0, len(questionIDs)),
		MaxScore:     decimal.Zero,
	}
	for _, qid := range questionIDs {
		ref := model.QuestionRef{CourseID: courseID, ProblemsetID: problemsetID, QuestionID: qid}
		err := s.Records.Query(ctx, ref, repository.StudentEquals(model.AnswerKey), func(rec *model.HomeworkRecord) error {
			q := QuestionMetadata{
				ID:       rec.QuestionID,
				Score:    rec.ScoreOr(decimal.Zero),
				Attempts: rec.AttemptsOr(0),
			}
			if sendAnswers {
				answer := rec.Answer
				q.Answer = &answer
			}
			meta.Questions = append(meta.Questions, q)
			meta.MaxScore = meta.MaxScore.Add(q.Score)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return meta, nil
}
