package service

import (
	"context"
	"course_homework_backend/internal/config"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/repository"
	"course_homework_backend/internal/util"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var q10 = model.QuestionRef{CourseID: 1, ProblemsetID: 1, QuestionID: 10}

func testHomeworkConfig() config.HomeworkConfig {
	return config.HomeworkConfig{
		MaxRetries:   5,
		StoreTimeout: time.Second,
		LockTTL:      time.Second,
	}
}

func newTestService(t *testing.T, store repository.HomeworkStore) *HomeworkService {
	t.Helper()
	return NewHomeworkService(NewRecordService(store, testHomeworkConfig()), nil, nil)
}

func seedAnswerKey(t *testing.T, svc *HomeworkService, ref model.QuestionRef, answer string, score int64, maxAttempts int, explanation *string) {
	t.Helper()
	_, err := svc.SetAnswerKey(context.Background(), ref, AnswerKeyParams{
		Answer:      answer,
		Score:       decimal.NewFromInt(score),
		MaxAttempts: maxAttempts,
		Explanation: explanation,
	})
	require.NoError(t, err)
}

// conflictingStore 在前 n 次 Put 时模拟并发写冲突
type conflictingStore struct {
	*repository.MemoryHomeworkStore
	mu        sync.Mutex
	conflicts int
	puts      int
}

func (s *conflictingStore) Put(ctx context.Context, rec *model.HomeworkRecord) error {
	s.mu.Lock()
	s.puts++
	fail := s.conflicts > 0
	if fail {
		s.conflicts--
	}
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected", util.ErrConflict)
	}
	return s.MemoryHomeworkStore.Put(ctx, rec)
}

// brokenStore 所有读操作失败
type brokenStore struct {
	*repository.MemoryHomeworkStore
	err   error
	panic bool
}

func (s *brokenStore) Get(ctx context.Context, gid, studentID string) (*model.HomeworkRecord, error) {
	if s.panic {
		panic("store exploded")
	}
	return nil, s.err
}

// slowStore 阻塞直到调用方超时
type slowStore struct {
	*repository.MemoryHomeworkStore
}

func (s *slowStore) Get(ctx context.Context, gid, studentID string) (*model.HomeworkRecord, error) {
	<-ctx.Done()
	return s.MemoryHomeworkStore.Get(ctx, gid, studentID)
}

var errQueryFailed = errors.New("query failed")

// failingQueryStore 的 Query 总是失败
type failingQueryStore struct {
	*repository.MemoryHomeworkStore
}

func (s *failingQueryStore) Query(ctx context.Context, gid string, pred repository.StudentPredicate, fn func(*model.HomeworkRecord) error) error {
	return errQueryFailed
}
