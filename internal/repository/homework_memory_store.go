package repository

import (
	"context"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/util"
	"fmt"
	"sort"
	"sync"
)

type memoryKey struct {
	gid     string
	student string
}

// MemoryHomeworkStore keeps records in process with the same conditional
// write rules as HomeworkRepository. Used for single-node deployments
// without a database and in tests.
type MemoryHomeworkStore struct {
	mu      sync.RWMutex
	records map[memoryKey]*model.HomeworkRecord
}

func NewMemoryHomeworkStore() *MemoryHomeworkStore {
	return &MemoryHomeworkStore{records: make(map[memoryKey]*model.HomeworkRecord)}
}

func (s *MemoryHomeworkStore) Get(ctx context.Context, questionGID, studentID string) (*model.HomeworkRecord, error) {
	if err := ctxError(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[memoryKey{questionGID, studentID}]
	if !ok {
		return nil, fmt.Errorf("%w: get %s/%s", util.ErrRecordNotFound, questionGID, studentID)
	}
	return rec.Clone(), nil
}

func (s *MemoryHomeworkStore) Put(ctx context.Context, rec *model.HomeworkRecord) error {
	if err := ctxError(ctx); err != nil {
		return err
	}
	key := memoryKey{rec.QuestionGID, rec.StudentID}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[key]
	if rec.IsNew() {
		if exists {
			return fmt.Errorf("%w: %s/%s already exists", util.ErrConflict, rec.QuestionGID, rec.StudentID)
		}
		rec.MarkPersisted(1)
		s.records[key] = rec.Clone()
		return nil
	}

	if len(rec.DirtyColumns()) == 0 {
		return nil
	}
	if !exists || stored.Version != rec.Version {
		return fmt.Errorf("%w: %s/%s version %d is stale", util.ErrConflict, rec.QuestionGID, rec.StudentID, rec.Version)
	}
	rec.MarkPersisted(rec.Version + 1)
	s.records[key] = rec.Clone()
	return nil
}

func (s *MemoryHomeworkStore) Query(ctx context.Context, questionGID string, pred StudentPredicate, fn func(*model.HomeworkRecord) error) error {
	if err := ctxError(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	var matched []*model.HomeworkRecord
	for k, rec := range s.records {
		if k.gid == questionGID && pred.Match(k.student) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].StudentID < matched[j].StudentID })
	for _, rec := range matched {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func ctxError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", util.ErrStoreTimeout, err)
		}
		return fmt.Errorf("%w: %v", util.ErrStore, err)
	}
	return nil
}
