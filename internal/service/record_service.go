package service

import (
	"context"
	"course_homework_backend/internal/config"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/repository"
	"sync"
)

// RecordService 负责单条作答记录的创建、读取与保存，所有存储调用带超时
type RecordService struct {
	Store repository.HomeworkStore

	mu  sync.RWMutex
	cfg config.HomeworkConfig
}

func NewRecordService(store repository.HomeworkStore, cfg config.HomeworkConfig) *RecordService {
	return &RecordService{Store: store, cfg: cfg}
}

// ApplyConfig 热更新评测参数
func (s *RecordService) ApplyConfig(cfg config.HomeworkConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *RecordService) Settings() config.HomeworkConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *RecordService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.Settings().StoreTimeout)
}

// Create validates the fields, persists a new record and returns it.
func (s *RecordService) Create(ctx context.Context, p model.CreateRecordParams) (*model.HomeworkRecord, error) {
	rec, err := model.NewHomeworkRecord(p)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) Fetch(ctx context.Context, ref model.QuestionRef, studentID string) (*model.HomeworkRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Store.Get(ctx, ref.GID(), studentID)
}

// Save is the only write path for records.
func (s *RecordService) Save(ctx context.Context, rec *model.HomeworkRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Store.Put(ctx, rec)
}

func (s *RecordService) Query(ctx context.Context, ref model.QuestionRef, pred repository.StudentPredicate, fn func(*model.HomeworkRecord) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Store.Query(ctx, ref.GID(), pred, fn)
}
