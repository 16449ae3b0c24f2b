package repository

import (
	"context"
	"course_homework_backend/internal/model"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AnswerKeyCache 缓存标准答案记录，nil 或未配置 Redis 时所有操作为空操作
type AnswerKeyCache struct {
	Redis *redis.Client
}

func NewAnswerKeyCache(rdb *redis.Client) *AnswerKeyCache {
	return &AnswerKeyCache{Redis: rdb}
}

func answerKeyCacheKey(questionGID string) string {
	return fmt.Sprintf("homework:answer_key:%s", questionGID)
}

func (c *AnswerKeyCache) enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *AnswerKeyCache) Get(ctx context.Context, questionGID string) (*model.HomeworkRecord, bool) {
	if !c.enabled() {
		return nil, false
	}
	data, err := c.Redis.Get(ctx, answerKeyCacheKey(questionGID)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec model.HomeworkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *AnswerKeyCache) Set(ctx context.Context, rec *model.HomeworkRecord, ttl time.Duration) {
	if !c.enabled() || ttl <= 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.Redis.Set(ctx, answerKeyCacheKey(rec.QuestionGID), data, ttl)
}

func (c *AnswerKeyCache) Invalidate(ctx context.Context, questionGID string) {
	if !c.enabled() {
		return
	}
	c.Redis.Del(ctx, answerKeyCacheKey(questionGID))
}
