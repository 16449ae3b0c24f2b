package service

import (
	"context"
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/repository"
	"course_homework_backend/internal/util"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertResult(t *testing.T, res *CheckResult, state model.HomeworkState, score int64, used int, maxScore int64, maxAttempts int) {
	t.Helper()
	require.NotNil(t, res)
	assert.Equal(t, state, res.State, "state")
	assert.True(t, res.Score.Equal(decimal.NewFromInt(score)), "score %s != %d", res.Score, score)
	assert.Equal(t, used, res.UsedAttempts, "used attempts")
	assert.True(t, res.MaxScore.Equal(decimal.NewFromInt(maxScore)), "max score %s != %d", res.MaxScore, maxScore)
	assert.Equal(t, maxAttempts, res.MaxAttempts, "max attempts")
}

func TestCheckAnswerLocksInCorrectAnswer(t *testing.T) {
	store := repository.NewMemoryHomeworkStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 2, nil)

	res, err := svc.CheckAnswer(ctx, q10, "s1", "41", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateIncorrect, 0, 1, 5, 2)
	assert.Nil(t, res.Explanation)

	res, err = svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateCorrect, 5, 1, 5, 2)
	assert.Nil(t, res.Explanation)

	res, err = svc.CheckAnswer(ctx, q10, "s1", "99", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateCorrect, 5, 1, 5, 2)

	rec, err := svc.Records.Fetch(ctx, q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, "42", rec.Answer)
	assert.Equal(t, model.StateCorrect, rec.State)
	assert.Equal(t, 1, rec.AttemptsOr(0))
	assert.True(t, rec.ScoreOr(decimal.Zero).Equal(decimal.NewFromInt(5)))
}

func TestCheckAnswerCorrectRecordNeverChanges(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	_, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)

	for _, answer := range []string{"1", "42", "", " 42", "x"} {
		res, err := svc.CheckAnswer(ctx, q10, "s1", answer, true)
		require.NoError(t, err)
		assertResult(t, res, model.StateCorrect, 5, 0, 5, 0)
	}

	rec, err := svc.Records.Fetch(ctx, q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.AttemptsOr(0))
	assert.Equal(t, "42", rec.Answer)
}

func TestCheckAnswerScoreLockedAfterAnswerKeyChange(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	_, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)

	seedAnswerKey(t, svc, q10, "42", 10, 0, nil)
	res, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateCorrect, 5, 0, 10, 0)
}

func TestCheckAnswerFreezesAfterAttemptsRunOut(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 3, nil)

	for i, answer := range []string{"a", "b", "c"} {
		res, err := svc.CheckAnswer(ctx, q10, "s1", answer, true)
		require.NoError(t, err)
		assert.Equal(t, model.StateIncorrect, res.State)

		rec, err := svc.Records.Fetch(ctx, q10, "s1")
		require.NoError(t, err)
		assert.Equal(t, i+1, rec.AttemptsOr(0))
		assert.Equal(t, answer, rec.Answer)
	}

	res, err := svc.CheckAnswer(ctx, q10, "s1", "d", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateIncorrect, 0, 3, 5, 3)

	rec, err := svc.Records.Fetch(ctx, q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.AttemptsOr(0))
	assert.Equal(t, "c", rec.Answer)

	// 次数用尽后答对也不再计分
	res, err = svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateIncorrect, 0, 4, 5, 3)
	assert.Nil(t, res.Explanation)

	rec, err = svc.Records.Fetch(ctx, q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.AttemptsOr(0))
	assert.Equal(t, "c", rec.Answer)
	assert.Equal(t, model.StateIncorrect, rec.State)
}

func TestCheckAnswerUnlimitedAttempts(t *testing.T) {
	for _, maxAttempts := range []int{0, -1} {
		t.Run(fmt.Sprintf("max=%d", maxAttempts), func(t *testing.T) {
			svc := newTestService(t, repository.NewMemoryHomeworkStore())
			ctx := context.Background()
			seedAnswerKey(t, svc, q10, "42", 5, maxAttempts, nil)

			for i := 0; i < 10; i++ {
				_, err := svc.CheckAnswer(ctx, q10, "s1", fmt.Sprintf("wrong-%d", i), true)
				require.NoError(t, err)
			}
			rec, err := svc.Records.Fetch(ctx, q10, "s1")
			require.NoError(t, err)
			assert.Equal(t, 10, rec.AttemptsOr(0))
			assert.Equal(t, "wrong-9", rec.Answer)

			res, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
			require.NoError(t, err)
			assertResult(t, res, model.StateCorrect, 5, 10, 5, maxAttempts)
		})
	}
}

func TestCheckAnswerExactMatchOnly(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	seedAnswerKey(t, svc, q10, "Answer", 1, 0, nil)

	for _, answer := range []string{"answer", "Answer ", " Answer", "ANSWER"} {
		res, err := svc.CheckAnswer(context.Background(), q10, "s1", answer, false)
		require.NoError(t, err)
		assert.Equal(t, model.StateIncorrect, res.State, "answer %q", answer)
	}
}

func TestCheckAnswerExplanationOnlyWhenCorrect(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	explanation := "six times seven"
	seedAnswerKey(t, svc, q10, "42", 5, 0, &explanation)

	res, err := svc.CheckAnswer(ctx, q10, "s1", "41", true)
	require.NoError(t, err)
	assert.Nil(t, res.Explanation)

	res, err = svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)
	require.NotNil(t, res.Explanation)
	assert.Equal(t, explanation, *res.Explanation)

	res, err = svc.CheckAnswer(ctx, q10, "s1", "0", true)
	require.NoError(t, err)
	assert.Equal(t, model.StateCorrect, res.State)
	assert.Nil(t, res.Explanation)
}

func TestCheckAnswerDryRunDoesNotWrite(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 2, nil)

	res, err := svc.CheckAnswer(ctx, q10, "s1", "42", false)
	require.NoError(t, err)
	assertResult(t, res, model.StateCorrect, 5, 1, 5, 2)

	res, err = svc.CheckAnswer(ctx, q10, "s1", "41", false)
	require.NoError(t, err)
	assertResult(t, res, model.StateIncorrect, 0, 1, 5, 2)

	_, err = svc.Records.Fetch(ctx, q10, "s1")
	assert.ErrorIs(t, err, util.ErrRecordNotFound)
}

func TestCheckAnswerWithoutAnswerKeyScoresZero(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()

	res, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)
	assertResult(t, res, model.StateIncorrect, 0, 1, 0, 0)
	assert.Nil(t, res.Explanation)

	rec, err := svc.Records.Fetch(ctx, q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StateIncorrect, rec.State)
	assert.Equal(t, 1, rec.AttemptsOr(0))
}

func TestCheckAnswerRejectsReservedStudent(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	for _, id := range []string{"", model.AnswerKey} {
		_, err := svc.CheckAnswer(context.Background(), q10, id, "x", true)
		assert.ErrorIs(t, err, util.ErrValidation)
	}
	info := svc.GetAnswer(context.Background(), q10, model.AnswerKey)
	require.NotNil(t, info.Answer)
	assert.Equal(t, "42", *info.Answer)
}

func TestCheckAnswerRetriesConflicts(t *testing.T) {
	store := &conflictingStore{MemoryHomeworkStore: repository.NewMemoryHomeworkStore()}
	svc := newTestService(t, store)
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	store.conflicts = 2
	res, err := svc.CheckAnswer(context.Background(), q10, "s1", "41", true)
	require.NoError(t, err)
	assert.Equal(t, model.StateIncorrect, res.State)

	rec, err := svc.Records.Fetch(context.Background(), q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.AttemptsOr(0))
}

func TestCheckAnswerRetryBudgetExhausted(t *testing.T) {
	store := &conflictingStore{MemoryHomeworkStore: repository.NewMemoryHomeworkStore()}
	svc := newTestService(t, store)
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	store.conflicts = 100
	store.puts = 0
	_, err := svc.CheckAnswer(context.Background(), q10, "s1", "41", true)
	assert.ErrorIs(t, err, util.ErrConcurrency)
	assert.Equal(t, testHomeworkConfig().MaxRetries, store.puts)
}

func TestCheckAnswerSurfacesStoreErrors(t *testing.T) {
	store := &brokenStore{MemoryHomeworkStore: repository.NewMemoryHomeworkStore(), err: fmt.Errorf("%w: boom", util.ErrStore)}
	svc := newTestService(t, store)

	_, err := svc.CheckAnswer(context.Background(), q10, "s1", "41", true)
	assert.ErrorIs(t, err, util.ErrStore)
}

func TestCheckAnswerConcurrentIncorrectSubmissions(t *testing.T) {
	const submissions = 20
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	cfg := testHomeworkConfig()
	cfg.MaxRetries = submissions + 5
	svc.Records.ApplyConfig(cfg)
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	var wg sync.WaitGroup
	errs := make(chan error, submissions)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CheckAnswer(context.Background(), q10, "s1", fmt.Sprintf("w%d", i), true)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := svc.Records.Fetch(context.Background(), q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, submissions, rec.AttemptsOr(0))
}

func TestCheckAnswerConcurrentCorrectSubmissionIsNotClobbered(t *testing.T) {
	const wrong = 10
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	cfg := testHomeworkConfig()
	cfg.MaxRetries = wrong + 5
	svc.Records.ApplyConfig(cfg)
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i <= wrong; i++ {
		answer := "wrong"
		if i == wrong/2 {
			answer = "42"
		}
		wg.Add(1)
		go func(answer string) {
			defer wg.Done()
			_, err := svc.CheckAnswer(context.Background(), q10, "s1", answer, true)
			assert.NoError(t, err)
		}(answer)
	}
	wg.Wait()

	rec, err := svc.Records.Fetch(context.Background(), q10, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StateCorrect, rec.State)
	assert.Equal(t, "42", rec.Answer)
	assert.True(t, rec.ScoreOr(decimal.Zero).Equal(decimal.NewFromInt(5)))
	assert.LessOrEqual(t, rec.AttemptsOr(0), wrong)
}

func TestCheckAnswerIndependentStudents(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CheckAnswer(ctx, q10, fmt.Sprintf("s%d", i), "41", true)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		rec, err := svc.Records.Fetch(ctx, q10, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Equal(t, 1, rec.AttemptsOr(0))
	}
}

func TestGetAnswerMissingReturnsZeroValue(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())

	info := svc.GetAnswer(context.Background(), q10, model.AnswerKey)
	assert.Nil(t, info.Answer)
	assert.True(t, info.Score.IsZero())
	assert.Zero(t, info.Attempts)
	assert.Nil(t, info.Explanation)
}

func TestGetAnswerDegradesOnStoreFailure(t *testing.T) {
	cases := map[string]*brokenStore{
		"error": {MemoryHomeworkStore: repository.NewMemoryHomeworkStore(), err: fmt.Errorf("%w: down", util.ErrStore)},
		"panic": {MemoryHomeworkStore: repository.NewMemoryHomeworkStore(), panic: true},
	}
	for name, store := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, store)
			assert.NotPanics(t, func() {
				info := svc.GetAnswer(context.Background(), q10, model.AnswerKey)
				assert.Equal(t, AnswerKeyInfo{}, info)
			})
		})
	}
}

func TestGetAnswerForStudent(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)
	_, err := svc.CheckAnswer(ctx, q10, "s1", "42", true)
	require.NoError(t, err)

	info := svc.GetAnswer(ctx, q10, "s1")
	require.NotNil(t, info.Answer)
	assert.Equal(t, "42", *info.Answer)
	assert.True(t, info.Score.Equal(decimal.NewFromInt(5)))
}

func TestSetAnswerKeyUpdatesExistingKey(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()
	explanation := "first"
	seedAnswerKey(t, svc, q10, "42", 5, 2, &explanation)
	seedAnswerKey(t, svc, q10, "43", 7, 3, nil)

	info := svc.GetAnswer(ctx, q10, model.AnswerKey)
	require.NotNil(t, info.Answer)
	assert.Equal(t, "43", *info.Answer)
	assert.True(t, info.Score.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, 3, info.Attempts)
	require.NotNil(t, info.Explanation)
	assert.Equal(t, "first", *info.Explanation)

	_, err := svc.SetAnswerKey(ctx, q10, AnswerKeyParams{Answer: "1", Score: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestEvaluateKeepsDecimalPrecision(t *testing.T) {
	key := AnswerKeyInfo{Answer: func() *string { s := "x"; return &s }(), Score: decimal.RequireFromString("0.1")}
	total := decimal.Zero
	for i := 0; i < 3; i++ {
		total = total.Add(evaluate(key, "x").Score)
	}
	assert.True(t, total.Equal(decimal.RequireFromString("0.3")))
}

func TestSetAnswerKeyRejectsScoreBeyondColumnPrecision(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryHomeworkStore())
	ctx := context.Background()

	for _, score := range []string{"0.125", "2.001", "100000000", "123456789.5"} {
		_, err := svc.SetAnswerKey(ctx, q10, AnswerKeyParams{Answer: "42", Score: decimal.RequireFromString(score)})
		assert.ErrorIs(t, err, util.ErrValidation, "score %s", score)
	}
	info := svc.GetAnswer(ctx, q10, model.AnswerKey)
	assert.Nil(t, info.Answer)

	for _, score := range []string{"0.13", "1.500", "99999999.99"} {
		rec, err := svc.SetAnswerKey(ctx, q10, AnswerKeyParams{Answer: "42", Score: decimal.RequireFromString(score)})
		require.NoError(t, err, "score %s", score)
		assert.True(t, rec.ScoreOr(decimal.Zero).Equal(decimal.RequireFromString(score)))
	}
}

func TestCheckAnswerLockFallsBackWhenLockTTLCleared(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	records := NewRecordService(repository.NewMemoryHomeworkStore(), testHomeworkConfig())
	svc := NewHomeworkService(records, repository.NewRedisKeyLocker(rdb), nil)
	seedAnswerKey(t, svc, q10, "42", 5, 0, nil)

	// 热更新后 lock_ttl 为 0，已装配的 Redis 锁仍需可用
	cfg := testHomeworkConfig()
	cfg.LockTTL = 0
	records.ApplyConfig(cfg)

	res, err := svc.CheckAnswer(context.Background(), q10, "s1", "42", true)
	require.NoError(t, err)
	assert.Equal(t, model.StateCorrect, res.State)
	assert.False(t, mr.Exists(repository.LockKey(q10.GID(), "s1")), "lock must be released")
}
