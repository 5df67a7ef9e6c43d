package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/storage"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	fail  int // number of calls to fail before succeeding
	calls int
	incrs map[string]int64
}

func (f *fakeUpdater) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("hincrby fail")
	}
	if f.incrs == nil {
		f.incrs = make(map[string]int64)
	}
	f.incrs[key+"/"+field] += incr
	return nil
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{fail: 1}
	ev := models.StageEvent{SessionID: "s1", Role: "customer", From: "payment", To: "rating"}
	start := time.Now()
	require.NoError(t, updateRedisWithRetry(context.Background(), f, "stats", ev, 3, 10*time.Millisecond))
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, int64(1), f.incrs[stageCountsKey+"/rating"])
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestUpdateRedisWithRetry_CountsCompletions(t *testing.T) {
	f := &fakeUpdater{}
	ev := models.StageEvent{SessionID: "s1", Role: "driver", From: "rating", To: "thankyou"}
	require.NoError(t, updateRedisWithRetry(context.Background(), f, "stats", ev, 3, time.Millisecond))
	assert.Equal(t, int64(1), f.incrs["stats/"+storage.FieldCompletedToday])
	assert.Equal(t, int64(1), f.incrs["stats/"+storage.FieldTotalRescues])
	assert.Equal(t, int64(1), f.incrs[stageCountsKey+"/thankyou"])
}

func TestUpdateRedisWithRetry_CustomerFinishIsNotADriverCompletion(t *testing.T) {
	f := &fakeUpdater{}
	ev := models.StageEvent{SessionID: "s2", Role: "customer", From: "rating", To: "thankyou"}
	require.NoError(t, updateRedisWithRetry(context.Background(), f, "stats", ev, 3, time.Millisecond))
	assert.Equal(t, int64(1), f.incrs[stageCountsKey+"/thankyou"])
	assert.NotContains(t, f.incrs, "stats/"+storage.FieldCompletedToday)
	assert.NotContains(t, f.incrs, "stats/"+storage.FieldTotalRescues)
	assert.Equal(t, 1, f.calls)
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{fail: 5}
	ev := models.StageEvent{SessionID: "s1", To: "waiting"}
	assert.Error(t, updateRedisWithRetry(context.Background(), f, "stats", ev, 3, time.Millisecond))
	assert.Equal(t, 3, f.calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, time.Second, func() error { return errors.New("nope") })
	assert.ErrorIs(t, err, context.Canceled)
}
