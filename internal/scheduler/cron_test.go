package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-lens/internal/model"
)

type countingIngester struct {
	calls int32
}

func (c *countingIngester) Ingest(context.Context) *model.IngestReport {
	atomic.AddInt32(&c.calls, 1)
	return &model.IngestReport{OK: true, PerFeed: []model.FeedResult{{URL: "http://feed", Error: "boom"}}}
}

func TestSchedulerReportsNextIngestTime(t *testing.T) {
	s := NewScheduler(&countingIngester{}, "*/30 * * * *")
	require.NoError(t, s.Start())
	defer s.Stop()

	next := s.GetNextIngestTime()
	assert.False(t, next.IsZero())
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(31*time.Minute)))
}

func TestSchedulerDisabledWithEmptySchedule(t *testing.T) {
	s := NewScheduler(&countingIngester{}, "")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.GetNextIngestTime().IsZero())
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingIngester{}, "every now and then")
	assert.Error(t, s.Start())
}

func TestRunIngestCallsIngester(t *testing.T) {
	ing := &countingIngester{}
	s := NewScheduler(ing, "@hourly")
	s.runIngest()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ing.calls))
}
