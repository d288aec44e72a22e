package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-lens/internal/apperr"
	"news-lens/internal/lock"
	"news-lens/internal/model"
	"news-lens/internal/store"
)

type fakeVideos struct {
	calls    int32
	videos   []model.VideoResult
	err      error
	gotQuery string
	gotAfter *time.Time
}

func (f *fakeVideos) Search(ctx context.Context, query string, publishedAfter *time.Time) ([]model.VideoResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.gotQuery = query
	f.gotAfter = publishedAfter
	return f.videos, f.err
}

type fakeSentiment struct {
	calls    int32
	analysis *Analysis
	err      error
	gotURLs  []string
}

func (f *fakeSentiment) Analyze(ctx context.Context, urls []string) (*Analysis, error) {
	atomic.AddInt32(&f.calls, 1)
	f.gotURLs = urls
	return f.analysis, f.err
}

func seedHeadline(t *testing.T, st *store.Store, date *time.Time) *model.Headline {
	t.Helper()
	h := model.Headline{Headline: "Bill Passes", Description: "Senate vote", Link: "https://news.example/bill", Date: date}
	_, err := st.InsertHeadlines(context.Background(), []model.Headline{h})
	require.NoError(t, err)
	page, _, err := st.ListHeadlines(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	return &page[0]
}

func TestGetPublicOpinionFullPipeline(t *testing.T) {
	st := store.CreateTempDB(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := seedHeadline(t, st, &date)

	videos := &fakeVideos{videos: []model.VideoResult{
		{VideoID: "a", URL: "https://www.youtube.com/watch?v=a"},
		{VideoID: "b", URL: "https://www.youtube.com/watch?v=b"},
	}}
	sentiment := &fakeSentiment{analysis: &Analysis{Summary: "mostly supportive", TotalComments: 150, VideosProcessed: 2}}
	svc := NewOpinionService(st, videos, sentiment, lock.NewMemoryLocker(), time.Second)

	got, err := svc.GetPublicOpinion(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, &OpinionResult{Summary: "mostly supportive", TotalComments: 150, VideosProcessed: 2}, got)

	assert.Equal(t, "Bill Passes", videos.gotQuery)
	require.NotNil(t, videos.gotAfter)
	assert.True(t, date.Equal(*videos.gotAfter))
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=a", "https://www.youtube.com/watch?v=b"}, sentiment.gotURLs)

	again, err := svc.GetPublicOpinion(context.Background(), h.ID)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, "mostly supportive", again.Summary)
	assert.Equal(t, int32(1), atomic.LoadInt32(&videos.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sentiment.calls))
}

func TestGetPublicOpinionCachedMakesNoCalls(t *testing.T) {
	st := store.CreateTempDB(t)
	require.NoError(t, st.CreateOpinion(context.Background(), &model.PublicOpinionRecord{
		HeadlineID: "h-1", Summary: "cached", TotalComments: 3, VideosProcessed: 1,
	}))
	videos := &fakeVideos{}
	sentiment := &fakeSentiment{}
	svc := NewOpinionService(st, videos, sentiment, lock.NewMemoryLocker(), time.Second)

	got, err := svc.GetPublicOpinion(context.Background(), "h-1")
	require.NoError(t, err)
	assert.Equal(t, &OpinionResult{Summary: "cached", TotalComments: 3, VideosProcessed: 1, Cached: true}, got)
	assert.Zero(t, atomic.LoadInt32(&videos.calls))
	assert.Zero(t, atomic.LoadInt32(&sentiment.calls))
}

func TestGetPublicOpinionUnknownHeadline(t *testing.T) {
	videos := &fakeVideos{}
	svc := NewOpinionService(store.CreateTempDB(t), videos, &fakeSentiment{}, lock.NewMemoryLocker(), time.Second)

	_, err := svc.GetPublicOpinion(context.Background(), "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Zero(t, atomic.LoadInt32(&videos.calls))

	_, err = svc.GetPublicOpinion(context.Background(), " ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGetPublicOpinionNoVideosCachesNothing(t *testing.T) {
	st := store.CreateTempDB(t)
	h := seedHeadline(t, st, nil)
	videos := &fakeVideos{}
	sentiment := &fakeSentiment{}
	svc := NewOpinionService(st, videos, sentiment, lock.NewMemoryLocker(), time.Second)

	_, err := svc.GetPublicOpinion(context.Background(), h.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Nil(t, videos.gotAfter)
	assert.Zero(t, atomic.LoadInt32(&sentiment.calls))

	rec, err := st.GetOpinion(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetPublicOpinionSentimentFailureCachesNothing(t *testing.T) {
	st := store.CreateTempDB(t)
	h := seedHeadline(t, st, nil)
	videos := &fakeVideos{videos: []model.VideoResult{{VideoID: "a", URL: "https://www.youtube.com/watch?v=a"}}}
	sentiment := &fakeSentiment{err: apperr.Upstream(sentimentServiceName, 500, "analyzer crashed", "")}
	svc := NewOpinionService(st, videos, sentiment, lock.NewMemoryLocker(), time.Second)

	_, err := svc.GetPublicOpinion(context.Background(), h.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstream, e.Kind)
	assert.Equal(t, "analyzer crashed", e.Message)

	rec, err := st.GetOpinion(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetPublicOpinionVideoConfigurationError(t *testing.T) {
	st := store.CreateTempDB(t)
	h := seedHeadline(t, st, nil)
	videos := &fakeVideos{err: apperr.Configuration("video search API key is not configured")}
	sentiment := &fakeSentiment{}
	svc := NewOpinionService(st, videos, sentiment, lock.NewMemoryLocker(), time.Second)

	_, err := svc.GetPublicOpinion(context.Background(), h.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
	assert.Zero(t, atomic.LoadInt32(&sentiment.calls))
}
