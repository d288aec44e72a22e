package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-lens/internal/model"
	"news-lens/internal/store"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func TestGetSystemStatus(t *testing.T) {
	st := store.CreateTempDB(t)
	ctx := context.Background()
	_, err := st.InsertHeadlines(ctx, []model.Headline{
		{Headline: "a", Link: "https://a"},
		{Headline: "b", Link: "https://b"},
	})
	require.NoError(t, err)
	require.NoError(t, st.CreateSources(ctx, []model.SourceRecord{
		{HeadlineID: "h-1", Title: "t", URL: "u1"},
		{HeadlineID: "h-1", Title: "t", URL: "u2"},
	}))
	require.NoError(t, st.CreateOpinion(ctx, &model.PublicOpinionRecord{HeadlineID: "h-1", Summary: "s"}))

	status, err := NewStatusService(st, fakeHealth{}).GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TotalHeadlines)
	assert.Equal(t, int64(1), status.HeadlinesWithSources)
	assert.Equal(t, int64(2), status.TotalSources)
	assert.Equal(t, int64(1), status.TotalOpinions)
	assert.True(t, status.SentimentHealthy)

	status, err = NewStatusService(st, fakeHealth{err: errors.New("connection refused")}).GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.SentimentHealthy)
	assert.Equal(t, "connection refused", status.SentimentError)
}
