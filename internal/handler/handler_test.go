package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-lens/config"
	"news-lens/internal/apperr"
	"news-lens/internal/lock"
	"news-lens/internal/model"
	"news-lens/internal/service"
	"news-lens/internal/store"
)

type stubBias struct {
	sources []service.RawSource
	err     error
}

func (s stubBias) Analyze(context.Context, service.BiasRequest) ([]service.RawSource, error) {
	return s.sources, s.err
}

type stubSentiment struct {
	analysis *service.Analysis
	err      error
}

func (s stubSentiment) Analyze(context.Context, []string) (*service.Analysis, error) {
	return s.analysis, s.err
}

func (s stubSentiment) Health(context.Context) error { return s.err }

type stubSchedule struct{ next time.Time }

func (s stubSchedule) GetNextIngestTime() time.Time { return s.next }

type testEnv struct {
	router *gin.Engine
	store  *store.Store
}

func newTestEnv(t *testing.T, bias service.BiasAnalyzer, sentiment stubSentiment) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.CreateTempDB(t)
	locker := lock.NewMemoryLocker()
	videos := service.NewVideoDiscovery(config.VideoConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	h := NewHandler(
		st,
		service.NewSourceService(st, bias, locker, time.Second),
		service.NewOpinionService(st, videos, sentiment, locker, time.Second),
		videos,
		sentiment,
		service.NewIngestService(st, config.IngestConfig{}),
		service.NewStatusService(st, sentiment),
	)
	h.SetScheduler(stubSchedule{next: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})

	r := gin.New()
	h.RegisterRoutes(r)
	return &testEnv{router: r, store: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seed(t *testing.T, st *store.Store, n int) {
	t.Helper()
	rows := make([]model.Headline, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := base.Add(time.Duration(i) * time.Hour)
		rows = append(rows, model.Headline{
			Headline: fmt.Sprintf("headline %d", i),
			Link:     fmt.Sprintf("https://news.example/%d", i),
			Date:     &d,
		})
	}
	_, err := st.InsertHeadlines(context.Background(), rows)
	require.NoError(t, err)
}

func TestListHeadlinesPaging(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})
	seed(t, env.store, 8)

	w := env.do(t, http.MethodGet, "/api/headlines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["headlines"], defaultTake)
	assert.Equal(t, true, body["hasMore"])
	assert.Equal(t, float64(8), body["totalCount"])
	first := body["headlines"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "headline 7", first["headline"])

	w = env.do(t, http.MethodGet, "/api/headlines?skip=6&take=6", nil)
	body = decode(t, w)
	assert.Len(t, body["headlines"], 2)
	assert.Equal(t, false, body["hasMore"])
}

func TestListHeadlinesRejectsBadPaging(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})

	for _, q := range []string{"skip=-1", "take=0", "take=101", "take=abc"} {
		w := env.do(t, http.MethodGet, "/api/headlines?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NotEmpty(t, decode(t, w)["error"], q)
	}
}

func TestGetHeadline(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})
	seed(t, env.store, 1)
	page, _, err := env.store.ListHeadlines(context.Background(), 0, 1)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/headlines/"+page[0].ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, page[0].ID, decode(t, w)["id"])

	w = env.do(t, http.MethodGet, "/api/headlines/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "headline not found", decode(t, w)["error"])
}

func TestHeadlineSources(t *testing.T) {
	env := newTestEnv(t, stubBias{sources: []service.RawSource{{URL: "https://x.com/a", BiasRating: "left"}}}, stubSentiment{})

	req := gin.H{"headline": "Bill Passes", "description": "Senate vote", "date": "2024-01-01", "headlineId": "h-1"}
	w := env.do(t, http.MethodPost, "/api/headline-sources", req)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["cached"])
	src := body["sources"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "left", src["bias_rating"])
	assert.Equal(t, "Unknown", src["title"])
	assert.Equal(t, "x.com", src["source"])
	assert.Nil(t, src["publishedDate"])
	assert.Equal(t, "", src["excerpt"])

	w = env.do(t, http.MethodPost, "/api/headline-sources", req)
	assert.Equal(t, true, decode(t, w)["cached"])

	w = env.do(t, http.MethodPost, "/api/headline-sources", gin.H{"headline": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeadlineSourcesUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, stubBias{err: apperr.Upstream("bias-analysis", 500, "failed to fetch sources from bias analysis", "boom")}, stubSentiment{})

	w := env.do(t, http.MethodPost, "/api/headline-sources", gin.H{"headline": "h", "description": "d", "date": "2024-01-01"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "failed to fetch sources from bias analysis", decode(t, w)["error"])
}

func TestPublicOpinionCached(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})
	require.NoError(t, env.store.CreateOpinion(context.Background(), &model.PublicOpinionRecord{
		HeadlineID: "h-1", Summary: "divided", TotalComments: 10, VideosProcessed: 2,
	}))

	w := env.do(t, http.MethodGet, "/api/headlines/h-1/public-opinion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"summary":         "divided",
		"totalComments":   float64(10),
		"videosProcessed": float64(2),
		"cached":          true,
	}, decode(t, w))
}

func TestPublicOpinionMissingVideoKey(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})
	seed(t, env.store, 1)
	page, _, err := env.store.ListHeadlines(context.Background(), 0, 1)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/headlines/"+page[0].ID+"/public-opinion", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "service is not configured", decode(t, w)["error"])
}

func TestSearchVideosValidation(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})

	w := env.do(t, http.MethodPost, "/api/publicopinion", gin.H{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/publicopinion", gin.H{"query": "vote", "publishedAfter": "yesterday-ish"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeVideos(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{analysis: &service.Analysis{Summary: "calm", TotalComments: 5, VideosProcessed: 1}})

	w := env.do(t, http.MethodPost, "/api/publicopinion/analyze", gin.H{"youtube_urls": []string{"https://www.youtube.com/watch?v=a"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "calm", body["summary"])
	assert.Equal(t, float64(5), body["total_comments"])

	w = env.do(t, http.MethodPost, "/api/publicopinion/analyze", gin.H{"youtube_urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestAlwaysOK(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})

	w := env.do(t, http.MethodPost, "/api/ingest/headlines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])
}

func TestStatusAndHealthz(t *testing.T) {
	env := newTestEnv(t, stubBias{}, stubSentiment{})
	seed(t, env.store, 3)

	w := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total_headlines"])
	assert.Equal(t, true, body["sentiment_healthy"])
	assert.Equal(t, "2030-01-01T00:00:00Z", body["next_ingest_time"])

	w = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
