package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"news-lens/internal/apperr"
	"news-lens/internal/logging"
	"news-lens/internal/model"
	"news-lens/internal/service"
)

const (
	defaultTake = 6
	maxTake     = 100

	statusCheckTimeout = 5 * time.Second
)

// HeadlineReader 头条查询
type HeadlineReader interface {
	ListHeadlines(ctx context.Context, skip, take int) ([]model.Headline, int64, error)
	GetHeadline(ctx context.Context, id string) (*model.Headline, error)
}

type Handler struct {
	headlines HeadlineReader
	sources   *service.SourceService
	opinion   *service.OpinionService
	videos    *service.VideoDiscovery
	sentiment service.SentimentAnalyzer
	ingest    *service.IngestService
	status    *service.StatusService
	scheduler interface {
		GetNextIngestTime() time.Time
	}
}

func NewHandler(
	headlines HeadlineReader,
	sources *service.SourceService,
	opinion *service.OpinionService,
	videos *service.VideoDiscovery,
	sentiment service.SentimentAnalyzer,
	ingest *service.IngestService,
	status *service.StatusService,
) *Handler {
	return &Handler{
		headlines: headlines,
		sources:   sources,
		opinion:   opinion,
		videos:    videos,
		sentiment: sentiment,
		ingest:    ingest,
		status:    status,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextIngestTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		// 头条
		api.GET("/headlines", h.ListHeadlines)
		api.GET("/headlines/:id", h.GetHeadline)
		api.GET("/headlines/:id/public-opinion", h.GetPublicOpinion)
		api.POST("/headline-sources", h.GetHeadlineSources)

		// 舆情
		api.POST("/publicopinion", h.SearchVideos)
		api.POST("/publicopinion/analyze", h.AnalyzeVideos)

		// 抓取
		api.POST("/ingest/headlines", h.IngestHeadlines)

		// 状态
		api.GET("/status", h.GetStatus)
	}
}

// RequestLogger 请求日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logging.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

// respondError 按错误类型返回状态码和 {"error": message}，未分类错误只记日志
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Log.WithField("path", c.Request.URL.Path).Errorf("request error: %v", err)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// ===== 头条相关 =====

func (h *Handler) ListHeadlines(c *gin.Context) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		respondError(c, apperr.Validation("skip must be a non-negative integer"))
		return
	}
	take, err := queryInt(c, "take", defaultTake)
	if err != nil || take < 1 || take > maxTake {
		respondError(c, apperr.Validation("take must be an integer between 1 and %d", maxTake))
		return
	}

	headlines, total, err := h.headlines.ListHeadlines(c.Request.Context(), skip, take)
	if err != nil {
		respondError(c, apperr.Persistence(err, "failed to list headlines"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"headlines":  headlines,
		"hasMore":    int64(skip+len(headlines)) < total,
		"totalCount": total,
	})
}

func (h *Handler) GetHeadline(c *gin.Context) {
	headline, err := h.headlines.GetHeadline(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperr.Persistence(err, "failed to load headline"))
		return
	}
	if headline == nil {
		respondError(c, apperr.NotFound("headline not found"))
		return
	}
	c.JSON(http.StatusOK, headline)
}

func (h *Handler) GetHeadlineSources(c *gin.Context) {
	var req service.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body"))
		return
	}

	result, err := h.sources.GetSources(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetPublicOpinion(c *gin.Context) {
	result, err := h.opinion.GetPublicOpinion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===== 舆情相关 =====

type videoSearchRequest struct {
	Query          string `json:"query"`
	PublishedAfter string `json:"publishedAfter"`
}

func (h *Handler) SearchVideos(c *gin.Context) {
	var req videoSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("missing or invalid 'query' parameter"))
		return
	}

	videos, err := h.videos.Discover(c.Request.Context(), req.Query, req.PublishedAfter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

type analyzeRequest struct {
	YoutubeURLs []string `json:"youtube_urls"`
}

func (h *Handler) AnalyzeVideos(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.YoutubeURLs) == 0 {
		respondError(c, apperr.Validation("youtube_urls must be a non-empty array"))
		return
	}

	analysis, err := h.sentiment.Analyze(c.Request.Context(), req.YoutubeURLs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ===== 抓取相关 =====

func (h *Handler) IngestHeadlines(c *gin.Context) {
	c.JSON(http.StatusOK, h.ingest.Ingest(c.Request.Context()))
}

// ===== 状态相关 =====

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusCheckTimeout)
	defer cancel()

	status, err := h.status.GetSystemStatus(ctx)
	if err != nil {
		respondError(c, apperr.Persistence(err, "failed to read status"))
		return
	}

	if h.scheduler != nil {
		status.NextIngestTime = h.scheduler.GetNextIngestTime()
	}

	c.JSON(http.StatusOK, status)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
