package service

import (
	"context"
	"net/http"
	"strings"

	"news-lens/config"
	"news-lens/internal/apperr"
)

const sentimentServiceName = "sentiment"

// Analysis 视频评论的舆情摘要
type Analysis struct {
	Summary         string `json:"summary"`
	TotalComments   int    `json:"total_comments"`
	VideosProcessed int    `json:"videos_processed"`
}

type analyzeRequest struct {
	YoutubeURLs []string `json:"youtube_urls"`
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, videoURLs []string) (*Analysis, error)
}

// SentimentClient 舆情分析服务客户端
type SentimentClient struct {
	baseURL string
	collab  *collaborator
}

func NewSentimentClient(cfg config.SentimentConfig) *SentimentClient {
	c := newCollaborator(sentimentServiceName, cfg.Timeout, cfg.MaxRetries, cfg.Headers)
	c.errorMessage = func(body []byte) string {
		if msg := jsonField(body, "detail", "error"); msg != "" {
			return msg
		}
		return "failed to analyze public opinion"
	}
	return &SentimentClient{baseURL: strings.TrimRight(cfg.URL, "/"), collab: c}
}

func (s *SentimentClient) Analyze(ctx context.Context, videoURLs []string) (*Analysis, error) {
	if len(videoURLs) == 0 {
		return nil, apperr.Validation("youtube_urls must be a non-empty array")
	}
	var out Analysis
	if err := s.collab.call(ctx, http.MethodPost, s.baseURL+"/analyze", analyzeRequest{YoutubeURLs: videoURLs}, &out); err != nil {
		return nil, err
	}
	if out.TotalComments < 0 {
		out.TotalComments = 0
	}
	if out.VideosProcessed < 0 {
		out.VideosProcessed = 0
	}
	return &out, nil
}

// Health 检查 /health
func (s *SentimentClient) Health(ctx context.Context) error {
	return s.collab.call(ctx, http.MethodGet, s.baseURL+"/health", nil, nil)
}
