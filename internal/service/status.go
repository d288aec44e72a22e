package service

import (
	"context"
	"time"

	"news-lens/internal/store"
)

type StatusStore interface {
	Counts(ctx context.Context) (*store.Counts, error)
}

// HealthChecker 检查上游服务是否可用
type HealthChecker interface {
	Health(ctx context.Context) error
}

type StatusService struct {
	store     StatusStore
	sentiment HealthChecker
}

type SystemStatus struct {
	// 头条统计
	TotalHeadlines       int64 `json:"total_headlines"`
	HeadlinesWithSources int64 `json:"headlines_with_sources"`

	// 缓存统计
	TotalSources  int64 `json:"total_sources"`
	TotalOpinions int64 `json:"total_opinions"`

	// 上游服务
	SentimentHealthy bool   `json:"sentiment_healthy"`
	SentimentError   string `json:"sentiment_error,omitempty"`

	// 定时任务信息
	NextIngestTime time.Time `json:"next_ingest_time"`
}

func NewStatusService(store StatusStore, sentiment HealthChecker) *StatusService {
	return &StatusService{store: store, sentiment: sentiment}
}

// GetSystemStatus 获取系统状态，下次抓取时间由调用方补充
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	status := &SystemStatus{
		TotalHeadlines:       counts.Headlines,
		HeadlinesWithSources: counts.HeadlinesWithSources,
		TotalSources:         counts.Sources,
		TotalOpinions:        counts.Opinions,
	}

	if s.sentiment != nil {
		if err := s.sentiment.Health(ctx); err != nil {
			status.SentimentError = err.Error()
		} else {
			status.SentimentHealthy = true
		}
	}
	return status, nil
}
