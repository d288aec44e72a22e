package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"news-lens/config"
	"news-lens/internal/apperr"
)

const biasServiceName = "bias-analysis"

// BiasRequest 倾向分析请求
type BiasRequest struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// RawSource 上游返回的原始报道，除 URL 外都可能为空
type RawSource struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	PublishedDate string `json:"publishedDate"`
	BiasRating    string `json:"bias_rating"`
	BiasAnalysis  string `json:"bias_analysis"`
	Excerpt       string `json:"excerpt"`
}

type biasResponse struct {
	Sources []RawSource `json:"sources"`
}

type BiasAnalyzer interface {
	Analyze(ctx context.Context, req BiasRequest) ([]RawSource, error)
}

// BiasClient 倾向分析 webhook 客户端
type BiasClient struct {
	url    string
	collab *collaborator
}

func NewBiasClient(cfg config.BiasConfig) *BiasClient {
	c := newCollaborator(biasServiceName, cfg.Timeout, cfg.MaxRetries, nil)
	c.errorMessage = func([]byte) string { return "failed to fetch sources from bias analysis" }
	return &BiasClient{url: cfg.URL, collab: c}
}

func (b *BiasClient) Analyze(ctx context.Context, req BiasRequest) ([]RawSource, error) {
	var raw json.RawMessage
	if err := b.collab.call(ctx, http.MethodPost, b.url, req, &raw); err != nil {
		return nil, err
	}
	return decodeBiasResponse(raw)
}

// decodeBiasResponse 兼容 {"sources": [...]} 和 [{"sources": [...]}] 两种格式
func decodeBiasResponse(raw []byte) ([]RawSource, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batches []biasResponse
		if err := json.Unmarshal(trimmed, &batches); err != nil {
			return nil, apperr.Upstream(biasServiceName, http.StatusOK, "invalid response from "+biasServiceName, truncate(string(raw), maxLoggedBody))
		}
		var all []RawSource
		for _, b := range batches {
			all = append(all, b.Sources...)
		}
		return all, nil
	}

	var resp biasResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, apperr.Upstream(biasServiceName, http.StatusOK, "invalid response from "+biasServiceName, truncate(string(raw), maxLoggedBody))
	}
	return resp.Sources, nil
}
