package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"news-lens/config"
	"news-lens/internal/apperr"
	"news-lens/internal/logging"
	"news-lens/internal/model"
)

const (
	videoServiceName = "video-search"
	watchURLPrefix   = "https://www.youtube.com/watch?v="
)

type videoSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// VideoSearcher 搜索相关视频
type VideoSearcher interface {
	Search(ctx context.Context, query string, publishedAfter *time.Time) ([]model.VideoResult, error)
}

// VideoDiscovery YouTube Data API 搜索
type VideoDiscovery struct {
	baseURL    string
	apiKey     string
	maxResults int
	collab     *collaborator
}

func NewVideoDiscovery(cfg config.VideoConfig) *VideoDiscovery {
	c := newCollaborator(videoServiceName, cfg.Timeout, 1, nil)
	c.errorMessage = func(body []byte) string {
		var wrapped struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
			return wrapped.Error.Message
		}
		return "failed to fetch from video search"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &VideoDiscovery{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		collab:     c,
	}
}

// Discover 校验参数后搜索，publishedAfter 可为空
func (v *VideoDiscovery) Discover(ctx context.Context, query, publishedAfter string) ([]model.VideoResult, error) {
	var after *time.Time
	if strings.TrimSpace(publishedAfter) != "" {
		t, err := parseDate(publishedAfter)
		if err != nil {
			return nil, apperr.Validation("invalid 'publishedAfter' date format, use ISO 8601")
		}
		after = &t
	}
	return v.Search(ctx, query, after)
}

func (v *VideoDiscovery) Search(ctx context.Context, query string, publishedAfter *time.Time) ([]model.VideoResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("missing or invalid 'query' parameter")
	}
	if v.apiKey == "" {
		logging.Log.Error("YOUTUBE_API_KEY is not set")
		return nil, apperr.Configuration("video search API key is not configured")
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("key", v.apiKey)
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(v.maxResults))
	params.Set("order", "relevance")
	if publishedAfter != nil {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	var resp videoSearchResponse
	if err := v.collab.call(ctx, http.MethodGet, v.baseURL+"/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	videos := make([]model.VideoResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, model.VideoResult{
			VideoID:     item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         watchURLPrefix + item.ID.VideoID,
			Thumbnail:   item.Snippet.Thumbnails.Default.URL,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return videos, nil
}

// parseDate 解析 RFC 3339 及其他常见日期格式
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
