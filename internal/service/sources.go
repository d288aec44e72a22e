package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"news-lens/internal/apperr"
	"news-lens/internal/lock"
	"news-lens/internal/logging"
	"news-lens/internal/model"
)

// SourceStore 报道缓存读写
type SourceStore interface {
	ListSources(ctx context.Context, headlineID string) ([]model.SourceRecord, error)
	CreateSources(ctx context.Context, rows []model.SourceRecord) error
}

type SourceRequest struct {
	HeadlineID  string `json:"headlineId"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// SourceView 返回给调用方的报道
type SourceView struct {
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	Source        string           `json:"source"`
	PublishedDate *string          `json:"publishedDate"`
	BiasRating    model.BiasRating `json:"bias_rating"`
	BiasAnalysis  string           `json:"bias_analysis"`
	Excerpt       string           `json:"excerpt"`
}

type SourcesResult struct {
	Sources []SourceView `json:"sources"`
	Cached  bool         `json:"cached"`

	// 新获取的报道是否已写入缓存，写入失败不影响返回
	Persisted  bool  `json:"-"`
	PersistErr error `json:"-"`
}

// SourceService 获取头条的相关报道并按头条缓存
type SourceService struct {
	store    SourceStore
	bias     BiasAnalyzer
	locker   lock.Locker
	lockWait time.Duration
}

func NewSourceService(store SourceStore, bias BiasAnalyzer, locker lock.Locker, lockWait time.Duration) *SourceService {
	return &SourceService{store: store, bias: bias, locker: locker, lockWait: lockWait}
}

func (s *SourceService) GetSources(ctx context.Context, req SourceRequest) (*SourcesResult, error) {
	req.HeadlineID = strings.TrimSpace(req.HeadlineID)
	log := logging.Log.WithField("headline_id", req.HeadlineID)

	if req.HeadlineID != "" {
		if cached := s.cached(ctx, req.HeadlineID); cached != nil {
			return cached, nil
		}
	}
	if strings.TrimSpace(req.Headline) == "" || strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Date) == "" {
		return nil, apperr.Validation("missing required fields: headline, description, or date")
	}

	if req.HeadlineID != "" {
		release := acquireClaim(ctx, s.locker, s.lockWait, "newslens:sources:"+req.HeadlineID)
		defer release()

		if cached := s.cached(ctx, req.HeadlineID); cached != nil {
			return cached, nil
		}
	}

	raw, err := s.bias.Analyze(ctx, BiasRequest{
		Headline:    req.Headline,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		log.Errorf("bias analysis failed: %v", err)
		return nil, err
	}

	rows := normalizeSources(req.HeadlineID, raw)
	result := &SourcesResult{Sources: toSourceViews(rows)}
	if req.HeadlineID == "" || len(rows) == 0 {
		return result, nil
	}

	if err := s.store.CreateSources(ctx, rows); err != nil {
		log.WithField("sources", len(rows)).Warnf("failed to cache sources: %v", err)
		result.PersistErr = err
		return result, nil
	}
	result.Persisted = true
	return result, nil
}

// cached 读取缓存，未命中或读取失败返回 nil
func (s *SourceService) cached(ctx context.Context, headlineID string) *SourcesResult {
	rows, err := s.store.ListSources(ctx, headlineID)
	if err != nil {
		logging.Log.WithField("headline_id", headlineID).Warnf("source cache read failed: %v", err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	return &SourcesResult{Sources: toSourceViews(rows), Cached: true}
}

func normalizeSources(headlineID string, raw []RawSource) []model.SourceRecord {
	rows := make([]model.SourceRecord, 0, len(raw))
	for _, r := range raw {
		link := strings.TrimSpace(r.URL)
		if link == "" {
			continue
		}
		outlet := strings.TrimSpace(r.Source)
		if outlet == "" {
			outlet = hostname(link)
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = strings.TrimSpace(r.Source)
		}
		if title == "" {
			title = "Unknown"
		}

		var published *time.Time
		if strings.TrimSpace(r.PublishedDate) != "" {
			if t, err := parseDate(r.PublishedDate); err == nil {
				t = t.UTC()
				published = &t
			}
		}

		rows = append(rows, model.SourceRecord{
			HeadlineID:    headlineID,
			Title:         title,
			URL:           link,
			Source:        outlet,
			BiasRating:    model.ParseBiasRating(r.BiasRating),
			BiasAnalysis:  r.BiasAnalysis,
			Excerpt:       r.Excerpt,
			PublishedDate: published,
		})
	}
	return rows
}

func hostname(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "Unknown"
	}
	return u.Hostname()
}

func toSourceViews(rows []model.SourceRecord) []SourceView {
	views := make([]SourceView, 0, len(rows))
	for _, r := range rows {
		v := SourceView{
			Title:        r.Title,
			URL:          r.URL,
			Source:       r.Source,
			BiasRating:   r.BiasRating,
			BiasAnalysis: r.BiasAnalysis,
			Excerpt:      r.Excerpt,
		}
		if r.PublishedDate != nil {
			s := r.PublishedDate.UTC().Format(time.RFC3339)
			v.PublishedDate = &s
		}
		views = append(views, v)
	}
	return views
}

// acquireClaim 获取头条锁，最多等待 wait，拿不到则记日志后不加锁继续
func acquireClaim(ctx context.Context, locker lock.Locker, wait time.Duration, key string) func() {
	if locker == nil {
		return func() {}
	}
	lockCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	release, err := locker.Acquire(lockCtx, key)
	if err != nil {
		logging.Log.WithFields(logrus.Fields{"key": key}).Warnf("claim not acquired, continuing unlocked: %v", err)
		return func() {}
	}
	return release
}
