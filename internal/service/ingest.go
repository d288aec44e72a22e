package service

import (
	"context"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"news-lens/config"
	"news-lens/internal/logging"
	"news-lens/internal/model"
)

const feedUserAgent = "news-lens/1.0 (+headline ingestion)"

// HeadlineStore 头条写入
type HeadlineStore interface {
	InsertHeadlines(ctx context.Context, rows []model.Headline) (int, error)
}

// IngestService 抓取订阅源并保存新头条
type IngestService struct {
	store       HeadlineStore
	feeds       []config.FeedConfig
	concurrency int
	feedTimeout time.Duration
}

func NewIngestService(store HeadlineStore, cfg config.IngestConfig) *IngestService {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IngestService{
		store:       store,
		feeds:       cfg.Feeds,
		concurrency: concurrency,
		feedTimeout: cfg.FeedTimeout,
	}
}

// Ingest 抓取所有订阅源，单个源失败只记录在自己的结果里
func (s *IngestService) Ingest(ctx context.Context) *model.IngestReport {
	results := make([]model.FeedResult, len(s.feeds))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, feed := range s.feeds {
		i, feed := i, feed
		g.Go(func() error {
			results[i] = s.ingestFeed(ctx, feed)
			return nil
		})
	}
	_ = g.Wait()

	report := &model.IngestReport{OK: true, PerFeed: results}
	for _, r := range results {
		report.TotalParsed += r.Parsed
		report.TotalInserted += r.Inserted
	}
	logging.Log.WithFields(logrus.Fields{
		"feeds":    len(results),
		"parsed":   report.TotalParsed,
		"inserted": report.TotalInserted,
	}).Info("ingestion finished")
	return report
}

func (s *IngestService) ingestFeed(ctx context.Context, feed config.FeedConfig) model.FeedResult {
	result := model.FeedResult{URL: feed.URL}
	log := logging.Log.WithField("feed", feed.URL)

	if s.feedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.feedTimeout)
		defer cancel()
	}

	// gofeed.Parser 不能并发复用，每个源各用一个
	parser := gofeed.NewParser()
	parser.UserAgent = feedUserAgent
	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		log.Warnf("feed failed: %v", err)
		result.Error = err.Error()
		return result
	}
	result.Title = parsed.Title
	if result.Title == "" {
		result.Title = feed.Name
	}

	rows := make([]model.Headline, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if h, ok := headlineFromItem(item); ok {
			rows = append(rows, h)
		}
	}
	result.Parsed = len(rows)

	inserted, err := s.store.InsertHeadlines(ctx, rows)
	if err != nil {
		log.Errorf("insert headlines: %v", err)
		result.Error = err.Error()
		return result
	}
	result.Inserted = inserted
	log.WithFields(logrus.Fields{"parsed": result.Parsed, "inserted": inserted}).Debug("feed ingested")
	return result
}

// headlineFromItem 转换条目，缺少标题或链接的丢弃
func headlineFromItem(item *gofeed.Item) (model.Headline, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return model.Headline{}, false
	}
	return model.Headline{
		Headline:    title,
		Description: itemDescription(item),
		Link:        link,
		Date:        itemDate(item),
	}, true
}

func itemDescription(item *gofeed.Item) string {
	if s := strings.TrimSpace(item.Description); s != "" {
		return s
	}
	if item.ITunesExt != nil {
		if s := strings.TrimSpace(item.ITunesExt.Summary); s != "" {
			return s
		}
	}
	// gofeed 把 <content:encoded> 放在这里
	return strings.TrimSpace(item.Content)
}

func itemDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return &t
		}
	}
	return nil
}
