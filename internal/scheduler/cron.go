package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"news-lens/internal/logging"
	"news-lens/internal/model"
)

// Ingester 抓取所有订阅源
type Ingester interface {
	Ingest(ctx context.Context) *model.IngestReport
}

type Scheduler struct {
	cron          *cron.Cron
	ingest        Ingester
	schedule      string
	ingestEntryID cron.EntryID
}

func NewScheduler(ingest Ingester, schedule string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ingest:   ingest,
		schedule: schedule,
	}
}

// Start 注册抓取任务并启动，schedule 为空时不启用
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		logging.Log.Info("[Cron] Scheduled ingestion disabled")
		return nil
	}

	id, err := s.cron.AddFunc(s.schedule, s.runIngest)
	if err != nil {
		return errors.Wrapf(err, "invalid ingest schedule %q", s.schedule)
	}
	s.ingestEntryID = id

	s.cron.Start()
	logging.Log.Infof("[Cron] Scheduler started (ingest: %s)", s.schedule)
	return nil
}

func (s *Scheduler) runIngest() {
	logging.Log.Info("[Cron] Ingesting headlines...")
	report := s.ingest.Ingest(context.Background())
	for _, feed := range report.PerFeed {
		if feed.Error != "" {
			logging.Log.WithField("feed", feed.URL).Warnf("[Cron] feed failed: %s", feed.Error)
		}
	}
}

// GetNextIngestTime 获取下次抓取时间
func (s *Scheduler) GetNextIngestTime() time.Time {
	if s.ingestEntryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.ingestEntryID).Next
}

// Stop 停止调度并等待正在执行的任务
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
