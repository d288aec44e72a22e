package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"news-lens/internal/apperr"
	"news-lens/internal/lock"
	"news-lens/internal/logging"
	"news-lens/internal/model"
)

// OpinionStore 舆情流程用到的存储
type OpinionStore interface {
	GetHeadline(ctx context.Context, id string) (*model.Headline, error)
	GetOpinion(ctx context.Context, headlineID string) (*model.PublicOpinionRecord, error)
	CreateOpinion(ctx context.Context, rec *model.PublicOpinionRecord) error
}

type OpinionResult struct {
	Summary         string `json:"summary"`
	TotalComments   int    `json:"totalComments"`
	VideosProcessed int    `json:"videosProcessed"`
	Cached          bool   `json:"cached"`
}

type stageOutcome int

const (
	stageNext stageOutcome = iota
	stageDone
)

// opinionRun 单次请求在各阶段间传递的状态
type opinionRun struct {
	headlineID string
	headline   *model.Headline
	videos     []model.VideoResult
	analysis   *Analysis
	result     *OpinionResult
	release    func()
}

type opinionStage struct {
	name string
	run  func(ctx context.Context, r *opinionRun) (stageOutcome, error)
}

// OpinionService 根据相关视频评论生成头条舆情
// 各阶段按顺序执行，任一阶段失败即中止且不写缓存
type OpinionService struct {
	store     OpinionStore
	videos    VideoSearcher
	sentiment SentimentAnalyzer
	locker    lock.Locker
	lockWait  time.Duration
	stages    []opinionStage
}

func NewOpinionService(store OpinionStore, videos VideoSearcher, sentiment SentimentAnalyzer, locker lock.Locker, lockWait time.Duration) *OpinionService {
	s := &OpinionService{
		store:     store,
		videos:    videos,
		sentiment: sentiment,
		locker:    locker,
		lockWait:  lockWait,
	}
	s.stages = []opinionStage{
		{"cache", s.checkCache},
		{"headline", s.loadHeadline},
		{"claim", s.claim},
		{"discover", s.discover},
		{"summarize", s.summarize},
		{"persist", s.persist},
	}
	return s
}

func (s *OpinionService) GetPublicOpinion(ctx context.Context, headlineID string) (*OpinionResult, error) {
	run := &opinionRun{headlineID: strings.TrimSpace(headlineID)}
	defer func() {
		if run.release != nil {
			run.release()
		}
	}()

	log := logging.Log.WithField("headline_id", run.headlineID)
	for _, stage := range s.stages {
		outcome, err := stage.run(ctx, run)
		if err != nil {
			log.WithFields(logrus.Fields{"stage": stage.name}).Warnf("public opinion failed: %v", err)
			return nil, err
		}
		if outcome == stageDone {
			return run.result, nil
		}
	}
	return run.result, nil
}

func (s *OpinionService) checkCache(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	if r.headlineID == "" {
		return stageDone, apperr.Validation("missing headline id")
	}
	return s.fromCache(ctx, r)
}

func (s *OpinionService) fromCache(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	rec, err := s.store.GetOpinion(ctx, r.headlineID)
	if err != nil {
		return stageDone, apperr.Persistence(err, "failed to read public opinion")
	}
	if rec == nil {
		return stageNext, nil
	}
	r.result = opinionFromRecord(rec, true)
	return stageDone, nil
}

func (s *OpinionService) loadHeadline(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	h, err := s.store.GetHeadline(ctx, r.headlineID)
	if err != nil {
		return stageDone, apperr.Persistence(err, "failed to load headline")
	}
	if h == nil {
		return stageDone, apperr.NotFound("headline not found")
	}
	r.headline = h
	return stageNext, nil
}

// claim 加锁后再查一次缓存
func (s *OpinionService) claim(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	r.release = acquireClaim(ctx, s.locker, s.lockWait, "newslens:opinion:"+r.headlineID)
	return s.fromCache(ctx, r)
}

func (s *OpinionService) discover(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	videos, err := s.videos.Search(ctx, r.headline.Headline, r.headline.Date)
	if err != nil {
		return stageDone, err
	}
	if len(videos) == 0 {
		return stageDone, apperr.NotFound("no related videos found for this headline")
	}
	r.videos = videos
	return stageNext, nil
}

func (s *OpinionService) summarize(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	urls := make([]string, 0, len(r.videos))
	for _, v := range r.videos {
		urls = append(urls, v.URL)
	}
	analysis, err := s.sentiment.Analyze(ctx, urls)
	if err != nil {
		return stageDone, err
	}
	r.analysis = analysis
	return stageNext, nil
}

func (s *OpinionService) persist(ctx context.Context, r *opinionRun) (stageOutcome, error) {
	rec := &model.PublicOpinionRecord{
		HeadlineID:      r.headlineID,
		Summary:         r.analysis.Summary,
		TotalComments:   r.analysis.TotalComments,
		VideosProcessed: r.analysis.VideosProcessed,
	}
	if err := s.store.CreateOpinion(ctx, rec); err != nil {
		// 并发请求可能已先写入
		if existing, getErr := s.store.GetOpinion(ctx, r.headlineID); getErr == nil && existing != nil {
			r.result = opinionFromRecord(existing, true)
			return stageDone, nil
		}
		return stageDone, apperr.Persistence(err, "failed to save public opinion")
	}
	r.result = opinionFromRecord(rec, false)
	return stageDone, nil
}

func opinionFromRecord(rec *model.PublicOpinionRecord, cached bool) *OpinionResult {
	return &OpinionResult{
		Summary:         rec.Summary,
		TotalComments:   rec.TotalComments,
		VideosProcessed: rec.VideosProcessed,
		Cached:          cached,
	}
}
