// Package store 头条及报道、舆情缓存的存储
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"news-lens/config"
	"news-lens/internal/model"
)

type Store struct {
	db *gorm.DB
}

// Open 连接数据库并迁移表结构
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database dir")
			}
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	return New(db)
}

// New 包装已有连接并迁移表结构
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.Headline{}, &model.SourceRecord{}, &model.PublicOpinionRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListHeadlines 分页查询头条，按日期倒序，无日期的排最后
func (s *Store) ListHeadlines(ctx context.Context, skip, take int) ([]model.Headline, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Headline{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count headlines")
	}

	var headlines []model.Headline
	err := s.db.WithContext(ctx).
		Order("date IS NULL").
		Order("date DESC").
		Order("created_at DESC").
		Offset(skip).
		Limit(take).
		Find(&headlines).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list headlines")
	}
	return headlines, total, nil
}

// GetHeadline 不存在时返回 nil, nil
func (s *Store) GetHeadline(ctx context.Context, id string) (*model.Headline, error) {
	var h model.Headline
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get headline %s", id)
	}
	return &h, nil
}

// InsertHeadlines 批量插入，链接已存在的跳过，返回插入数
func (s *Store) InsertHeadlines(ctx context.Context, rows []model.Headline) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "link"}}, DoNothing: true}).
		Create(&rows)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "insert headlines")
	}
	return int(result.RowsAffected), nil
}

// ListSources 查询头条的报道缓存，新批次在前，批次内按插入顺序
func (s *Store) ListSources(ctx context.Context, headlineID string) ([]model.SourceRecord, error) {
	var rows []model.SourceRecord
	err := s.db.WithContext(ctx).
		Where("headline_id = ?", headlineID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list sources of %s", headlineID)
	}
	return rows, nil
}

// CreateSources 写入一批报道，同批共用创建时间
func (s *Store) CreateSources(ctx context.Context, rows []model.SourceRecord) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return errors.Wrap(err, "insert sources")
	}
	return nil
}

// GetOpinion 无缓存时返回 nil, nil
func (s *Store) GetOpinion(ctx context.Context, headlineID string) (*model.PublicOpinionRecord, error) {
	var rec model.PublicOpinionRecord
	err := s.db.WithContext(ctx).Where("headline_id = ?", headlineID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get opinion of %s", headlineID)
	}
	return &rec, nil
}

func (s *Store) CreateOpinion(ctx context.Context, rec *model.PublicOpinionRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrapf(err, "insert opinion of %s", rec.HeadlineID)
	}
	return nil
}

type Counts struct {
	Headlines            int64
	HeadlinesWithSources int64
	Sources              int64
	Opinions             int64
}

func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Headline{}).Count(&c.Headlines).Error; err != nil {
		return nil, errors.Wrap(err, "count headlines")
	}
	if err := db.Model(&model.SourceRecord{}).Count(&c.Sources).Error; err != nil {
		return nil, errors.Wrap(err, "count sources")
	}
	if err := db.Model(&model.SourceRecord{}).Distinct("headline_id").Count(&c.HeadlinesWithSources).Error; err != nil {
		return nil, errors.Wrap(err, "count enriched headlines")
	}
	if err := db.Model(&model.PublicOpinionRecord{}).Count(&c.Opinions).Error; err != nil {
		return nil, errors.Wrap(err, "count opinions")
	}
	return c, nil
}
