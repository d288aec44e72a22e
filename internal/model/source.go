package model

import (
	"strings"
	"time"
)

type BiasRating string

const (
	BiasLeft        BiasRating = "left"
	BiasLeftCenter  BiasRating = "left-center"
	BiasCenter      BiasRating = "center"
	BiasRightCenter BiasRating = "right-center"
	BiasRight       BiasRating = "right"
	BiasUnknown     BiasRating = "unknown"
)

var biasAliases = map[string]BiasRating{
	"left":         BiasLeft,
	"far-left":     BiasLeft,
	"left-center":  BiasLeftCenter,
	"center-left":  BiasLeftCenter,
	"lean-left":    BiasLeftCenter,
	"center":       BiasCenter,
	"centre":       BiasCenter,
	"least-biased": BiasCenter,
	"right-center": BiasRightCenter,
	"center-right": BiasRightCenter,
	"lean-right":   BiasRightCenter,
	"right":        BiasRight,
	"far-right":    BiasRight,
	"unknown":      BiasUnknown,
}

// ParseBiasRating 将任意倾向评级归一化，无法识别的为 BiasUnknown
func ParseBiasRating(s string) BiasRating {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "-", "_", "-").Replace(key)
	if r, ok := biasAliases[key]; ok {
		return r
	}
	return BiasUnknown
}

// SourceRecord 头条的相关报道缓存，写入后不再修改
type SourceRecord struct {
	ID            uint       `gorm:"primaryKey"`
	HeadlineID    string     `gorm:"size:36;index;not null"`
	Title         string     `gorm:"type:text;not null"`
	URL           string     `gorm:"size:2000;not null"`
	Source        string     `gorm:"size:255"`
	BiasRating    BiasRating `gorm:"size:32;not null;default:unknown"`
	BiasAnalysis  string     `gorm:"type:text"`
	Excerpt       string     `gorm:"type:text"`
	PublishedDate *time.Time
	CreatedAt     time.Time
}

func (SourceRecord) TableName() string {
	return "sources"
}
