package model

import "time"

// PublicOpinionRecord 头条的舆情摘要缓存，每条头条至多一条
type PublicOpinionRecord struct {
	ID              uint      `gorm:"primaryKey"`
	HeadlineID      string    `gorm:"size:36;uniqueIndex;not null"`
	Summary         string    `gorm:"type:text;not null"`
	TotalComments   int       `gorm:"not null;default:0"`
	VideosProcessed int       `gorm:"not null;default:0"`
	CreatedAt       time.Time
}

func (PublicOpinionRecord) TableName() string {
	return "public_opinions"
}
