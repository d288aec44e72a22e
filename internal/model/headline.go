package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Headline struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Headline    string     `gorm:"type:text;not null" json:"headline"`
	Description string     `gorm:"type:text" json:"description"`
	Link        string     `gorm:"size:1000;uniqueIndex;not null" json:"link"`
	Date        *time.Time `gorm:"index" json:"date"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (h *Headline) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
