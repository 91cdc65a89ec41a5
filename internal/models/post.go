package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is an uploaded document. VoteCount and AverageRating are only ever
// changed together, by the rating aggregator.
type Post struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User           User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Caption        string    `gorm:"type:text" json:"caption"`
	URL            string    `gorm:"not null" json:"url"`
	FileType       string    `gorm:"size:8;not null" json:"file_type"`
	FileName       string    `gorm:"not null" json:"file_name"`
	ExternalFileID string    `gorm:"not null" json:"external_file_id"`
	VoteCount      int       `gorm:"not null;default:0" json:"vote_count"`
	AverageRating  float64   `gorm:"not null;default:0;index" json:"average_rating"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
