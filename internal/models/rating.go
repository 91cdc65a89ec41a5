package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one user's vote on one post. The composite primary key keeps it
// to a single row per (user, post).
type Rating struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	PostID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Score     int       `gorm:"not null;check:chk_ratings_score,score BETWEEN 1 AND 5" json:"score"`
	CreatedAt time.Time `json:"created_at"`
}
