package models

import "time"

// Post is a top-level question in the community forum.
type Post struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CategoryID     string    `gorm:"size:64;index;not null" json:"category"`
	Tags           TagList   `gorm:"type:text" json:"tags"`
	SearchText     string    `gorm:"type:text" json:"-"`
	AuthorID       uint      `gorm:"index;not null" json:"author_id"`
	AuthorName     string    `gorm:"size:64" json:"author_name"`
	AuthorRole     string    `gorm:"size:32" json:"author_role"`
	AuthorLocation string    `gorm:"size:128" json:"author_location"`
	ViewCount      int64     `gorm:"not null;default:0" json:"view_count"`
	AnswerCount    int64     `gorm:"not null;default:0" json:"answer_count"`
	Upvotes        int64     `gorm:"not null;default:0" json:"upvotes"`
	Downvotes      int64     `gorm:"not null;default:0" json:"downvotes"`
	Score          int64     `gorm:"index;not null;default:0" json:"score"`
	IsResolved     bool      `gorm:"index;not null;default:false" json:"is_resolved"`
	IsLocked       bool      `gorm:"not null;default:false" json:"is_locked"`
	BestAnswerID   *uint     `json:"best_answer_id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
