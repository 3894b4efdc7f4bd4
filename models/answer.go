package models

import "time"

// Answer is a reply attached to exactly one post.
type Answer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PostID         uint      `gorm:"index;not null" json:"post_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	AuthorID       uint      `gorm:"index;not null" json:"author_id"`
	AuthorName     string    `gorm:"size:64" json:"author_name"`
	AuthorRole     string    `gorm:"size:32" json:"author_role"`
	AuthorLocation string    `gorm:"size:128" json:"author_location"`
	Upvotes        int64     `gorm:"not null;default:0" json:"upvotes"`
	Downvotes      int64     `gorm:"not null;default:0" json:"downvotes"`
	Score          int64     `gorm:"not null;default:0" json:"score"`
	IsBestAnswer   bool      `gorm:"not null;default:false" json:"is_best_answer"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
