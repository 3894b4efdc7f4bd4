package models

import "time"

const (
	ItemTypePost   = "post"
	ItemTypeAnswer = "answer"

	DirectionUp   = "up"
	DirectionDown = "down"
)

// Vote is one voter's current vote on a post or an answer.
// The unique index keeps a voter in at most one of the up/down sets of an item.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ItemType  string    `gorm:"size:16;not null;uniqueIndex:idx_votes_item_voter,priority:1" json:"item_type"`
	ItemID    uint      `gorm:"not null;uniqueIndex:idx_votes_item_voter,priority:2" json:"item_id"`
	VoterID   uint      `gorm:"not null;uniqueIndex:idx_votes_item_voter,priority:3;index" json:"voter_id"`
	Direction string    `gorm:"size:8;not null" json:"direction"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
