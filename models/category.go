package models

// Category classifies a post. Rows are seeded at boot and read-only afterwards.
type Category struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	Label       string `gorm:"size:64;not null" json:"label"`
	Icon        string `gorm:"size:16" json:"icon"`
	Description string `gorm:"size:255" json:"description"`
	Position    int    `gorm:"not null;default:0" json:"-"`
}
