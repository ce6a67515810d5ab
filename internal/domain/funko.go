package domain

import "time"

// NoImage is the sentinel image reference assigned to funkos created
// without an uploaded picture.
const NoImage = "no-image.png"

// Funko represents a catalog item linked to a category
type Funko struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"index" json:"name" form:"name"`
	Price      float64   `json:"price" form:"price"`
	CategoryID string    `gorm:"size:36;index" json:"category_id" form:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Image      string    `gorm:"size:1024" json:"image"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Funko) TableName() string {
	return "funkos"
}
