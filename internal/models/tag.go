package models

// Tag labels products through the product_tags join table.
type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:255;not null;uniqueIndex" validate:"required,max=255"`
}
