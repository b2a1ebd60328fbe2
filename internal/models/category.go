package models

// Category groups products. Referenced by products, never owned by them.
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:255;not null" validate:"required,max=255"`
}
