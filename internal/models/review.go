package models

import "time"

// Review is owned by exactly one product. The Product back-pointer is kept
// in memory only and must be maintained through Product.AddReview and
// Product.RemoveReview.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	Product   *Product  `json:"-" gorm:"-"`
	Rating    int       `json:"rating" gorm:"not null" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Review) attach(p *Product) {
	r.Product = p
	r.ProductID = p.ID
}

func (r *Review) detach() {
	r.Product = nil
	r.ProductID = 0
}

// sameReview decides review identity: the same object, or the same
// persisted id.
func sameReview(a, b *Review) bool {
	if a == b {
		return true
	}
	return a.ID != 0 && a.ID == b.ID
}
