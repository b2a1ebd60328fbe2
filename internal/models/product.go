package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxDiscountPercent caps every discount applied to a product.
var MaxDiscountPercent = decimal.NewFromInt(50)

var oneHundred = decimal.NewFromInt(100)

// Product represents a product in the catalog. It owns its reviews;
// category and tags are referenced, never owned.
type Product struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"size:255;not null" validate:"required,max=255"`
	Slug          string          `json:"slug" gorm:"size:255;not null;uniqueIndex:idx_products_slug,where:deleted_at IS NULL" validate:"required,max=255"`
	Description   string          `json:"description" gorm:"type:text"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(18,2);not null"`
	Active        bool            `json:"active" gorm:"index"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;default:0" validate:"gte=0"`
	CategoryID    *uint           `json:"category_id,omitempty" gorm:"index"`
	Category      *Category       `json:"category,omitempty"`
	Reviews       []*Review       `json:"reviews,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Tags          []Tag           `json:"tags,omitempty" gorm:"many2many:product_tags"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
	DeletedAt     gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}

// FormattedPrice returns the price as "$X.YY", rounded half-up to two decimals.
func (p *Product) FormattedPrice() string {
	return "$" + p.Price.StringFixed(2)
}

// IsAvailable reports whether the product can be sold: it must be active,
// in stock, and not soft-deleted.
func (p *Product) IsAvailable() bool {
	return p.Active && p.StockQuantity > 0 && !p.DeletedAt.Valid
}

// ApplyDiscount returns the price after applying a percentage discount.
// Percentages above 50 are silently capped at 50; negative input is left
// to the caller. The multiplier is computed at four decimal places and the
// result is rounded half-up to two.
func (p *Product) ApplyDiscount(percentage decimal.Decimal) decimal.Decimal {
	capped := percentage
	if capped.GreaterThan(MaxDiscountPercent) {
		capped = MaxDiscountPercent
	}
	multiplier := decimal.NewFromInt(1).Sub(capped.DivRound(oneHundred, 4))
	return p.Price.Mul(multiplier).Round(2)
}

// NeedsRestock reports whether stock has fallen to or below the threshold.
func (p *Product) NeedsRestock(threshold int) bool {
	return p.StockQuantity <= threshold
}

// AddReview inserts a review into the product's review set and points the
// review back at this product. A review already present (same identity) is
// not added twice.
func (p *Product) AddReview(review *Review) error {
	if review == nil {
		return fmt.Errorf("review must not be nil")
	}
	for _, existing := range p.Reviews {
		if sameReview(existing, review) {
			existing.attach(p)
			return nil
		}
	}
	review.attach(p)
	p.Reviews = append(p.Reviews, review)
	return nil
}

// RemoveReview removes a review from the set and clears its back-reference.
func (p *Product) RemoveReview(review *Review) {
	if review == nil {
		return
	}
	for i, existing := range p.Reviews {
		if sameReview(existing, review) {
			p.Reviews = append(p.Reviews[:i], p.Reviews[i+1:]...)
			review.detach()
			return
		}
	}
}

// AverageRating returns the arithmetic mean of all review ratings,
// or 0.0 when the product has no reviews.
func (p *Product) AverageRating() float64 {
	if len(p.Reviews) == 0 {
		return 0.0
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(p.Reviews))
}
