package repositories

import (
	"catalog/internal/models"

	"github.com/shopspring/decimal"
)

// SearchFilter carries the optional predicates of a product search.
// A nil field contributes no predicate.
type SearchFilter struct {
	CategoryID *uint
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// ProductRepository defines the interface for product data access.
// Soft-deleted products are excluded from every finder; only HardDelete
// touches them.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id uint) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	// Delete soft-deletes the product and reports whether the id existed.
	Delete(id uint) (bool, error)
	// HardDelete physically removes the row, soft-deleted or not.
	HardDelete(id uint) (bool, error)
	ExistsByID(id uint) (bool, error)
	ExistsBySlug(slug string) (bool, error)
	AddReview(review *models.Review) error
	// Search matches products whose name contains query, further narrowed
	// by whichever filter predicates are supplied. Results come back in id
	// order.
	Search(query string, filter SearchFilter) ([]models.Product, error)
	FindActive() ([]models.Product, error)
	FindByCategory(categoryID uint) ([]models.Product, error)
	FindByPriceRange(min, max decimal.Decimal) ([]models.Product, error)
}
