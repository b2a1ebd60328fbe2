package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemoryProductRepository is an in-memory implementation of
// ProductRepository for tests and broker-less local runs. It mirrors the
// store semantics: ids are assigned on insert, slugs are unique among
// non-deleted products, and soft-deleted rows are invisible to finders.
type MemoryProductRepository struct {
	products     map[uint]models.Product
	nextID       uint
	nextReviewID uint
	mu           sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products:     make(map[uint]models.Product),
		nextID:       1,
		nextReviewID: 1,
	}
}

// GetAll returns all non-deleted products in id order.
func (r *MemoryProductRepository) GetAll() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(models.Product) bool { return true }), nil
}

// GetByID returns a product by its id, or (nil, nil) when absent.
func (r *MemoryProductRepository) GetByID(id uint) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok || product.DeletedAt.Valid {
		return nil, nil
	}
	return &product, nil
}

// Create adds a new product, assigning its id.
func (r *MemoryProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.products {
		if !p.DeletedAt.Valid && p.Slug == product.Slug {
			return fmt.Errorf("slug %q already in use: %w", product.Slug, gorm.ErrDuplicatedKey)
		}
	}

	if product.ID == 0 {
		product.ID = r.nextID
		r.nextID++
	} else if product.ID >= r.nextID {
		r.nextID = product.ID + 1
	}
	r.products[product.ID] = *product
	return nil
}

// Update overwrites an existing product.
func (r *MemoryProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok || existing.DeletedAt.Valid {
		return fmt.Errorf("product with ID %d not found for update", product.ID)
	}
	r.products[product.ID] = *product
	return nil
}

// Delete soft-deletes a product by its id.
func (r *MemoryProductRepository) Delete(id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || product.DeletedAt.Valid {
		return false, nil
	}
	product.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	r.products[id] = product
	return true, nil
}

// HardDelete removes a product entirely, soft-deleted or not.
func (r *MemoryProductRepository) HardDelete(id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return false, nil
	}
	delete(r.products, id)
	return true, nil
}

// ExistsByID reports whether a non-deleted product with the id exists.
func (r *MemoryProductRepository) ExistsByID(id uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	return ok && !product.DeletedAt.Valid, nil
}

// ExistsBySlug reports whether a non-deleted product uses the slug.
func (r *MemoryProductRepository) ExistsBySlug(slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if !p.DeletedAt.Valid && p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// AddReview stores a review on its owning product.
func (r *MemoryProductRepository) AddReview(review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[review.ProductID]
	if !ok || product.DeletedAt.Valid {
		return fmt.Errorf("product with ID %d not found for review", review.ProductID)
	}
	if review.ID == 0 {
		review.ID = r.nextReviewID
		r.nextReviewID++
	}
	stored := *review
	stored.Product = nil
	product.Reviews = append(product.Reviews, &stored)
	r.products[product.ID] = product
	return nil
}

// Search matches products whose name contains query, narrowed by the
// supplied filter predicates.
func (r *MemoryProductRepository) Search(query string, filter SearchFilter) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(p models.Product) bool {
		if !strings.Contains(p.Name, query) {
			return false
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			return false
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			return false
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			return false
		}
		return true
	}), nil
}

// FindActive returns all active products.
func (r *MemoryProductRepository) FindActive() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(p models.Product) bool { return p.Active }), nil
}

// FindByCategory returns all products in the given category.
func (r *MemoryProductRepository) FindByCategory(categoryID uint) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(p models.Product) bool {
		return p.CategoryID != nil && *p.CategoryID == categoryID
	}), nil
}

// FindByPriceRange returns products priced within [min, max].
func (r *MemoryProductRepository) FindByPriceRange(min, max decimal.Decimal) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(p models.Product) bool {
		return !p.Price.LessThan(min) && !p.Price.GreaterThan(max)
	}), nil
}

// collect gathers non-deleted products matching keep, in id order.
// Callers must hold at least the read lock.
func (r *MemoryProductRepository) collect(keep func(models.Product) bool) []models.Product {
	products := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if !p.DeletedAt.Valid && keep(p) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}
