package repositories

import (
	"errors"
	"fmt"
	"strings"

	"catalog/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
// The gorm.DeletedAt column on Product makes every query here exclude
// soft-deleted rows unless Unscoped is used explicitly.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all non-deleted products in id order.
func (r *GORMProductRepository) GetAll() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product with its category, reviews and tags.
// A missing id yields (nil, nil).
func (r *GORMProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.Preload("Category").Preload("Reviews").Preload("Tags").
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// Create inserts a new product. A duplicate slug surfaces as
// gorm.ErrDuplicatedKey when the dialector translates errors.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if err := r.db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update saves all fields of an existing product.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Omit("Reviews", "Tags", "Category").Save(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d not found for update", product.ID)
	}
	return nil
}

// Delete soft-deletes a product by id. Absent ids are a no-op.
func (r *GORMProductRepository) Delete(id uint) (bool, error) {
	res := r.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete product: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HardDelete physically removes a product row, bypassing the soft-delete
// scope. Owned reviews go with it via the cascade constraint.
func (r *GORMProductRepository) HardDelete(id uint) (bool, error) {
	res := r.db.Unscoped().Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to hard-delete product: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExistsByID reports whether a non-deleted product with the id exists.
func (r *GORMProductRepository) ExistsByID(id uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return count > 0, nil
}

// ExistsBySlug reports whether a non-deleted product already uses the slug.
func (r *GORMProductRepository) ExistsBySlug(slug string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slug existence: %w", err)
	}
	return count > 0, nil
}

// AddReview persists a review row for its owning product.
func (r *GORMProductRepository) AddReview(review *models.Review) error {
	if err := r.db.Create(review).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// Search returns products whose name contains query, conjoined with the
// supplied filter predicates. The query string is escaped so %, _ and \
// match literally.
func (r *GORMProductRepository) Search(query string, filter SearchFilter) ([]models.Product, error) {
	tx := r.db.Model(&models.Product{}).
		Where(`name LIKE ? ESCAPE '\'`, "%"+escapeLike(query)+"%")

	if filter.CategoryID != nil {
		tx = tx.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.MinPrice != nil {
		tx = tx.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		tx = tx.Where("price <= ?", *filter.MaxPrice)
	}

	var products []models.Product
	if err := tx.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// FindActive retrieves all active, non-deleted products.
func (r *GORMProductRepository) FindActive() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Where("active = ?", true).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find active products: %w", err)
	}
	return products, nil
}

// FindByCategory retrieves all products in the given category.
func (r *GORMProductRepository) FindByCategory(categoryID uint) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Where("category_id = ?", categoryID).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find products by category %d: %w", categoryID, err)
	}
	return products, nil
}

// FindByPriceRange retrieves products priced within [min, max], bounds
// inclusive.
func (r *GORMProductRepository) FindByPriceRange(min, max decimal.Decimal) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Where("price >= ? AND price <= ?", min, max).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find products by price range: %w", err)
	}
	return products, nil
}

// escapeLike makes a user-supplied string safe inside a LIKE pattern.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
