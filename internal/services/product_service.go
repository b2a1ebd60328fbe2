package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"catalog/internal/cache"
	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound signals that a referenced product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrSlugTaken signals a unique-slug conflict on create.
	ErrSlugTaken = errors.New("slug already in use")
)

// productListCacheKey caches the result of GetAllProducts.
const productListCacheKey = "products:all"

// EventPublisher publishes product lifecycle events to a broker.
type EventPublisher interface {
	PublishProductEvent(event string, payload map[string]interface{}) error
}

// CreateProductInput carries the fields accepted when creating a product.
// A blank Slug is derived from Name.
type CreateProductInput struct {
	Name          string
	Slug          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CategoryID    *uint
}

// UpdateProductInput carries the fields accepted when updating a product.
// Name, Price and Description always overwrite; the pointer fields only
// apply when supplied.
type UpdateProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity *int
	CategoryID    *uint
	Active        *bool
}

// AddReviewInput carries a new review for a product.
type AddReviewInput struct {
	Rating  int
	Comment string
}

// ProductService handles business logic related to products. It is the
// transactional boundary: each repository call runs in its own committed
// transaction, and the list cache is invalidated only after a write has
// returned successfully.
type ProductService struct {
	repo             repositories.ProductRepository
	cache            cache.Store
	events           EventPublisher
	restockThreshold int
}

// NewProductService creates a new ProductService. events may be nil when
// no broker is configured.
func NewProductService(repo repositories.ProductRepository, store cache.Store, events EventPublisher, restockThreshold int) *ProductService {
	return &ProductService{
		repo:             repo,
		cache:            store,
		events:           events,
		restockThreshold: restockThreshold,
	}
}

// GetAllProducts retrieves all non-deleted products, serving from the
// list cache when possible.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	if data, ok := s.cache.Get(productListCacheKey); ok {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		// A corrupt entry falls through to the repository.
		s.cache.Delete(productListCacheKey)
	}

	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(products); err == nil {
		s.cache.Set(productListCacheKey, data, cache.DefaultTTL)
	}
	return products, nil
}

// GetProductByID retrieves a single product by its id.
func (s *ProductService) GetProductByID(id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// CreateProduct creates a new product. The slug comes from the input when
// given (conflicts rejected), otherwise it is derived from the name with a
// numeric suffix to resolve collisions.
func (s *ProductService) CreateProduct(input CreateProductInput) (*models.Product, error) {
	slug := input.Slug
	if slug == "" {
		derived, err := s.uniqueSlug(slugify(input.Name))
		if err != nil {
			return nil, err
		}
		slug = derived
	} else {
		taken, err := s.repo.ExistsBySlug(slug)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}

	product := &models.Product{
		Name:          input.Name,
		Slug:          slug,
		Description:   input.Description,
		Price:         input.Price,
		Active:        true,
		StockQuantity: input.StockQuantity,
		CategoryID:    input.CategoryID,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.Create(product); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	s.cache.Delete(productListCacheKey)
	s.publish("product.created", productPayload(product))
	return product, nil
}

// UpdateProduct overwrites a product's name, price and description, plus
// stock, category and active flag when supplied, and advances UpdatedAt.
func (s *ProductService) UpdateProduct(id uint, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	product.Name = input.Name
	product.Price = input.Price
	product.Description = input.Description
	if input.StockQuantity != nil {
		product.StockQuantity = *input.StockQuantity
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	if input.Active != nil {
		product.Active = *input.Active
	}
	now := time.Now()
	product.UpdatedAt = &now

	if err := s.repo.Update(product); err != nil {
		return nil, err
	}

	s.cache.Delete(productListCacheKey)
	s.publish("product.updated", productPayload(product))
	if product.NeedsRestock(s.restockThreshold) {
		s.publish("product.low_stock", productPayload(product))
	}
	return product, nil
}

// DeleteProduct soft-deletes a product, reporting whether the id existed.
func (s *ProductService) DeleteProduct(id uint) (bool, error) {
	deleted, err := s.repo.Delete(id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.cache.Delete(productListCacheKey)
		s.publish("product.deleted", map[string]interface{}{"id": id})
	}
	return deleted, nil
}

// SearchProducts delegates predicate composition to the repository.
func (s *ProductService) SearchProducts(query string, filter repositories.SearchFilter) ([]models.Product, error) {
	return s.repo.Search(query, filter)
}

// CalculateDiscountedPrice loads the product and applies the discount in
// subtraction form: the discount amount is price * percent / 100 rounded
// half-up to two decimals, then subtracted from the price. Percentages
// above the cap are clamped; the result agrees with the entity's
// multiplication form to two decimals. The loaded product is returned
// alongside the price so callers need no second read.
func (s *ProductService) CalculateDiscountedPrice(productID uint, discountPercent decimal.Decimal) (*models.Product, decimal.Decimal, error) {
	product, err := s.repo.GetByID(productID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if product == nil {
		return nil, decimal.Zero, fmt.Errorf("cannot discount product %d: %w", productID, ErrProductNotFound)
	}

	capped := discountPercent
	if capped.GreaterThan(models.MaxDiscountPercent) {
		capped = models.MaxDiscountPercent
	}
	discount := product.Price.Mul(capped).DivRound(decimal.NewFromInt(100), 2)
	return product, product.Price.Sub(discount), nil
}

// IsProductAvailable reports the entity availability rule, false for
// absent ids.
func (s *ProductService) IsProductAvailable(productID uint) (bool, error) {
	product, err := s.repo.GetByID(productID)
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, nil
	}
	return product.IsAvailable(), nil
}

// AddReview attaches a review to a product through the aggregate and
// persists it.
func (s *ProductService) AddReview(productID uint, input AddReviewInput) (*models.Review, error) {
	product, err := s.repo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	review := &models.Review{
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: time.Now(),
	}
	if err := product.AddReview(review); err != nil {
		return nil, err
	}
	if err := s.repo.AddReview(review); err != nil {
		return nil, err
	}

	s.cache.Delete(productListCacheKey)
	return review, nil
}

// publish sends an event when a broker is configured. Publish failures
// are logged, never surfaced: the write has already committed.
func (s *ProductService) publish(event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishProductEvent(event, payload); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	}
}

func productPayload(p *models.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"name":           p.Name,
		"slug":           p.Slug,
		"price":          p.Price.StringFixed(2),
		"stock_quantity": p.StockQuantity,
		"active":         p.Active,
	}
}

// slugify lowercases the name and collapses every run of
// non-alphanumerics into a single dash.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "product"
	}
	if len(slug) > 255 {
		slug = slug[:255]
	}
	return slug
}

// uniqueSlug resolves slug collisions with a numeric suffix.
func (s *ProductService) uniqueSlug(base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		taken, err := s.repo.ExistsBySlug(slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
