package services_test

import (
	"fmt"
	"testing"

	"catalog/internal/cache"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll() ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(id uint) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(id uint) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) HardDelete(id uint) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) ExistsByID(id uint) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) ExistsBySlug(slug string) (bool, error) {
	args := m.Called(slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) AddReview(review *models.Review) error {
	args := m.Called(review)
	return args.Error(0)
}

func (m *MockProductRepository) Search(query string, filter repositories.SearchFilter) ([]models.Product, error) {
	args := m.Called(query, filter)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) FindActive() ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByCategory(categoryID uint) ([]models.Product, error) {
	args := m.Called(categoryID)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByPriceRange(min, max decimal.Decimal) ([]models.Product, error) {
	args := m.Called(min, max)
	return args.Get(0).([]models.Product), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishProductEvent(event string, payload map[string]interface{}) error {
	args := m.Called(event, payload)
	return args.Error(0)
}

func newService(repo repositories.ProductRepository) *services.ProductService {
	return services.NewProductService(repo, cache.NewMemoryStore(), nil, 5)
}

func TestProductService_GetAllProducts_CachesList(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	expectedProducts := []models.Product{
		{ID: 1, Name: "Product A", Slug: "product-a", Price: decimal.RequireFromString("10.00")},
		{ID: 2, Name: "Product B", Slug: "product-b", Price: decimal.RequireFromString("20.00")},
	}

	// The repository must only be hit once; the second read is served
	// from the list cache.
	mockRepo.On("GetAll").Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts()
	assert.NoError(t, err)
	assert.Len(t, products, 2)

	cached, err := service.GetAllProducts()
	assert.NoError(t, err)
	assert.Len(t, cached, 2)
	assert.Equal(t, products[0].Slug, cached[0].Slug)

	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	expectedProduct := &models.Product{ID: 1, Name: "Product A", Slug: "product-a"}

	// Test successful retrieval
	mockRepo.On("GetByID", uint(1)).Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID(1)
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)

	// Test product not found
	mockRepo.On("GetByID", uint(99)).Return(nil, nil).Once()
	product, err = service.GetProductByID(99)
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, product)

	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_DerivesSlug(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("ExistsBySlug", "fancy-keyboard").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Product")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Product).ID = 42
	}).Return(nil).Once()

	product, err := service.CreateProduct(services.CreateProductInput{
		Name:  "Fancy Keyboard!",
		Price: decimal.RequireFromString("75.00"),
	})

	assert.NoError(t, err)
	assert.Equal(t, uint(42), product.ID)
	assert.Equal(t, "fancy-keyboard", product.Slug)
	assert.True(t, product.Active)
	assert.False(t, product.CreatedAt.IsZero(), "createdAt must be set on create")
	assert.Nil(t, product.UpdatedAt, "updatedAt must stay unset on create")
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_SlugCollisionSuffix(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("ExistsBySlug", "widget").Return(true, nil).Once()
	mockRepo.On("ExistsBySlug", "widget-2").Return(true, nil).Once()
	mockRepo.On("ExistsBySlug", "widget-3").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Product")).Return(nil).Once()

	product, err := service.CreateProduct(services.CreateProductInput{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
	})

	assert.NoError(t, err)
	assert.Equal(t, "widget-3", product.Slug)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_ExplicitSlugTaken(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("ExistsBySlug", "taken").Return(true, nil).Once()

	product, err := service.CreateProduct(services.CreateProductInput{
		Name:  "Widget",
		Slug:  "taken",
		Price: decimal.RequireFromString("1.00"),
	})

	assert.ErrorIs(t, err, services.ErrSlugTaken)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_InvalidatesListCache(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	// Two repository listings: one before the write warms the cache, one
	// after the write because the cache was invalidated.
	mockRepo.On("GetAll").Return([]models.Product{}, nil).Twice()
	mockRepo.On("ExistsBySlug", "widget").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Product")).Return(nil).Once()

	_, err := service.GetAllProducts()
	assert.NoError(t, err)

	_, err = service.CreateProduct(services.CreateProductInput{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
	})
	assert.NoError(t, err)

	_, err = service.GetAllProducts()
	assert.NoError(t, err)

	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_PublishesEvent(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockEvents := new(MockEventPublisher)
	service := services.NewProductService(mockRepo, cache.NewMemoryStore(), mockEvents, 5)

	mockRepo.On("ExistsBySlug", "widget").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Product")).Return(nil).Once()
	mockEvents.On("PublishProductEvent", "product.created", mock.Anything).Return(nil).Once()

	_, err := service.CreateProduct(services.CreateProductInput{
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
	})

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestProductService_UpdateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	existing := &models.Product{
		ID:            1,
		Name:          "Product A",
		Slug:          "product-a",
		Price:         decimal.RequireFromString("10.00"),
		Active:        true,
		StockQuantity: 95,
	}

	mockRepo.On("GetByID", uint(1)).Return(existing, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.Product")).Return(nil).Once()

	product, err := service.UpdateProduct(1, services.UpdateProductInput{
		Name:        "Product A Updated",
		Price:       decimal.RequireFromString("12.00"),
		Description: "new description",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Product A Updated", product.Name)
	assert.Equal(t, "new description", product.Description)
	assert.True(t, decimal.RequireFromString("12.00").Equal(product.Price))
	assert.NotNil(t, product.UpdatedAt, "updatedAt must advance on update")
	assert.Equal(t, 95, product.StockQuantity, "stock untouched when not supplied")
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateProduct_NotFound(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("GetByID", uint(99)).Return(nil, nil).Once()

	product, err := service.UpdateProduct(99, services.UpdateProductInput{Name: "NonExistent"})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateProduct_LowStockEvent(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockEvents := new(MockEventPublisher)
	service := services.NewProductService(mockRepo, cache.NewMemoryStore(), mockEvents, 5)

	existing := &models.Product{ID: 1, Name: "Product A", Slug: "product-a", StockQuantity: 50}
	mockRepo.On("GetByID", uint(1)).Return(existing, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.Product")).Return(nil).Once()
	mockEvents.On("PublishProductEvent", "product.updated", mock.Anything).Return(nil).Once()
	mockEvents.On("PublishProductEvent", "product.low_stock", mock.Anything).Return(nil).Once()

	lowStock := 3
	_, err := service.UpdateProduct(1, services.UpdateProductInput{
		Name:          "Product A",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: &lowStock,
	})

	assert.NoError(t, err)
	mockEvents.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	// Test successful deletion
	mockRepo.On("Delete", uint(1)).Return(true, nil).Once()
	deleted, err := service.DeleteProduct(1)
	assert.NoError(t, err)
	assert.True(t, deleted)

	// Test deletion of an absent product
	mockRepo.On("Delete", uint(99)).Return(false, nil).Once()
	deleted, err = service.DeleteProduct(99)
	assert.NoError(t, err)
	assert.False(t, deleted)

	mockRepo.AssertExpectations(t)
}

func TestProductService_SearchProducts_Delegates(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	categoryID := uint(1)
	minPrice := decimal.RequireFromString("10.00")
	filter := repositories.SearchFilter{CategoryID: &categoryID, MinPrice: &minPrice}
	expected := []models.Product{{ID: 2, Name: "Apricot"}}

	mockRepo.On("Search", "Ap", filter).Return(expected, nil).Once()

	products, err := service.SearchProducts("Ap", filter)
	assert.NoError(t, err)
	assert.Equal(t, expected, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CalculateDiscountedPrice(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	product := &models.Product{ID: 1, Price: decimal.RequireFromString("100.00")}
	// One repository read per calculation, never more.
	mockRepo.On("GetByID", uint(1)).Return(product, nil).Times(2)

	// 80% is capped at 50%.
	loaded, price, err := service.CalculateDiscountedPrice(1, decimal.NewFromInt(80))
	assert.NoError(t, err)
	assert.Same(t, product, loaded)
	assert.True(t, decimal.RequireFromString("50.00").Equal(price), "got %s", price)

	loaded, price, err = service.CalculateDiscountedPrice(1, decimal.NewFromInt(25))
	assert.NoError(t, err)
	assert.Same(t, product, loaded)
	assert.True(t, decimal.RequireFromString("75.00").Equal(price), "got %s", price)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CalculateDiscountedPrice_NotFound(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("GetByID", uint(99)).Return(nil, nil).Once()

	_, _, err := service.CalculateDiscountedPrice(99, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_DiscountFormsAgree(t *testing.T) {
	// The service's subtraction form and the entity's multiplication form
	// must agree to within one unit in the second decimal for every
	// percentage in [0, 100].
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	ulp := decimal.RequireFromString("0.01")
	for _, price := range []string{"19.99", "100.00", "0.01", "123.45", "7.77"} {
		product := &models.Product{ID: 1, Price: decimal.RequireFromString(price)}
		mockRepo.ExpectedCalls = nil
		mockRepo.On("GetByID", uint(1)).Return(product, nil)

		for k := int64(0); k <= 100; k++ {
			pct := decimal.NewFromInt(k)
			entityForm := product.ApplyDiscount(pct)
			_, serviceForm, err := service.CalculateDiscountedPrice(1, pct)
			assert.NoError(t, err)

			diff := entityForm.Sub(serviceForm).Abs()
			assert.True(t, diff.LessThanOrEqual(ulp),
				"price=%s k=%d: entity %s vs service %s", price, k, entityForm, serviceForm)
		}
	}
}

func TestProductService_DiscountScenarios(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	// price 19.99, 10 percent off: 19.99 - 2.00 = 17.99 (1.999 rounds half-up).
	product := &models.Product{ID: 1, Price: decimal.RequireFromString("19.99")}
	mockRepo.On("GetByID", uint(1)).Return(product, nil).Once()

	_, price, err := service.CalculateDiscountedPrice(1, decimal.NewFromInt(10))
	assert.NoError(t, err)
	assert.True(t, decimal.RequireFromString("17.99").Equal(price), "got %s", price)
	assert.True(t, product.ApplyDiscount(decimal.NewFromInt(10)).Equal(price),
		"both discount forms must match")
}

func TestProductService_IsProductAvailable(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	available := &models.Product{ID: 1, Active: true, StockQuantity: 3}
	outOfStock := &models.Product{ID: 2, Active: true, StockQuantity: 0}

	mockRepo.On("GetByID", uint(1)).Return(available, nil).Once()
	mockRepo.On("GetByID", uint(2)).Return(outOfStock, nil).Once()
	mockRepo.On("GetByID", uint(99)).Return(nil, nil).Once()

	ok, err := service.IsProductAvailable(1)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = service.IsProductAvailable(2)
	assert.NoError(t, err)
	assert.False(t, ok)

	// An absent product is simply not available, not an error.
	ok, err = service.IsProductAvailable(99)
	assert.NoError(t, err)
	assert.False(t, ok)

	mockRepo.AssertExpectations(t)
}

func TestProductService_AddReview(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	product := &models.Product{ID: 7, Name: "Widget", Slug: "widget"}
	mockRepo.On("GetByID", uint(7)).Return(product, nil).Once()
	mockRepo.On("AddReview", mock.AnythingOfType("*models.Review")).Return(nil).Once()

	review, err := service.AddReview(7, services.AddReviewInput{Rating: 5, Comment: "great"})

	assert.NoError(t, err)
	assert.Equal(t, uint(7), review.ProductID, "review must point back at its product")
	assert.Len(t, product.Reviews, 1)
	mockRepo.AssertExpectations(t)
}

func TestProductService_AddReview_ProductNotFound(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("GetByID", uint(99)).Return(nil, nil).Once()

	review, err := service.AddReview(99, services.AddReviewInput{Rating: 4})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, review)
	mockRepo.AssertExpectations(t)
}

func TestProductService_RepositoryErrorsPropagate(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("GetAll").Return([]models.Product(nil), fmt.Errorf("database error")).Once()

	products, err := service.GetAllProducts()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	assert.Nil(t, products)
	mockRepo.AssertExpectations(t)
}
