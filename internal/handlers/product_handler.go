package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	productService *services.ProductService
	validate       *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	products := router.Group("/products")
	products.Get("/", h.HandleGetProducts)
	products.Get("/search", h.HandleSearchProducts)
	products.Post("/", h.HandleCreateProduct)
	products.Get("/:id", h.HandleGetProduct)
	products.Put("/:id", h.HandleUpdateProduct)
	products.Delete("/:id", h.HandleDeleteProduct)
	products.Get("/:id/availability", h.HandleGetAvailability)
	products.Get("/:id/discount", h.HandleGetDiscount)
	products.Post("/:id/reviews", h.HandleAddReview)
}

// ProductRequest is the request body for creating and updating a product.
type ProductRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Slug          string           `json:"slug" validate:"omitempty,max=255"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	CategoryID    *uint            `json:"category_id"`
	Active        *bool            `json:"active"`
}

// ReviewRequest is the request body for adding a review to a product.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=2000"`
}

// HandleGetProducts lists all non-deleted products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.productService.GetAllProducts()
	if err != nil {
		log.Printf("Error listing products: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not list products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetProduct returns a single product by id.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}

	product, err := h.productService.GetProductByID(id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error getting product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not get product",
			"error":   err.Error(),
		})
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	req, err := h.parseProductRequest(c)
	if req == nil {
		return err
	}

	product, err := h.productService.CreateProduct(services.CreateProductInput{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         *req.Price,
		StockQuantity: intOrZero(req.StockQuantity),
		CategoryID:    req.CategoryID,
	})
	if err != nil {
		if errors.Is(err, services.ErrSlugTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Slug already in use",
			})
		}
		log.Printf("Error creating product: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create product",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct overwrites an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}
	req, err := h.parseProductRequest(c)
	if req == nil {
		return err
	}

	product, err := h.productService.UpdateProduct(id, services.UpdateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         *req.Price,
		StockQuantity: req.StockQuantity,
		CategoryID:    req.CategoryID,
		Active:        req.Active,
	})
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error updating product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update product",
			"error":   err.Error(),
		})
	}
	return c.JSON(product)
}

// HandleDeleteProduct soft-deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}

	deleted, err := h.productService.DeleteProduct(id)
	if err != nil {
		log.Printf("Error deleting product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete product",
			"error":   err.Error(),
		})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleSearchProducts runs the dynamic multi-predicate search. The query
// parameter is required; category_id, min_price and max_price narrow the
// result when present.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing required parameter 'query'",
		})
	}

	var filter repositories.SearchFilter
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid category_id",
			})
		}
		id := uint(categoryID)
		filter.CategoryID = &id
	}
	if raw := c.Query("min_price"); raw != "" {
		minPrice, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid min_price",
			})
		}
		filter.MinPrice = &minPrice
	}
	if raw := c.Query("max_price"); raw != "" {
		maxPrice, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid max_price",
			})
		}
		filter.MaxPrice = &maxPrice
	}

	products, err := h.productService.SearchProducts(query, filter)
	if err != nil {
		log.Printf("Error searching products: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not search products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetAvailability reports whether a product can be sold. An absent
// id reads as unavailable rather than an error.
func (h *ProductHandler) HandleGetAvailability(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}

	available, err := h.productService.IsProductAvailable(id)
	if err != nil {
		log.Printf("Error checking availability of product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not check availability",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"available": available})
}

// HandleGetDiscount returns the discounted price for a product given a
// percent query parameter.
func (h *ProductHandler) HandleGetDiscount(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}

	raw := c.Query("percent")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing required parameter 'percent'",
		})
	}
	percent, err := decimal.NewFromString(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid percent",
		})
	}

	product, discounted, err := h.productService.CalculateDiscountedPrice(id, percent)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error discounting product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not calculate discounted price",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"original_price":   product.Price,
		"formatted_price":  product.FormattedPrice(),
		"discounted_price": discounted,
	})
}

// HandleAddReview attaches a review to a product.
func (h *ProductHandler) HandleAddReview(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return nil
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing review request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	review, err := h.productService.AddReview(id, services.AddReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error adding review to product %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add review",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// parseProductRequest parses and validates the shared create/update body.
func (h *ProductHandler) parseProductRequest(c *fiber.Ctx) (*ProductRequest, error) {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing product request body: %v", err)
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return nil, validationErrorResponse(c, err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  map[string]string{"Name": "Field 'Name' must not be blank"},
		})
	}
	if req.Price.IsNegative() {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  map[string]string{"Price": "Field 'Price' must not be negative"},
		})
	}
	return &req, nil
}

// validationErrorResponse renders validator failures as a 400 with a
// field-to-message map.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	validationErrors := err.(validator.ValidationErrors)
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// parseID reads the :id route parameter, writing a 400 response itself
// when the parameter is not a valid id.
func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
		return 0, false
	}
	return uint(id), true
}
