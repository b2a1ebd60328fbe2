package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catalog/internal/cache"
	"catalog/internal/handlers"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/rabbitmq"
)

// App bundles everything main needs to run and shut down cleanly.
type App struct {
	Fiber    *fiber.App
	MQClient *rabbitmq.Client
}

// setDefaults seeds viper with the configuration the service understands.
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:catalog.db?cache=shared")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RESTOCK_THRESHOLD", 5)
	v.SetDefault("SEED_DEMO_DATA", false)
	v.AutomaticEnv()
}

// NewApp wires the repository, cache, event publisher, service and HTTP
// layers from configuration.
func NewApp(v *viper.Viper) (*App, error) {
	// --- Database ---
	var dialector gorm.Dialector
	switch driver := v.GetString("DATABASE_DRIVER"); driver {
	case "postgres":
		dialector = postgres.Open(v.GetString("DATABASE_DSN"))
	case "sqlite":
		dialector = sqlite.Open(v.GetString("DATABASE_DSN"))
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Tag{}, &models.Product{}, &models.Review{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// --- Cache ---
	// Redis when configured, otherwise an in-process store.
	var store cache.Store
	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		store = cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))
		log.Printf("Using Redis cache at %s", addr)
	} else {
		store = cache.NewMemoryStore()
	}

	// --- Events ---
	// Product lifecycle events go to RabbitMQ when a broker is configured.
	var mqClient *rabbitmq.Client
	var events services.EventPublisher
	if url := v.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		events = mqClient
	}

	// --- Repository, service, handler ---
	productRepo := repositories.NewGORMProductRepository(db)
	productService := services.NewProductService(productRepo, store, events, v.GetInt("RESTOCK_THRESHOLD"))
	productHandler := handlers.NewProductHandler(productService)

	if v.GetBool("SEED_DEMO_DATA") {
		seedProducts(productService)
	}

	// --- Fiber app ---
	app := fiber.New()
	app.Use(logger.New())

	api := app.Group("/api")
	productHandler.RegisterRoutes(api)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &App{Fiber: app, MQClient: mqClient}, nil
}

func main() {
	v := viper.New()
	setDefaults(v)

	app, err := NewApp(v)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	if app.MQClient != nil {
		defer app.MQClient.Close()

		// Log low-stock alerts coming back off the product event queue.
		go func() {
			log.Println("Starting RabbitMQ consumer for product events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received product event (tag %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil
			}
			if consumerErr := app.MQClient.ConsumeProductEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	appPort := v.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Fiber.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedProducts populates the catalog with some initial demo data.
func seedProducts(service *services.ProductService) {
	inputs := []services.CreateProductInput{
		{Name: "Laptop", Description: "High performance laptop", Price: mustDecimal("1200.00"), StockQuantity: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: mustDecimal("75.00"), StockQuantity: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: mustDecimal("25.00"), StockQuantity: 50},
	}

	for _, input := range inputs {
		product, err := service.CreateProduct(input)
		if err != nil {
			log.Printf("Error seeding product %s: %v", input.Name, err)
			continue
		}
		log.Printf("Seeded product: %s (ID: %d)", product.Name, product.ID)
	}
}
