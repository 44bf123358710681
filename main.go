package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freshmart/grocery-store/internal/api"
	"github.com/freshmart/grocery-store/internal/db"
	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/middleware"
	"github.com/freshmart/grocery-store/internal/services"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/freshmart/grocery-store/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize OpenTelemetry metrics
	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	// Initialize database
	database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize schema
	schemaSQL, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		log.Printf("Warning: Could not read %s: %v", cfg.SchemaPath, err)
		log.Println("Assuming database schema already exists")
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		log.Printf("Warning: Could not initialize schema: %v", err)
		log.Println("Assuming database schema already exists")
	}

	images, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload directory: %v", err)
	}

	if cfg.SeedOnStart {
		seeder := services.NewSeeder(database, appMetrics)
		if err := seeder.Seed(ctx, services.SeedOptions{
			SellerEmail:    cfg.SellerEmail,
			SellerPassword: cfg.SellerPassword,
			ProductsFile:   cfg.SeedProductsFile,
		}); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	}

	var csrfKey []byte
	if cfg.CSRFEnabled {
		if csrfKey, err = middleware.CSRFKey(cfg.CSRFAuthKey); err != nil {
			log.Fatalf("Invalid CSRF configuration: %v", err)
		}
	}

	// Initialize services
	productService := services.NewProductService(database, appMetrics, images)
	orderService := services.NewOrderService(database, appMetrics, cfg.CatalogPricing())
	userService := services.NewUserService(database, appMetrics)
	sellerService := services.NewSellerService(database, appMetrics)

	app := api.NewApp(cfg, appMetrics, productService, orderService, userService, sellerService, images.Handler(), csrfKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetAppPortInt()),
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %d", cfg.GetAppPortInt())
		log.Printf("Pricing mode: %s, CSRF enabled: %t", cfg.PricingMode, cfg.CSRFEnabled)
		log.Printf("OTLP endpoint: %s", cfg.OTELExporterOTLPEndpoint)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
