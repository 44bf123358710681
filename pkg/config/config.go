package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Pricing modes for order placement.
const (
	PricingClient  = "client"
	PricingCatalog = "catalog"
)

// Config holds application configuration from environment variables
type Config struct {
	// Application
	AppPort       string
	AllowedOrigin string
	SchemaPath    string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Uploads
	UploadDir string

	// Orders
	PricingMode string

	// CSRF
	CSRFEnabled bool
	CSRFAuthKey string

	// Seeding
	SeedOnStart      bool
	SeedProductsFile string
	SellerEmail      string
	SellerPassword   string

	// OpenTelemetry
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPHeaders   string // key1=value1,key2=value2
	OTELExporterOTLPInsecure  bool   // true for http://, false for https://
	OTELServiceName           string
	OTELServiceVersion        string
	OTELDeploymentEnvironment string
	OTELExportIntervalSeconds int
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() *Config {
	// .env is optional; only complain about files that exist but cannot be read.
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8000"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		SchemaPath:    getEnv("SCHEMA_PATH", "schema.sql"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "grocery"),

		UploadDir: getEnv("UPLOAD_DIR", "storage"),

		PricingMode: getPricingMode("PRICING_MODE", PricingClient),

		CSRFEnabled: getEnvBool("CSRF_ENABLED", false),
		CSRFAuthKey: getEnv("CSRF_AUTH_KEY", ""),

		SeedOnStart:      getEnvBool("SEED_ON_START", false),
		SeedProductsFile: getEnv("SEED_PRODUCTS_FILE", "data.json"),
		SellerEmail:      getEnv("SELLER_EMAIL", "admin@admin"),
		SellerPassword:   getEnv("SELLER_PASSWORD", "admin123"),

		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPHeaders:   getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "grocery-store"),
		OTELServiceVersion:        getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTELDeploymentEnvironment: getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),
		OTELExportIntervalSeconds: getEnvInt("OTEL_EXPORT_INTERVAL_SECONDS", 10),
	}
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPassword
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// GetAppPortInt returns the application port as an integer
func (c *Config) GetAppPortInt() int {
	port, err := strconv.Atoi(c.AppPort)
	if err != nil {
		return 8000
	}
	return port
}

// CatalogPricing reports whether order prices always come from the catalog.
func (c *Config) CatalogPricing() bool {
	return c.PricingMode == PricingCatalog
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getPricingMode(key, defaultValue string) string {
	switch mode := strings.ToLower(getEnv(key, defaultValue)); mode {
	case PricingClient, PricingCatalog:
		return mode
	default:
		log.Printf("Warning: unknown %s=%q, using %s", key, mode, defaultValue)
		return defaultValue
	}
}
