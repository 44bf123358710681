package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/freshmart/grocery-store/internal/db"
	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Default customer created when the users table is empty, so checkout has
// someone to reference.
const (
	defaultCustomerName  = "Demo Customer"
	defaultCustomerEmail = "customer@example.com"
)

// SeedOptions configures the startup seeder
type SeedOptions struct {
	SellerEmail    string
	SellerPassword string
	ProductsFile   string
}

// Seeder fills an empty database with the dashboard seller, a default
// customer and the product catalog. Every step is skipped when its table
// already holds data, so running it twice is harmless.
type Seeder struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewSeeder creates a new seeder
func NewSeeder(db *db.DB, metrics *metrics.AppMetrics) *Seeder {
	return &Seeder{db: db, metrics: metrics}
}

// Seed runs every seeding step
func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) error {
	if err := s.seedSeller(ctx, opts.SellerEmail, opts.SellerPassword); err != nil {
		return err
	}
	if err := s.seedCustomer(ctx); err != nil {
		return err
	}
	return s.seedProducts(ctx, opts.ProductsFile)
}

func (s *Seeder) seedSeller(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	exists, err := s.exists(ctx, "sellers", "SELECT EXISTS(SELECT 1 FROM sellers WHERE email = ?)", email)
	if err != nil || exists {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seller password: %w", err)
	}

	start := time.Now()
	query := "INSERT INTO sellers (email, password) VALUES (?, ?)"
	_, err = s.db.ExecContext(ctx, query, email, string(hash))
	s.metrics.RecordDBQuery(ctx, "INSERT", "sellers", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to seed seller: %w", err)
	}

	log.Printf("[SEED] Seller account created: %s", email)
	return nil
}

func (s *Seeder) seedCustomer(ctx context.Context) error {
	exists, err := s.exists(ctx, "users", "SELECT EXISTS(SELECT 1 FROM users)")
	if err != nil || exists {
		return err
	}

	start := time.Now()
	query := "INSERT INTO users (name, email) VALUES (?, ?)"
	_, err = s.db.ExecContext(ctx, query, defaultCustomerName, defaultCustomerEmail)
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to seed customer: %w", err)
	}

	log.Printf("[SEED] Default customer created: %s", defaultCustomerEmail)
	return nil
}

// seedProduct is one entry of the catalog file. Prices are display strings
// such as "$1,299.00".
type seedProduct struct {
	Category      string     `json:"category"`
	Name          string     `json:"name"`
	Description   *string    `json:"description"`
	Rating        flexString `json:"rating"`
	Price         flexString `json:"price"`
	OriginalPrice flexString `json:"original_price"`
	Stock         *int       `json:"stock"`
	AboutProduct  []string   `json:"about_product"`
	ImageURL      *string    `json:"image_url"`
}

func (s *Seeder) seedProducts(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	exists, err := s.exists(ctx, "products", "SELECT EXISTS(SELECT 1 FROM products)")
	if err != nil || exists {
		return err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[SEED] Product file %s not found, skipping catalog", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read product file: %w", err)
	}

	var entries []seedProduct
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("failed to parse product file %s: %w", path, err)
	}

	query := `INSERT INTO products (name, description, price, original_price, category, stock, rating, about_product, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for i, e := range entries {
			price, err := ParsePrice(string(e.Price))
			if err != nil {
				return fmt.Errorf("product %d (%s): %w", i, e.Name, err)
			}
			var original *decimal.Decimal
			if e.OriginalPrice != "" {
				op, err := ParsePrice(string(e.OriginalPrice))
				if err != nil {
					return fmt.Errorf("product %d (%s): %w", i, e.Name, err)
				}
				original = &op
			}
			stock := 0
			if e.Stock != nil {
				stock = *e.Stock
			}
			var rating *string
			if e.Rating != "" {
				r := string(e.Rating)
				rating = &r
			}
			about, err := json.Marshal(nonNil(e.AboutProduct))
			if err != nil {
				return err
			}

			start := time.Now()
			_, err = tx.ExecContext(ctx, query,
				e.Name, nullableString(e.Description), price.StringFixed(2), nullableDecimal(original),
				e.Category, stock, nullableString(rating), string(about), nullableString(e.ImageURL),
			)
			s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
			if err != nil {
				return fmt.Errorf("failed to seed product %s: %w", e.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[SEED] Catalog seeded: %d products from %s", len(entries), path)
	return nil
}

func (s *Seeder) exists(ctx context.Context, table, query string, args ...interface{}) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", table, query, start, err == nil)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return exists, nil
}

// ParsePrice converts a display price such as "$1,299.00" to a decimal.
// An empty string is zero.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}
