package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/freshmart/grocery-store/internal/db"
	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
)

// ImageStore persists product images and releases them again.
type ImageStore interface {
	Save(up *storage.Upload) (string, error)
	Delete(url string) error
}

// ProductService handles catalog operations
type ProductService struct {
	db       *db.DB
	metrics  *metrics.AppMetrics
	images   ImageStore
	validate *validator.Validate
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, metrics *metrics.AppMetrics, images ImageStore) *ProductService {
	return &ProductService{
		db:       db,
		metrics:  metrics,
		images:   images,
		validate: newValidator(),
	}
}

// ListProducts returns the whole catalog ordered by id
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	start := time.Now()
	query := "SELECT " + productSelectList("p") + " FROM products p ORDER BY p.id"
	rows, err := s.db.QueryContext(ctx, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// GetProduct returns a product by ID and records the view
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	attrs := s.metrics.Attrs(
		attribute.Int64("product_id", p.ID),
		attribute.String("product_category", p.Category),
	)
	s.metrics.ProductsViewed.Add(ctx, 1, attrs)
	s.metrics.InventoryLevel.Record(ctx, int64(p.Stock), attrs)

	return p, nil
}

// CreateProduct validates input, stores the optional image and inserts the product.
func (s *ProductService) CreateProduct(ctx context.Context, in models.ProductInput, image *storage.Upload) (*models.Product, error) {
	normalizeProductInput(&in)
	if err := validateProduct(s.validate, in, true); err != nil {
		return nil, err
	}

	imageURL, err := s.resolveImage(in.ImageURL, image)
	if err != nil {
		return nil, err
	}

	about, err := json.Marshal(nonNil(in.AboutProduct))
	if err != nil {
		return nil, fmt.Errorf("failed to encode about_product: %w", err)
	}

	start := time.Now()
	query := `INSERT INTO products (name, description, price, original_price, category, stock, rating, about_product, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		*in.Name, nullableString(in.Description), in.Price.StringFixed(2), nullableDecimal(in.OriginalPrice),
		*in.Category, *in.Stock, nullableString(in.Rating), string(about), nullableString(imageURL),
	)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		s.releaseImage(imageURL, image != nil)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}

	s.recordChange(ctx, "create", id, *in.Category, *in.Stock)
	return s.fetch(ctx, id)
}

// UpdateProduct applies a partial update. A new image replaces the stored one,
// which is then released.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, in models.ProductInput, image *storage.Upload) (*models.Product, error) {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	normalizeProductInput(&in)
	if err := validateProduct(s.validate, in, false); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if in.Name != nil {
		set("name", *in.Name)
	}
	if in.Description != nil {
		set("description", *in.Description)
	}
	if in.Price != nil {
		set("price", in.Price.StringFixed(2))
	}
	if in.OriginalPrice != nil {
		set("original_price", in.OriginalPrice.StringFixed(2))
	}
	if in.Category != nil {
		set("category", *in.Category)
	}
	if in.Stock != nil {
		set("stock", *in.Stock)
	}
	if in.Rating != nil {
		set("rating", *in.Rating)
	}
	if in.AboutProduct != nil {
		about, err := json.Marshal(in.AboutProduct)
		if err != nil {
			return nil, fmt.Errorf("failed to encode about_product: %w", err)
		}
		set("about_product", string(about))
	}

	replacingImage := image != nil || in.ImageURL != nil
	var newImage *string
	if replacingImage {
		if newImage, err = s.resolveImage(in.ImageURL, image); err != nil {
			return nil, err
		}
		set("image_url", nullableString(newImage))
	}

	if len(sets) == 0 {
		return existing, nil
	}

	start := time.Now()
	query := "UPDATE products SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err = s.db.ExecContext(ctx, query, append(args, id)...)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		s.releaseImage(newImage, image != nil)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if replacingImage && existing.ImageURL != nil && (newImage == nil || *newImage != *existing.ImageURL) {
		s.releaseImage(existing.ImageURL, true)
	}

	updated, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, "update", id, updated.Category, updated.Stock)
	return updated, nil
}

// DeleteProduct removes the product row and then releases its image. Image
// cleanup is best effort and never fails the delete.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	query := "DELETE FROM products WHERE id = ?"
	_, err = s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "products", query, start, err == nil)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("product %d is referenced by existing orders: %w", id, ErrConflict)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.releaseImage(existing.ImageURL, true)
	s.recordChange(ctx, "delete", id, existing.Category, 0)
	return nil
}

func (s *ProductService) fetch(ctx context.Context, id int64) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productSelectList("p") + " FROM products p WHERE p.id = ?"
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ValidateProductInput reports every constraint in violates, using the
// create rules when create is set and the partial update rules otherwise.
func ValidateProductInput(in models.ProductInput, create bool) error {
	normalizeProductInput(&in)
	return validateProduct(requestValidator, in, create)
}

func validateProduct(v *validator.Validate, in models.ProductInput, create bool) error {
	var fields []FieldError
	if err := validateStruct(v, in); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		fields = verr.Fields
	}

	required := func(name string, missing bool) {
		if missing {
			fields = append(fields, FieldError{Field: name, Message: "is required"})
		}
	}
	if create {
		required("name", in.Name == nil || *in.Name == "")
		required("price", in.Price == nil)
		required("category", in.Category == nil || *in.Category == "")
		required("stock", in.Stock == nil)
	} else {
		required("name", in.Name != nil && *in.Name == "")
		required("category", in.Category != nil && *in.Category == "")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// resolveImage stores an uploaded file, or normalizes a caller-supplied URL.
// An uploaded file wins over a URL. Relative paths are served from the
// public storage prefix.
func (s *ProductService) resolveImage(imageURL *string, image *storage.Upload) (*string, error) {
	if image != nil {
		url, err := s.images.Save(image)
		if errors.Is(err, storage.ErrImageTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
			return nil, invalid("image", err.Error())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		return &url, nil
	}

	if imageURL == nil || *imageURL == "" {
		return nil, nil
	}
	url := *imageURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		rel := strings.TrimPrefix(strings.TrimLeft(url, "/"), strings.TrimPrefix(storage.URLPrefix, "/"))
		url = storage.URLPrefix + rel
	}
	return &url, nil
}

func (s *ProductService) releaseImage(url *string, owned bool) {
	if url == nil || !owned {
		return
	}
	if err := s.images.Delete(*url); err != nil {
		log.Printf("[CATALOG] Warning: could not release image %s: %v", *url, err)
	}
}

func (s *ProductService) recordChange(ctx context.Context, op string, id int64, category string, stock int) {
	attrs := s.metrics.Attrs(
		attribute.Int64("product_id", id),
		attribute.String("product_category", category),
	)
	s.metrics.ProductsChanged.Add(ctx, 1, s.metrics.Attrs(attribute.String("operation", op)))
	if op != "delete" {
		s.metrics.InventoryLevel.Record(ctx, int64(stock), attrs)
	}
	log.Printf("[CATALOG] Product %sd: product_id=%d, category=%s, stock=%d", op, id, category, stock)
}

func normalizeProductInput(in *models.ProductInput) {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(in.Name)
	trim(in.Category)
	trim(in.ImageURL)
	for i := range in.AboutProduct {
		in.AboutProduct[i] = strings.TrimSpace(in.AboutProduct[i])
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
