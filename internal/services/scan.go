package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/freshmart/grocery-store/internal/models"
	"github.com/shopspring/decimal"
)

// productColumns is the column list every product query selects, in scan order.
var productColumns = []string{
	"id", "name", "description", "price", "original_price", "category",
	"stock", "rating", "about_product", "image_url", "created_at", "updated_at",
}

func productSelectList(alias string) string {
	cols := make([]string, len(productColumns))
	for i, c := range productColumns {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// productDest holds the nullable scan targets for one product row.
type productDest struct {
	p             models.Product
	description   sql.NullString
	originalPrice decimal.NullDecimal
	rating        sql.NullString
	aboutProduct  []byte
	imageURL      sql.NullString
}

func (d *productDest) targets() []interface{} {
	return []interface{}{
		&d.p.ID, &d.p.Name, &d.description, &d.p.Price, &d.originalPrice, &d.p.Category,
		&d.p.Stock, &d.rating, &d.aboutProduct, &d.imageURL, &d.p.CreatedAt, &d.p.UpdatedAt,
	}
}

func (d *productDest) product() (models.Product, error) {
	p := d.p
	p.Description = nullString(d.description)
	p.Rating = nullString(d.rating)
	p.ImageURL = nullString(d.imageURL)
	if d.originalPrice.Valid {
		op := d.originalPrice.Decimal
		p.OriginalPrice = &op
	}
	p.AboutProduct = []string{}
	if len(d.aboutProduct) > 0 {
		if err := json.Unmarshal(d.aboutProduct, &p.AboutProduct); err != nil {
			return p, fmt.Errorf("failed to decode about_product for product %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func scanProduct(row rowScanner) (models.Product, error) {
	var d productDest
	if err := row.Scan(d.targets()...); err != nil {
		return models.Product{}, err
	}
	return d.product()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
