package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedItems is returned when an items field cannot be decoded.
var ErrMalformedItems = errors.New("malformed items")

// PlaceOrderRequest is the checkout payload
type PlaceOrderRequest struct {
	UserID          int64      `json:"user_id" form:"user_id" validate:"required,gt=0"`
	CustomerName    string     `json:"customer_name" form:"customer_name" validate:"required,max=255"`
	CustomerEmail   string     `json:"customer_email" form:"customer_email" validate:"required,email,max=255"`
	ShippingAddress Address    `json:"shipping_address" form:"shipping_address" validate:"required"`
	Items           OrderLines `json:"items" form:"-" validate:"required,min=1,dive"`
}

// OrderLineRequest is a single requested line. Price is optional; when it is
// absent the catalog price is used.
type OrderLineRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	Price     *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// OrderLines accepts either a JSON array of lines or a string holding one,
// which is how multipart checkout forms submit it.
type OrderLines []OrderLineRequest

// UnmarshalJSON implements json.Unmarshaler.
func (l *OrderLines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedItems, err)
		}
		lines, err := DecodeOrderLines(encoded)
		if err != nil {
			return err
		}
		*l = lines
		return nil
	}

	var lines []OrderLineRequest
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedItems, err)
	}
	*l = lines
	return nil
}

// DecodeOrderLines decodes a JSON-encoded list of order lines.
func DecodeOrderLines(encoded string) (OrderLines, error) {
	var lines []OrderLineRequest
	if err := json.Unmarshal([]byte(encoded), &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedItems, err)
	}
	return lines, nil
}

// Address is a free-text shipping address. Checkout forms may send it as a
// structured object, which is flattened into a single line.
type Address string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Address(s)
		return nil
	}

	var parts struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		ZipCode string `json:"zipCode"`
		Zip     string `json:"zip_code"`
		Country string `json:"country"`
		Phone   string `json:"phone"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if parts.ZipCode == "" {
		parts.ZipCode = parts.Zip
	}

	var fields []string
	for _, f := range []string{parts.Street, parts.City, strings.TrimSpace(parts.State + " " + parts.ZipCode), parts.Country, parts.Phone} {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	*a = Address(strings.Join(fields, ", "))
	return nil
}

// UpdateOrderStatusRequest is the body of PUT /orders/{id}
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// ProductInput carries catalog writes. Nil fields are left untouched on
// update; on create the required fields are enforced by validation.
type ProductInput struct {
	Name          *string          `json:"name" form:"name" validate:"omitempty,max=255"`
	Description   *string          `json:"description" form:"description"`
	Price         *decimal.Decimal `json:"price" form:"price" validate:"omitempty,gte=0"`
	OriginalPrice *decimal.Decimal `json:"original_price" form:"original_price" validate:"omitempty,gte=0"`
	Category      *string          `json:"category" form:"category" validate:"omitempty,max=255"`
	Stock         *int             `json:"stock" form:"stock" validate:"omitempty,gte=0"`
	Rating        *string          `json:"rating" form:"rating"`
	AboutProduct  StringList       `json:"about_product" form:"about_product"`
	ImageURL      *string          `json:"image_url" form:"image_url"`
}

// StringList accepts a JSON array of strings or a single comma-separated
// string, which is split and trimmed.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = SplitList(s)
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// SplitList splits a comma-separated string, dropping blank entries.
func SplitList(s string) StringList {
	out := StringList{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// SellerLoginRequest is the body of POST /seller/login. Seller accounts may
// use single-label domains such as admin@admin, so the address is checked
// with the mailbox rule rather than email.
type SellerLoginRequest struct {
	Email    string `json:"email" validate:"required,mailbox"`
	Password string `json:"password" validate:"required"`
}
