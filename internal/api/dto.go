package api

import (
	"time"

	"github.com/freshmart/grocery-store/internal/models"
)

// Product is the wire shape of a catalog entry
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price"`
	Category      string    `json:"category"`
	Stock         int       `json:"stock"`
	Rating        *string   `json:"rating"`
	AboutProduct  []string  `json:"about_product"`
	ImageURL      *string   `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderItem is one order line with its product
type OrderItem struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Subtotal  float64   `json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
	Product   *Product  `json:"product,omitempty"`
}

// Order is the wire shape of a placed order
type Order struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"user_id"`
	CustomerName    string       `json:"customer_name"`
	CustomerEmail   string       `json:"customer_email"`
	ShippingAddress string       `json:"shipping_address"`
	Status          string       `json:"status"`
	TotalAmount     float64      `json:"total_amount"`
	OrderDate       time.Time    `json:"order_date"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Items           []OrderItem  `json:"items"`
	User            *models.User `json:"user,omitempty"`
}

func toProduct(p models.Product) Product {
	out := Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price.InexactFloat64(),
		Category:     p.Category,
		Stock:        p.Stock,
		Rating:       p.Rating,
		AboutProduct: p.AboutProduct,
		ImageURL:     p.ImageURL,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if out.AboutProduct == nil {
		out.AboutProduct = []string{}
	}
	if p.OriginalPrice != nil {
		op := p.OriginalPrice.InexactFloat64()
		out.OriginalPrice = &op
	}
	return out
}

func toProducts(ps []models.Product) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = toProduct(p)
	}
	return out
}

func toOrder(o models.Order) Order {
	items := make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItem{
			ID:        it.ID,
			OrderID:   it.OrderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
			Subtotal:  it.Subtotal().InexactFloat64(),
			CreatedAt: it.CreatedAt,
		}
		if it.Product != nil {
			p := toProduct(*it.Product)
			items[i].Product = &p
		}
	}

	return Order{
		ID:              o.ID,
		UserID:          o.UserID,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		OrderDate:       o.OrderDate,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
		User:            o.User,
	}
}

func toOrders(os []models.Order) []Order {
	out := make([]Order, len(os))
	for i, o := range os {
		out[i] = toOrder(o)
	}
	return out
}
