package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/freshmart/grocery-store/internal/db"
	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const orderColumns = "o.id, o.user_id, o.customer_name, o.customer_email, o.shipping_address, o.status, o.total_amount, o.order_date, o.created_at, o.updated_at"

// OrderService handles order placement, status changes and order reads
type OrderService struct {
	db             *db.DB
	metrics        *metrics.AppMetrics
	validate       *validator.Validate
	catalogPricing bool
}

// NewOrderService creates a new order service. With catalogPricing set, a
// caller-supplied line price is ignored and the product's current price is
// always charged.
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics, catalogPricing bool) *OrderService {
	return &OrderService{
		db:             db,
		metrics:        metrics,
		validate:       newValidator(),
		catalogPricing: catalogPricing,
	}
}

// ValidatePlaceOrder reports every constraint req violates without touching
// the database.
func ValidatePlaceOrder(req models.PlaceOrderRequest) error {
	normalizeOrder(&req)
	return validateStruct(requestValidator, req)
}

func normalizeOrder(req *models.PlaceOrderRequest) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.ShippingAddress = models.Address(strings.TrimSpace(string(req.ShippingAddress)))
}

type pricedLine struct {
	productID int64
	quantity  int
	price     decimal.Decimal
}

// PlaceOrder validates the request and writes the order with all of its
// lines in a single transaction. Either every row is written or none is.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (*models.Order, error) {
	normalizeOrder(&req)
	if err := validateStruct(s.validate, req); err != nil {
		s.recordFailure(ctx, "validation")
		return nil, err
	}

	var (
		orderID int64
		total   decimal.Decimal
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, req.UserID); err != nil {
			return err
		}

		lines, err := s.priceLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		total = decimal.Zero
		for _, l := range lines {
			total = total.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
		}

		start := time.Now()
		orderQuery := `INSERT INTO orders (user_id, customer_name, customer_email, shipping_address, status, total_amount, order_date)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, orderQuery,
			req.UserID, req.CustomerName, req.CustomerEmail, string(req.ShippingAddress),
			string(models.StatusPending), total.StringFixed(2), time.Now().UTC(),
		)
		s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		if orderID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get order ID: %w", err)
		}

		return s.insertItems(ctx, tx, orderID, lines)
	})

	if err != nil {
		var missing *MissingReferenceError
		if errors.As(err, &missing) {
			s.recordFailure(ctx, "missing_reference")
			log.Printf("[ORDER] Rejected order for user %d: %v", req.UserID, err)
			return nil, err
		}
		s.recordFailure(ctx, "storage")
		log.Printf("[ORDER] Failed to create order for user %d: %v", req.UserID, err)
		return nil, &OrderCreationError{Cause: err}
	}

	revenue := total.InexactFloat64()
	attrs := s.metrics.Attrs(attribute.String("order_status", string(models.StatusPending)))
	s.metrics.OrdersCreated.Add(ctx, 1, attrs)
	s.metrics.RevenueTotal.Add(ctx, revenue, attrs)
	s.metrics.OrderItemsPerOrder.Record(ctx, int64(len(req.Items)), attrs)

	log.Printf("[ORDER] Order created: order_id=%d, user_id=%d, items=%d, total=%s",
		orderID, req.UserID, len(req.Items), total.StringFixed(2))

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d was created but could not be loaded: %w", orderID, err)
	}
	return order, nil
}

func (s *OrderService) requireUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)"
	var exists bool
	err := tx.QueryRowContext(ctx, query, userID).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return &MissingReferenceError{Entity: "user", Field: "user_id", ID: userID}
	}
	return nil
}

// priceLines resolves every requested product and fixes the unit price each
// line is charged at. Prices are rounded to cents so the stored lines sum to
// the stored total.
func (s *OrderService) priceLines(ctx context.Context, tx *sql.Tx, items models.OrderLines) ([]pricedLine, error) {
	query := "SELECT price FROM products WHERE id = ?"
	catalog := make(map[int64]decimal.Decimal, len(items))
	lines := make([]pricedLine, 0, len(items))

	for i, item := range items {
		price, seen := catalog[item.ProductID]
		if !seen {
			start := time.Now()
			err := tx.QueryRowContext(ctx, query, item.ProductID).Scan(&price)
			s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &MissingReferenceError{
					Entity: "product",
					Field:  fmt.Sprintf("items[%d].product_id", i),
					ID:     item.ProductID,
				}
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up product %d: %w", item.ProductID, err)
			}
			catalog[item.ProductID] = price
		}

		if item.Price != nil && !s.catalogPricing {
			price = *item.Price
		}
		lines = append(lines, pricedLine{
			productID: item.ProductID,
			quantity:  item.Quantity,
			price:     price.Round(2),
		})
	}

	return lines, nil
}

func (s *OrderService) insertItems(ctx context.Context, tx *sql.Tx, orderID int64, lines []pricedLine) error {
	rows := make([]string, len(lines))
	args := make([]interface{}, 0, len(lines)*4)
	for i, l := range lines {
		rows[i] = "(" + placeholders(4) + ")"
		args = append(args, orderID, l.productID, l.quantity, l.price.StringFixed(2))
	}

	start := time.Now()
	query := "INSERT INTO order_items (order_id, product_id, quantity, price) VALUES " + strings.Join(rows, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// UpdateStatus sets a new status on an existing order. Unknown tokens are
// rejected before anything is written.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	next := models.OrderStatus(status)
	if !next.Valid() {
		return nil, invalid("status", "must be one of: "+strings.Join(statusTokens(), ", "))
	}

	start := time.Now()
	query := "UPDATE orders SET status = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, string(next), id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	// MySQL reports zero affected rows when the status is unchanged.
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		exists, err := s.orderExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
	}

	s.metrics.OrderStatusUpdates.Add(ctx, 1, s.metrics.Attrs(attribute.String("order_status", string(next))))
	log.Printf("[ORDER] Order status updated: order_id=%d, status=%s", id, next)

	return s.GetOrder(ctx, id)
}

func (s *OrderService) orderExists(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)"
	var exists bool
	err := s.db.QueryRowContext(ctx, query, id).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return false, fmt.Errorf("failed to look up order: %w", err)
	}
	return exists, nil
}

// GetOrder returns one order with its items, their products and the user.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	orders, err := s.queryOrders(ctx, "WHERE o.id = ?", "o.id", true, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return &orders[0], nil
}

// ListOrders returns every order with items, products and users, oldest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, "", "o.id ASC", true)
}

// SellerOrders returns every order with items and products, newest first.
func (s *OrderService) SellerOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, "", "o.created_at DESC, o.id DESC", false)
}

func (s *OrderService) queryOrders(ctx context.Context, where, orderBy string, withUser bool, args ...interface{}) ([]models.Order, error) {
	start := time.Now()
	query := "SELECT " + orderColumns + " FROM orders o"
	if where != "" {
		query += " " + where
	}
	query += " ORDER BY " + orderBy
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.CustomerEmail, &o.ShippingAddress,
			&status, &o.TotalAmount, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = models.OrderStatus(status)
		o.Items = []models.OrderItem{}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}

	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	if withUser {
		if err := s.loadUsers(ctx, orders); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderService) loadItems(ctx context.Context, orders []models.Order) error {
	index := make(map[int64]int, len(orders))
	ids := make([]interface{}, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	start := time.Now()
	query := fmt.Sprintf(`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.created_at, %s
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (%s)
		ORDER BY oi.id`, productSelectList("p"), placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, ids...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var d productDest
		dest := append([]interface{}{
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt,
		}, d.targets()...)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		p, err := d.product()
		if err != nil {
			return err
		}
		item.Product = &p

		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (s *OrderService) loadUsers(ctx context.Context, orders []models.Order) error {
	var ids []interface{}
	seen := make(map[int64]bool)
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			ids = append(ids, o.UserID)
		}
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT id, name, email, created_at FROM users WHERE id IN (%s)", placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, ids...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make(map[int64]*models.User, len(ids))
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read users: %w", err)
	}

	for i := range orders {
		orders[i].User = users[orders[i].UserID]
	}
	return nil
}

func (s *OrderService) recordFailure(ctx context.Context, reason string) {
	s.metrics.OrderFailures.Add(ctx, 1, s.metrics.Attrs(attribute.String("reason", reason)))
}

func statusTokens() []string {
	tokens := make([]string, len(models.OrderStatuses))
	for i, st := range models.OrderStatuses {
		tokens[i] = string(st)
	}
	return tokens
}
