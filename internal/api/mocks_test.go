package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/freshmart/grocery-store/pkg/config"
	"github.com/shopspring/decimal"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// MockProductRepo records the last call and returns canned results
type MockProductRepo struct {
	Products []models.Product
	Err      error

	lastID       int64
	lastInput    models.ProductInput
	lastImage    string
	lastImageLen int
	deleted      bool
}

func (m *MockProductRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	return m.Products, m.Err
}

func (m *MockProductRepo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.lastID = id
	if m.Err != nil {
		return nil, m.Err
	}
	return &m.Products[0], nil
}

func (m *MockProductRepo) CreateProduct(ctx context.Context, in models.ProductInput, image *storage.Upload) (*models.Product, error) {
	m.record(in, image)
	if m.Err != nil {
		return nil, m.Err
	}
	return &m.Products[0], nil
}

func (m *MockProductRepo) UpdateProduct(ctx context.Context, id int64, in models.ProductInput, image *storage.Upload) (*models.Product, error) {
	m.lastID = id
	m.record(in, image)
	if m.Err != nil {
		return nil, m.Err
	}
	return &m.Products[0], nil
}

func (m *MockProductRepo) DeleteProduct(ctx context.Context, id int64) error {
	m.lastID = id
	m.deleted = m.Err == nil
	return m.Err
}

func (m *MockProductRepo) record(in models.ProductInput, image *storage.Upload) {
	m.lastInput = in
	if image != nil {
		m.lastImage = image.Filename
		b, _ := io.ReadAll(image.Body)
		m.lastImageLen = len(b)
	}
}

// MockOrderRepo records the last call and returns canned results
type MockOrderRepo struct {
	Order  *models.Order
	Orders []models.Order
	Err    error

	called      string
	lastRequest models.PlaceOrderRequest
	lastID      int64
	lastStatus  string
}

func (m *MockOrderRepo) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (*models.Order, error) {
	m.called = "PlaceOrder"
	m.lastRequest = req
	return m.Order, m.Err
}

func (m *MockOrderRepo) ListOrders(ctx context.Context) ([]models.Order, error) {
	m.called = "ListOrders"
	return m.Orders, m.Err
}

func (m *MockOrderRepo) SellerOrders(ctx context.Context) ([]models.Order, error) {
	m.called = "SellerOrders"
	return m.Orders, m.Err
}

func (m *MockOrderRepo) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	m.called = "GetOrder"
	m.lastID = id
	return m.Order, m.Err
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	m.called = "UpdateStatus"
	m.lastID = id
	m.lastStatus = status
	return m.Order, m.Err
}

// MockUserRepo returns canned users
type MockUserRepo struct {
	User *models.User
	Err  error

	lastRequest models.CreateUserRequest
}

func (m *MockUserRepo) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	m.lastRequest = req
	return m.User, m.Err
}

func (m *MockUserRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return m.User, m.Err
}

// MockSellerAuth returns a canned result
type MockSellerAuth struct {
	Err error

	lastRequest models.SellerLoginRequest
}

func (m *MockSellerAuth) Authenticate(ctx context.Context, req models.SellerLoginRequest) (*models.Seller, error) {
	m.lastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.Seller{ID: 1, Email: req.Email}, nil
}

type testDeps struct {
	products *MockProductRepo
	orders   *MockOrderRepo
	users    *MockUserRepo
	sellers  *MockSellerAuth
	cfg      *config.Config
}

func (d *testDeps) handler() http.Handler {
	if d.products == nil {
		d.products = &MockProductRepo{}
	}
	if d.orders == nil {
		d.orders = &MockOrderRepo{}
	}
	if d.users == nil {
		d.users = &MockUserRepo{}
	}
	if d.sellers == nil {
		d.sellers = &MockSellerAuth{}
	}
	if d.cfg == nil {
		d.cfg = &config.Config{AllowedOrigin: "http://localhost:3000"}
	}
	uploads := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image:" + r.URL.Path))
	})
	app := NewApp(d.cfg, metrics.NewNoop(), d.products, d.orders, d.users, d.sellers, uploads, nil)
	return app.Handler()
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleProduct() models.Product {
	desc := "Crisp red apple"
	original := decimal.RequireFromString("2.49")
	return models.Product{
		ID:            7,
		Name:          "Apple",
		Description:   &desc,
		Price:         decimal.RequireFromString("1.99"),
		OriginalPrice: &original,
		Category:      "Fruit",
		Stock:         25,
		AboutProduct:  []string{"Organic"},
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
	}
}

func sampleOrder() *models.Order {
	p := sampleProduct()
	return &models.Order{
		ID:              100,
		UserID:          1,
		CustomerName:    "Jane",
		CustomerEmail:   "jane@example.com",
		ShippingAddress: "1 Main St",
		Status:          models.StatusPending,
		TotalAmount:     decimal.RequireFromString("20.00"),
		OrderDate:       testTime,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
		Items: []models.OrderItem{{
			ID: 1, OrderID: 100, ProductID: 7, Quantity: 2,
			Price: decimal.RequireFromString("10.00"), CreatedAt: testTime, Product: &p,
		}},
		User: &models.User{ID: 1, Name: "Jane", Email: "jane@example.com", CreatedAt: testTime},
	}
}
