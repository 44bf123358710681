package api

import (
	"context"
	"net/http"

	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/middleware"
	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/freshmart/grocery-store/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// ProductProvider is the catalog the handlers serve
type ProductProvider interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput, image *storage.Upload) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in models.ProductInput, image *storage.Upload) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// OrderProvider places and reads orders
type OrderProvider interface {
	PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	SellerOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*models.Order, error)
}

// UserProvider manages customer accounts
type UserProvider interface {
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// SellerAuthenticator checks dashboard credentials
type SellerAuthenticator interface {
	Authenticate(ctx context.Context, req models.SellerLoginRequest) (*models.Seller, error)
}

// App holds application dependencies
type App struct {
	config   *config.Config
	metrics  *metrics.AppMetrics
	products ProductProvider
	orders   OrderProvider
	users    UserProvider
	sellers  SellerAuthenticator
	uploads  http.Handler
	csrfKey  []byte
}

// NewApp creates a new application instance. uploads serves stored images
// under /storage/; csrfKey is only used when CSRF protection is enabled.
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	products ProductProvider,
	orders OrderProvider,
	users UserProvider,
	sellers SellerAuthenticator,
	uploads http.Handler,
	csrfKey []byte,
) *App {
	return &App{
		config:   cfg,
		metrics:  m,
		products: products,
		orders:   orders,
		users:    users,
		sellers:  sellers,
		uploads:  uploads,
		csrfKey:  csrfKey,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))
	if a.config.CSRFEnabled {
		r.Use(middleware.CSRF(a.csrfKey, a.config.AllowedOrigin, http.HandlerFunc(a.csrfFailureHandler)))
	}

	api := r.PathPrefix("/api").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", a.CreateProductHandler).Methods(http.MethodPost)
	api.HandleFunc("/products/{id:[0-9]+}", a.GetProductHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", a.UpdateProductHandler).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/products/{id:[0-9]+}", a.DeleteProductHandler).Methods(http.MethodDelete)

	// Orders
	api.HandleFunc("/orders", a.CreateOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/seller", a.SellerOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", a.GetOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", a.UpdateOrderStatusHandler).Methods(http.MethodPut, http.MethodPatch)

	// Seller dashboard
	api.HandleFunc("/seller/login", a.SellerLoginHandler).Methods(http.MethodPost)

	// Users
	api.HandleFunc("/users", a.CreateUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", a.GetUserHandler).Methods(http.MethodGet)

	api.HandleFunc("/csrf-token", a.CSRFTokenHandler).Methods(http.MethodGet)

	if a.uploads != nil {
		r.PathPrefix("/storage/").Handler(a.uploads).Methods(http.MethodGet, http.MethodHead)
	}

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
}

// Handler returns the complete HTTP handler: CORS, then the body limit, then
// method override around the router.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	a.SetupRoutes(r)
	limited := middleware.BodyLimit(maxBodyBytes)(handlers.HTTPMethodOverrideHandler(r))
	return middleware.CORS(a.config.AllowedOrigin)(limited)
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CSRFTokenHandler handles GET /api/csrf-token. The token is also returned
// in the X-CSRF-Token header.
func (a *App) CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := middleware.CSRFToken(r)
	if token != "" {
		w.Header().Set(middleware.CSRFHeader, token)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"csrf_token": token,
		"enabled":    a.config.CSRFEnabled,
	})
}

func (a *App) csrfFailureHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "CSRF token mismatch.", middleware.CSRFFailureReason(r))
}
