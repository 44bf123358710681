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
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when the email is unknown or the
// password does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// SellerService authenticates dashboard accounts
type SellerService struct {
	db       *db.DB
	metrics  *metrics.AppMetrics
	validate *validator.Validate
}

// NewSellerService creates a new seller service
func NewSellerService(db *db.DB, metrics *metrics.AppMetrics) *SellerService {
	return &SellerService{
		db:       db,
		metrics:  metrics,
		validate: newValidator(),
	}
}

// Authenticate checks the credentials against the stored bcrypt hash. No
// session is created.
func (s *SellerService) Authenticate(ctx context.Context, req models.SellerLoginRequest) (*models.Seller, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	start := time.Now()
	query := "SELECT id, email, password, created_at FROM sellers WHERE email = ?"
	var seller models.Seller
	err := s.db.QueryRowContext(ctx, query, req.Email).Scan(&seller.ID, &seller.Email, &seller.Password, &seller.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "sellers", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		s.recordAttempt(ctx, "rejected")
		log.Printf("[SELLER] Login rejected: unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up seller: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(seller.Password), []byte(req.Password)); err != nil {
		s.recordAttempt(ctx, "rejected")
		log.Printf("[SELLER] Login rejected: seller_id=%d", seller.ID)
		return nil, ErrInvalidCredentials
	}

	s.recordAttempt(ctx, "success")
	log.Printf("[SELLER] Login successful: seller_id=%d", seller.ID)
	return &seller, nil
}

func (s *SellerService) recordAttempt(ctx context.Context, result string) {
	s.metrics.SellerLoginAttempts.Add(ctx, 1, s.metrics.Attrs(attribute.String("result", result)))
}
