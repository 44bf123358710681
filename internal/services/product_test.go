package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/freshmart/grocery-store/internal/metrics"
	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/storage"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productByIDQuery = "FROM products p WHERE p.id = ?"

type fakeImages struct {
	saved     []string
	deleted   []string
	saveErr   error
	deleteErr error
}

func (f *fakeImages) Save(up *storage.Upload) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	url := storage.URLPrefix + "uploads/" + up.Filename
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Delete(url string) error {
	f.deleted = append(f.deleted, url)
	return f.deleteErr
}

func newProductService(t *testing.T) (*ProductService, sqlmock.Sqlmock, *fakeImages) {
	t.Helper()
	database, mock := newMockDB(t)
	images := &fakeImages{}
	return NewProductService(database, metrics.NewNoop(), images), mock, images
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func withImage(values []driver.Value, url string) []driver.Value {
	out := append([]driver.Value{}, values...)
	out[9] = url
	return out
}

func validInput() models.ProductInput {
	return models.ProductInput{
		Name:         strPtr(" Apple "),
		Price:        price("1.99"),
		Category:     strPtr("Fruit"),
		Stock:        intPtr(10),
		AboutProduct: []string{" crisp ", "sweet"},
	}
}

func TestListProducts(t *testing.T) {
	svc, mock, _ := newProductService(t)

	mock.ExpectQuery(q("FROM products p ORDER BY p.id")).
		WillReturnRows(productRows(productValues(1, "Apple", "1.99"), productValues(2, "Pear", "2.49")))

	products, err := svc.ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Pear", products[1].Name)
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("2.49")))
	assert.Nil(t, products[0].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductNotFound(t *testing.T) {
	svc, mock, _ := newProductService(t)
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(42)).WillReturnRows(productRows())

	_, err := svc.GetProduct(context.Background(), 42)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductRequiresFields(t *testing.T) {
	svc, mock, _ := newProductService(t)

	_, err := svc.CreateProduct(context.Background(), models.ProductInput{Name: strPtr("  "), Stock: intPtr(-1)}, nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.ByField()
	for _, f := range []string{"name", "price", "category", "stock"} {
		assert.Contains(t, fields, f)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductWithUpload(t *testing.T) {
	svc, mock, images := newProductService(t)

	mock.ExpectExec(q("INSERT INTO products")).
		WithArgs("Apple", nil, "1.99", nil, "Fruit", 10, nil, `["crisp","sweet"]`, "/storage/uploads/apple.png").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(3)).
		WillReturnRows(productRows(withImage(productValues(3, "Apple", "1.99"), "/storage/uploads/apple.png")))

	p, err := svc.CreateProduct(context.Background(), validInput(), &storage.Upload{Filename: "apple.png", Size: 4, Body: strings.NewReader("fake")})

	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, "/storage/uploads/apple.png", *p.ImageURL)
	assert.Equal(t, []string{"/storage/uploads/apple.png"}, images.saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductImageURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "relative path", in: "images/apple.png", want: "/storage/images/apple.png"},
		{name: "extra slashes", in: "//images/apple.png", want: "/storage/images/apple.png"},
		{name: "already public", in: "/storage/uploads/apple.png", want: "/storage/uploads/apple.png"},
		{name: "absolute url", in: "https://cdn.example.com/apple.png", want: "https://cdn.example.com/apple.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newProductService(t)
			in := validInput()
			in.ImageURL = strPtr(tt.in)

			mock.ExpectExec(q("INSERT INTO products")).
				WithArgs("Apple", nil, "1.99", nil, "Fruit", 10, nil, `["crisp","sweet"]`, tt.want).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectQuery(q(productByIDQuery)).WillReturnRows(productRows(withImage(productValues(1, "Apple", "1.99"), tt.want)))

			_, err := svc.CreateProduct(context.Background(), in, nil)

			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateProductRejectsBadImage(t *testing.T) {
	svc, mock, images := newProductService(t)
	images.saveErr = storage.ErrUnsupportedType

	_, err := svc.CreateProduct(context.Background(), validInput(), &storage.Upload{Filename: "notes.txt"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.ByField(), "image")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductReleasesImageOnInsertFailure(t *testing.T) {
	svc, mock, images := newProductService(t)
	mock.ExpectExec(q("INSERT INTO products")).WillReturnError(errors.New("connection reset"))

	_, err := svc.CreateProduct(context.Background(), validInput(), &storage.Upload{Filename: "apple.png"})

	require.Error(t, err)
	assert.Equal(t, images.saved, images.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductPartial(t *testing.T) {
	svc, mock, images := newProductService(t)

	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).WillReturnRows(productRows(productValues(1, "Apple", "1.99")))
	mock.ExpectExec(q("UPDATE products SET price = ?, stock = ? WHERE id = ?")).
		WithArgs("3.50", 4, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).WillReturnRows(productRows(productValues(1, "Apple", "3.50")))

	p, err := svc.UpdateProduct(context.Background(), 1, models.ProductInput{Price: price("3.5"), Stock: intPtr(4)}, nil)

	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("3.50")))
	assert.Empty(t, images.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductReplacesImage(t *testing.T) {
	svc, mock, images := newProductService(t)
	old := "/storage/uploads/old.png"

	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).
		WillReturnRows(productRows(withImage(productValues(1, "Apple", "1.99"), old)))
	mock.ExpectExec(q("UPDATE products SET image_url = ? WHERE id = ?")).
		WithArgs("/storage/uploads/new.png", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).
		WillReturnRows(productRows(withImage(productValues(1, "Apple", "1.99"), "/storage/uploads/new.png")))

	_, err := svc.UpdateProduct(context.Background(), 1, models.ProductInput{}, &storage.Upload{Filename: "new.png"})

	require.NoError(t, err)
	assert.Equal(t, []string{old}, images.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductWithoutChanges(t *testing.T) {
	svc, mock, _ := newProductService(t)
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).WillReturnRows(productRows(productValues(1, "Apple", "1.99")))

	p, err := svc.UpdateProduct(context.Background(), 1, models.ProductInput{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Apple", p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductNotFound(t *testing.T) {
	svc, mock, _ := newProductService(t)
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(9)).WillReturnRows(productRows())

	_, err := svc.UpdateProduct(context.Background(), 9, models.ProductInput{Name: strPtr("Kiwi")}, nil)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name        string
		deleteErr   error
		imageErr    error
		wantErr     error
		wantRelease bool
	}{
		{name: "deletes row then image", wantRelease: true},
		{name: "image cleanup failure is ignored", imageErr: errors.New("read-only fs"), wantRelease: true},
		{name: "referenced by orders", deleteErr: &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}, wantErr: ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc, mock, images := newProductService(t)
			images.deleteErr = tt.imageErr
			url := "/storage/uploads/apple.png"

			mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(1)).
				WillReturnRows(productRows(withImage(productValues(1, "Apple", "1.99"), url)))
			exec := mock.ExpectExec(q("DELETE FROM products WHERE id = ?")).WithArgs(int64(1))
			if tt.deleteErr != nil {
				exec.WillReturnError(tt.deleteErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			// Act
			err := svc.DeleteProduct(context.Background(), 1)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantRelease {
				assert.Equal(t, []string{url}, images.deleted)
			} else {
				assert.Empty(t, images.deleted)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteProductNotFound(t *testing.T) {
	svc, mock, images := newProductService(t)
	mock.ExpectQuery(q(productByIDQuery)).WithArgs(int64(5)).WillReturnRows(productRows())

	err := svc.DeleteProduct(context.Background(), 5)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, images.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
