package services

import (
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/freshmart/grocery-store/internal/db"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	orderRowColumns = []string{
		"id", "user_id", "customer_name", "customer_email", "shipping_address",
		"status", "total_amount", "order_date", "created_at", "updated_at",
	}
	itemRowColumns = append([]string{"id", "order_id", "product_id", "quantity", "price", "created_at"}, productColumns...)
	userRowColumns = []string{"id", "name", "email", "created_at"}
)

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db.Wrap(sqlDB), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func productValues(id int64, name, price string) []driver.Value {
	return []driver.Value{
		id, name, nil, price, nil, "Fruit",
		int64(10), nil, `["Fresh"]`, nil, fixedTime, fixedTime,
	}
}

func productRows(products ...[]driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows(productColumns)
	for _, p := range products {
		rows.AddRow(p...)
	}
	return rows
}

func orderValues(id, userID int64, status, total string) []driver.Value {
	return []driver.Value{
		id, userID, "Jane", "jane@example.com", "1 Main St",
		status, total, fixedTime, fixedTime, fixedTime,
	}
}

func itemValues(id, orderID, productID int64, qty int64, price string) []driver.Value {
	return append([]driver.Value{id, orderID, productID, qty, price, fixedTime},
		productValues(productID, "Product", "1.00")...)
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

// expectOrderLoad registers the three reads GetOrder issues for one order.
func expectOrderLoad(mock sqlmock.Sqlmock, order []driver.Value, items ...[]driver.Value) {
	mock.ExpectQuery(q("FROM orders o WHERE o.id = ?")).
		WithArgs(order[0]).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(order...))

	itemRows := sqlmock.NewRows(itemRowColumns)
	for _, it := range items {
		itemRows.AddRow(it...)
	}
	mock.ExpectQuery(q("FROM order_items oi")).WithArgs(order[0]).WillReturnRows(itemRows)

	mock.ExpectQuery(q("FROM users WHERE id IN (?)")).
		WithArgs(order[1]).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(order[1], "Jane", "jane@example.com", fixedTime))
}
