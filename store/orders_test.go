package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"storefront-api/database"
	"storefront-api/models"
)

func TestCreateOrder_TotalIncludesShipping(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()

	// Stock check for the single line item
	mock.ExpectQuery("SELECT stock_quantity FROM product_variants").
		WithArgs(int64(1), "M").
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(5))

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(7, time.Now()))

	mock.ExpectQuery("INSERT INTO order_items").
		WithArgs(int64(7), int64(1), "Basic Tee", "M", 2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	mock.ExpectCommit()

	order, err := CreateOrder(context.Background(), db, CreateOrderParams{
		CustomerName:   "Ivan Petrov",
		CustomerEmail:  "ivan@example.com",
		Address:        "ul. Vitosha 1",
		City:           "Sofia",
		PostalCode:     "1000",
		ShippingMethod: "address",
		ShippingCost:   decimal.NewFromFloat(8.99),
		Items: []LineItem{
			{ProductID: 1, Name: "Basic Tee", Size: "M", Quantity: 2, Price: decimal.NewFromFloat(25.00)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if got := order.TotalAmount.StringFixed(2); got != "58.99" {
		t.Errorf("Expected total 58.99, got %s", got)
	}
	if order.Status != models.OrderStatusPendingPayment {
		t.Errorf("Expected status pending_payment, got %s", order.Status)
	}
	if len(order.Items) != 1 {
		t.Errorf("Expected 1 order item, got %d", len(order.Items))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM product_variants").
		WithArgs(int64(1), "M").
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(1))
	mock.ExpectRollback()

	_, err = CreateOrder(context.Background(), db, CreateOrderParams{
		CustomerName:  "Ivan Petrov",
		CustomerEmail: "ivan@example.com",
		ShippingCost:  decimal.NewFromFloat(5.99),
		Items: []LineItem{
			{ProductID: 1, Name: "Basic Tee", Size: "M", Quantity: 2, Price: decimal.NewFromFloat(25.00)},
		},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductName != "Basic Tee" || stockErr.Size != "M" || stockErr.Available != 1 {
		t.Errorf("Unexpected error details: %+v", stockErr)
	}
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected error to unwrap to ErrInsufficientStock")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestCreateOrder_UnknownVariant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM product_variants").
		WithArgs(int64(1), "XXL").
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}))
	mock.ExpectRollback()

	_, err = CreateOrder(context.Background(), db, CreateOrderParams{
		CustomerName:  "Ivan Petrov",
		CustomerEmail: "ivan@example.com",
		Items: []LineItem{
			{ProductID: 1, Name: "Basic Tee", Size: "XXL", Quantity: 1, Price: decimal.NewFromFloat(25.00)},
		},
	})

	var variantErr *UnknownVariantError
	if !errors.As(err, &variantErr) {
		t.Fatalf("Expected UnknownVariantError, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmOrderPayment_DecrementsStockOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}).
			AddRow(7, "ORD-AB12CD34", "Ivan Petrov", "ivan@example.com", "58.99", "pending_payment"))

	mock.ExpectQuery("SELECT product_id, size, quantity FROM order_items").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "size", "quantity"}).
			AddRow(1, "M", 2))

	mock.ExpectQuery("SELECT stock_quantity FROM product_variants").
		WithArgs(int64(1), "M").
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(5))

	mock.ExpectExec("UPDATE product_variants SET stock_quantity").
		WithArgs(int64(1), "M", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(7), models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := ConfirmOrderPayment(context.Background(), db, "pi_123")
	if err != nil {
		t.Fatalf("ConfirmOrderPayment failed: %v", err)
	}

	if result.AlreadyFinal {
		t.Error("Expected first confirmation to not be AlreadyFinal")
	}
	if result.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", result.Status)
	}
	if result.OrderNumber != "ORD-AB12CD34" {
		t.Errorf("Unexpected order number: %s", result.OrderNumber)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// The second path to reach a confirmed order (webhook after polling, or a
// webhook retry) must see the advanced status and leave inventory alone.
func TestConfirmOrderPayment_SecondCallIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}).
			AddRow(7, "ORD-AB12CD34", "Ivan Petrov", "ivan@example.com", "58.99", "pending"))
	mock.ExpectCommit()

	result, err := ConfirmOrderPayment(context.Background(), db, "pi_123")
	if err != nil {
		t.Fatalf("ConfirmOrderPayment failed: %v", err)
	}

	if !result.AlreadyFinal {
		t.Error("Expected AlreadyFinal for already confirmed order")
	}
	if result.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", result.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// A shortfall discovered at confirmation time clamps stock at zero and marks
// the order needs_review; the payment already succeeded so the order must not
// fail.
func TestConfirmOrderPayment_ShortfallMarksNeedsReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_456").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}).
			AddRow(8, "ORD-EF56GH78", "Maria Ivanova", "maria@example.com", "33.99", "pending_payment"))

	mock.ExpectQuery("SELECT product_id, size, quantity FROM order_items").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "size", "quantity"}).
			AddRow(2, "L", 3))

	// Only 1 left: decrement clamps at zero
	mock.ExpectQuery("SELECT stock_quantity FROM product_variants").
		WithArgs(int64(2), "L").
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(1))

	mock.ExpectExec("UPDATE product_variants SET stock_quantity").
		WithArgs(int64(2), "L", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(8), models.OrderStatusNeedsReview).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := ConfirmOrderPayment(context.Background(), db, "pi_456")
	if err != nil {
		t.Fatalf("ConfirmOrderPayment failed: %v", err)
	}

	if result.Status != models.OrderStatusNeedsReview {
		t.Errorf("Expected status needs_review, got %s", result.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmOrderPayment_UnknownIntent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}))
	mock.ExpectRollback()

	_, err = ConfirmOrderPayment(context.Background(), db, "pi_missing")
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestFailOrderPayment_CancelsWithoutTouchingStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_789").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}).
			AddRow(9, "ORD-IJ90KL12", "Georgi Dimitrov", "georgi@example.com", "45.00", "pending_payment"))

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(9), models.OrderStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := FailOrderPayment(context.Background(), db, "pi_789")
	if err != nil {
		t.Fatalf("FailOrderPayment failed: %v", err)
	}

	if result.Status != models.OrderStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", result.Status)
	}
	if result.AlreadyFinal {
		t.Error("Expected first cancellation to not be AlreadyFinal")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestFailOrderPayment_ConfirmedOrderUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// A late payment_failed webhook must not cancel an already confirmed order.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, order_number, customer_name, customer_email, total_amount, status").
		WithArgs("pi_789").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "customer_name", "customer_email", "total_amount", "status"}).
			AddRow(9, "ORD-IJ90KL12", "Georgi Dimitrov", "georgi@example.com", "45.00", "pending"))
	mock.ExpectCommit()

	result, err := FailOrderPayment(context.Background(), db, "pi_789")
	if err != nil {
		t.Fatalf("FailOrderPayment failed: %v", err)
	}

	if !result.AlreadyFinal {
		t.Error("Expected AlreadyFinal for confirmed order")
	}
	if result.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", result.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
