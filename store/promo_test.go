package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func promoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"discount_type", "discount_value", "min_order_amount", "max_uses", "used_count", "active", "expires_at"})
}

func TestValidatePromoCode_PercentDiscount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT discount_type, discount_value, min_order_amount, max_uses, used_count, active, expires_at").
		WithArgs("SUMMER10").
		WillReturnRows(promoRows().AddRow("percent", "10", "50", 0, 0, true, nil))

	result, err := ValidatePromoCode(context.Background(), db, "SUMMER10", decimal.NewFromFloat(100))
	if err != nil {
		t.Fatalf("ValidatePromoCode failed: %v", err)
	}

	if !result.Valid {
		t.Fatalf("Expected valid code, got message %q", result.Message)
	}
	if got := result.DiscountAmount.StringFixed(2); got != "10.00" {
		t.Errorf("Expected discount 10.00, got %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestValidatePromoCode_NormalizesInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// Lowercase and padded input still hits the canonical code
	mock.ExpectQuery("SELECT discount_type, discount_value, min_order_amount, max_uses, used_count, active, expires_at").
		WithArgs("SUMMER10").
		WillReturnRows(promoRows().AddRow("fixed", "15", "0", 0, 0, true, nil))

	result, err := ValidatePromoCode(context.Background(), db, "  summer10 ", decimal.NewFromFloat(100))
	if err != nil {
		t.Fatalf("ValidatePromoCode failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected valid code, got message %q", result.Message)
	}
	if got := result.DiscountAmount.StringFixed(2); got != "15.00" {
		t.Errorf("Expected discount 15.00, got %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestValidatePromoCode_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		rows        func() *sqlmock.Rows
		orderAmount float64
		wantMessage string
	}{
		{
			name:        "unknown code",
			rows:        promoRows,
			orderAmount: 100,
			wantMessage: "Невалиден промо код",
		},
		{
			name: "inactive",
			rows: func() *sqlmock.Rows {
				return promoRows().AddRow("percent", "10", "0", 0, 0, false, nil)
			},
			orderAmount: 100,
			wantMessage: "Промо кодът вече не е активен",
		},
		{
			name: "expired",
			rows: func() *sqlmock.Rows {
				return promoRows().AddRow("percent", "10", "0", 0, 0, true, time.Now().Add(-time.Hour))
			},
			orderAmount: 100,
			wantMessage: "Промо кодът е изтекъл",
		},
		{
			name: "exhausted",
			rows: func() *sqlmock.Rows {
				return promoRows().AddRow("percent", "10", "0", 100, 100, true, nil)
			},
			orderAmount: 100,
			wantMessage: "Промо кодът е изчерпан",
		},
		{
			name: "below minimum",
			rows: func() *sqlmock.Rows {
				return promoRows().AddRow("percent", "10", "50", 0, 0, true, nil)
			},
			orderAmount: 30,
			wantMessage: "Минималната сума за този код е 50.00 лв.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("Failed to create mock database: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery("SELECT discount_type, discount_value, min_order_amount, max_uses, used_count, active, expires_at").
				WithArgs("SUMMER10").
				WillReturnRows(tt.rows())

			result, err := ValidatePromoCode(context.Background(), db, "SUMMER10", decimal.NewFromFloat(tt.orderAmount))
			if err != nil {
				t.Fatalf("ValidatePromoCode failed: %v", err)
			}

			if result.Valid {
				t.Error("Expected invalid code")
			}
			if result.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, result.Message)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Database expectations were not met: %v", err)
			}
		})
	}
}

func TestValidatePromoCode_FixedDiscountClampedToOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT discount_type, discount_value, min_order_amount, max_uses, used_count, active, expires_at").
		WithArgs("WELCOME20").
		WillReturnRows(promoRows().AddRow("fixed", "20", "0", 0, 0, true, nil))

	result, err := ValidatePromoCode(context.Background(), db, "WELCOME20", decimal.NewFromFloat(12.50))
	if err != nil {
		t.Fatalf("ValidatePromoCode failed: %v", err)
	}

	if !result.Valid {
		t.Fatalf("Expected valid code, got message %q", result.Message)
	}
	if got := result.DiscountAmount.StringFixed(2); got != "12.50" {
		t.Errorf("Expected discount clamped to 12.50, got %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
