package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PromoResult struct {
	Valid          bool
	DiscountAmount decimal.Decimal
	Message        string
}

// ValidatePromoCode checks a code against its business rules and computes the
// discount for the given order amount. Business rejections come back as
// Valid=false with a customer-facing message, not as an error.
func ValidatePromoCode(ctx context.Context, db *sql.DB, code string, orderAmount decimal.Decimal) (*PromoResult, error) {
	return validatePromo(ctx, db, code, orderAmount)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func validatePromoTx(ctx context.Context, tx *sql.Tx, code string, orderAmount decimal.Decimal) (*PromoResult, error) {
	return validatePromo(ctx, tx, code, orderAmount)
}

func validatePromo(ctx context.Context, q querier, code string, orderAmount decimal.Decimal) (*PromoResult, error) {
	var (
		discountType  string
		discountValue decimal.Decimal
		minOrder      decimal.Decimal
		maxUses       int
		usedCount     int
		active        bool
		expiresAt     sql.NullTime
	)

	err := q.QueryRowContext(ctx,
		`SELECT discount_type, discount_value, min_order_amount, max_uses, used_count, active, expires_at
		 FROM promo_codes WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code))).Scan(
		&discountType, &discountValue, &minOrder, &maxUses, &usedCount, &active, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &PromoResult{Valid: false, Message: "Невалиден промо код"}, nil
		}
		return nil, fmt.Errorf("lookup promo code: %w", err)
	}

	switch {
	case !active:
		return &PromoResult{Valid: false, Message: "Промо кодът вече не е активен"}, nil
	case expiresAt.Valid && expiresAt.Time.Before(time.Now()):
		return &PromoResult{Valid: false, Message: "Промо кодът е изтекъл"}, nil
	case maxUses > 0 && usedCount >= maxUses:
		return &PromoResult{Valid: false, Message: "Промо кодът е изчерпан"}, nil
	case orderAmount.LessThan(minOrder):
		return &PromoResult{
			Valid:   false,
			Message: fmt.Sprintf("Минималната сума за този код е %s лв.", minOrder.StringFixed(2)),
		}, nil
	}

	var discount decimal.Decimal
	if discountType == "percent" {
		discount = orderAmount.Mul(discountValue).Div(decimal.NewFromInt(100)).Round(2)
	} else {
		discount = discountValue
	}
	if discount.GreaterThan(orderAmount) {
		discount = orderAmount
	}

	return &PromoResult{Valid: true, DiscountAmount: discount}, nil
}
