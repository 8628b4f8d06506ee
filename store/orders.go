package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-api/database"
	"storefront-api/models"
)

// InsufficientStockError identifies the offending line item so the handler
// can name it in the client error.
type InsufficientStockError struct {
	ProductName string
	Size        string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q size %s (available %d)", e.ProductName, e.Size, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return database.ErrInsufficientStock }

type UnknownVariantError struct {
	ProductName string
	Size        string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("no variant for %q size %s", e.ProductName, e.Size)
}

func (e *UnknownVariantError) Unwrap() error { return database.ErrVariantNotFound }

type CreateOrderParams struct {
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Address        string
	City           string
	PostalCode     string
	ShippingMethod string
	ShippingCost   decimal.Decimal
	PromoCode      string
	Items          []LineItem
}

type LineItem struct {
	ProductID int64
	Name      string
	Size      string
	Quantity  int
	Price     decimal.Decimal
}

func generateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// CreateOrder validates stock for every line item and persists the order with
// its items in pending_payment status, all in one transaction. Stock is only
// checked here, not decremented; the decrement happens at payment
// confirmation. If any line item fails, nothing is written.
func CreateOrder(ctx context.Context, db *sql.DB, params CreateOrderParams) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		subtotal := decimal.Zero

		for _, item := range params.Items {
			var stock int
			err := tx.QueryRowContext(ctx,
				`SELECT stock_quantity FROM product_variants
				 WHERE product_id = $1 AND size = $2
				 FOR UPDATE`,
				item.ProductID, item.Size).Scan(&stock)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return &UnknownVariantError{ProductName: item.Name, Size: item.Size}
				}
				return fmt.Errorf("lock variant %d/%s: %w", item.ProductID, item.Size, err)
			}
			if stock < item.Quantity {
				return &InsufficientStockError{ProductName: item.Name, Size: item.Size, Available: stock}
			}
			subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		discount := decimal.Zero
		if params.PromoCode != "" {
			result, err := validatePromoTx(ctx, tx, params.PromoCode, subtotal)
			if err != nil {
				return err
			}
			if result.Valid {
				discount = result.DiscountAmount
				_, err = tx.ExecContext(ctx,
					`UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1`,
					strings.ToUpper(params.PromoCode))
				if err != nil {
					return fmt.Errorf("increment promo usage: %w", err)
				}
			}
		}

		total := subtotal.Sub(discount).Add(params.ShippingCost)
		if total.IsNegative() {
			total = decimal.Zero
		}

		order = &models.Order{
			OrderNumber:    generateOrderNumber(),
			CustomerName:   params.CustomerName,
			CustomerEmail:  params.CustomerEmail,
			CustomerPhone:  params.CustomerPhone,
			Address:        params.Address,
			City:           params.City,
			PostalCode:     params.PostalCode,
			ShippingMethod: params.ShippingMethod,
			ShippingCost:   params.ShippingCost,
			PromoCode:      strings.ToUpper(params.PromoCode),
			DiscountAmount: discount,
			TotalAmount:    total,
			Status:         models.OrderStatusPendingPayment,
		}
		if params.PromoCode == "" {
			order.PromoCode = ""
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, customer_name, customer_email, customer_phone,
			                     address, city, postal_code, shipping_method, shipping_cost,
			                     promo_code, discount_amount, total_amount, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			 RETURNING id, created_at`,
			order.OrderNumber, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
			order.Address, order.City, order.PostalCode, order.ShippingMethod, order.ShippingCost,
			order.PromoCode, order.DiscountAmount, order.TotalAmount, order.Status,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range params.Items {
			var oi models.OrderItem
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, size, quantity, unit_price, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())
				 RETURNING id`,
				order.ID, item.ProductID, item.Name, item.Size, item.Quantity, item.Price,
			).Scan(&oi.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			oi.OrderID = order.ID
			oi.ProductID = item.ProductID
			oi.ProductName = item.Name
			oi.Size = item.Size
			oi.Quantity = item.Quantity
			oi.UnitPrice = item.Price
			order.Items = append(order.Items, oi)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetPaymentIntent records the remote payment intent id on a freshly created
// order.
func SetPaymentIntent(ctx context.Context, db *sql.DB, orderID int64, intentID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2`,
		intentID, orderID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrOrderNotFound
	}
	return nil
}

// CancelOrder transitions an order to cancelled. Used when payment intent
// creation fails after the order row was committed.
func CancelOrder(ctx context.Context, db *sql.DB, orderID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		models.OrderStatusCancelled, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

// ConfirmResult reports the outcome of a confirmation attempt together with
// the order fields the notification event needs.
type ConfirmResult struct {
	OrderID       int64
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	TotalAmount   decimal.Decimal
	Status        models.OrderStatus
	AlreadyFinal  bool
}

// ConfirmOrderPayment decrements stock and advances the order exactly once
// per payment intent. The row lock on the order serializes the polling and
// webhook paths; the status guard makes the second caller a no-op. Variant
// decrements are clamped at zero; a confirmation-time shortfall marks the
// order needs_review instead of overselling, since the payment has already
// succeeded.
func ConfirmOrderPayment(ctx context.Context, db *sql.DB, paymentIntentID string) (*ConfirmResult, error) {
	var result ConfirmResult

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		result = ConfirmResult{}

		err := tx.QueryRowContext(ctx,
			`SELECT id, order_number, customer_name, customer_email, total_amount, status
			 FROM orders
			 WHERE payment_intent_id = $1
			 FOR UPDATE`,
			paymentIntentID).Scan(
			&result.OrderID, &result.OrderNumber, &result.CustomerName,
			&result.CustomerEmail, &result.TotalAmount, &result.Status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order by intent: %w", err)
		}

		if result.Status != models.OrderStatusPendingPayment {
			result.AlreadyFinal = true
			return nil
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, size, quantity FROM order_items WHERE order_id = $1 ORDER BY id`,
			result.OrderID)
		if err != nil {
			return fmt.Errorf("load order items: %w", err)
		}

		type lineItem struct {
			productID int64
			size      string
			quantity  int
		}
		var items []lineItem
		for rows.Next() {
			var it lineItem
			if err := rows.Scan(&it.productID, &it.size, &it.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			items = append(items, it)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		shortfall := false
		for _, it := range items {
			var stock int
			err := tx.QueryRowContext(ctx,
				`SELECT stock_quantity FROM product_variants
				 WHERE product_id = $1 AND size = $2
				 FOR UPDATE`,
				it.productID, it.size).Scan(&stock)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					// Variant deleted since order creation; nothing to decrement.
					shortfall = true
					continue
				}
				return fmt.Errorf("lock variant %d/%s: %w", it.productID, it.size, err)
			}

			newStock := stock - it.quantity
			if newStock < 0 {
				newStock = 0
				shortfall = true
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE product_variants SET stock_quantity = $3, updated_at = NOW()
				 WHERE product_id = $1 AND size = $2`,
				it.productID, it.size, newStock)
			if err != nil {
				return fmt.Errorf("decrement variant %d/%s: %w", it.productID, it.size, err)
			}
		}

		newStatus := models.OrderStatusPending
		if shortfall {
			newStatus = models.OrderStatusNeedsReview
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
			result.OrderID, newStatus)
		if err != nil {
			return fmt.Errorf("advance order status: %w", err)
		}

		result.Status = newStatus
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FailOrderPayment transitions an order to cancelled on a failed or canceled
// payment intent. Inventory is untouched. Idempotent: orders already past
// pending_payment are left alone.
func FailOrderPayment(ctx context.Context, db *sql.DB, paymentIntentID string) (*ConfirmResult, error) {
	var result ConfirmResult

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = ConfirmResult{}

		err := tx.QueryRowContext(ctx,
			`SELECT id, order_number, customer_name, customer_email, total_amount, status
			 FROM orders
			 WHERE payment_intent_id = $1
			 FOR UPDATE`,
			paymentIntentID).Scan(
			&result.OrderID, &result.OrderNumber, &result.CustomerName,
			&result.CustomerEmail, &result.TotalAmount, &result.Status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order by intent: %w", err)
		}

		if result.Status != models.OrderStatusPendingPayment {
			result.AlreadyFinal = true
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
			result.OrderID, models.OrderStatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		result.Status = models.OrderStatusCancelled
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetOrderByPaymentIntent(ctx context.Context, db *sql.DB, paymentIntentID string) (*models.Order, error) {
	order := &models.Order{}
	var intentID sql.NullString

	err := db.QueryRowContext(ctx,
		`SELECT id, order_number, customer_name, customer_email, total_amount, status, payment_intent_id, created_at, updated_at
		 FROM orders WHERE payment_intent_id = $1`,
		paymentIntentID).Scan(
		&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail,
		&order.TotalAmount, &order.Status, &intentID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by intent: %w", err)
	}
	order.PaymentIntentID = intentID.String
	return order, nil
}

// ListOrdersByEmail returns a customer's orders, newest first, with items.
func ListOrdersByEmail(ctx context.Context, db *sql.DB, email string) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_number, customer_name, customer_email, shipping_method, shipping_cost,
		        discount_amount, total_amount, status, created_at, updated_at
		 FROM orders
		 WHERE customer_email = $1
		 ORDER BY created_at DESC, id DESC`,
		email)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail,
			&o.ShippingMethod, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount,
			&o.Status, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := listOrderItems(ctx, db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func listOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, size, quantity, unit_price, created_at
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Size, &it.Quantity, &it.UnitPrice, &it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
