package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusNeedsReview    OrderStatus = "needs_review"
)

type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	ImageURL    string           `json:"image_url,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

type ProductVariant struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Size          string    `json:"size"`
	StockQuantity int       `json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	Address         string          `json:"address,omitempty"`
	City            string          `json:"city,omitempty"`
	PostalCode      string          `json:"postal_code,omitempty"`
	ShippingMethod  string          `json:"shipping_method,omitempty"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	PromoCode       string          `json:"promo_code,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PromoCode struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	MaxUses        int             `json:"max_uses"`
	UsedCount      int             `json:"used_count"`
	Active         bool            `json:"active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

type AdminUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

type AdminSession struct {
	Token       string    `json:"-"`
	AdminUserID int64     `json:"admin_user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserEvent is published to Kafka on account lifecycle transitions.
type UserEvent struct {
	UserID            int64  `json:"user_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token,omitempty"`
	EventType         string `json:"event_type"` // user_registered
}

// OrderEvent is published to Kafka on order lifecycle transitions for the
// downstream notification consumer.
type OrderEvent struct {
	OrderID       int64       `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	TotalAmount   string      `json:"total_amount"`
	Status        OrderStatus `json:"status"`
	EventType     string      `json:"event_type"` // order_created, order_confirmed, order_needs_review, payment_failed
}
