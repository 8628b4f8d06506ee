package models

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CreateProductRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Price       float64                `json:"price" binding:"required,gt=0"`
	ImageURL    string                 `json:"image_url"`
	Variants    []CreateVariantRequest `json:"variants" binding:"dive"`
}

type CreateVariantRequest struct {
	Size          string `json:"size" binding:"required"`
	StockQuantity int    `json:"stock_quantity" binding:"gte=0"`
}

type UpdateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
}

type OrderItemRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Size      string  `json:"size" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Price     float64 `json:"price" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	CustomerName   string             `json:"customer_name" binding:"required"`
	CustomerEmail  string             `json:"customer_email" binding:"required,email"`
	CustomerPhone  string             `json:"customer_phone"`
	Address        string             `json:"address" binding:"required"`
	City           string             `json:"city" binding:"required"`
	PostalCode     string             `json:"postal_code"`
	ShippingMethod string             `json:"shipping_method" binding:"required"`
	ShippingCost   float64            `json:"shipping_cost" binding:"gte=0"`
	PromoCode      string             `json:"promo_code"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CartItemRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type FavoriteRequest struct {
	UserID    int64 `json:"user_id" binding:"required"`
	ProductID int64 `json:"product_id" binding:"required"`
}

type PromoRequest struct {
	Code        string  `json:"code" binding:"required"`
	OrderAmount float64 `json:"orderAmount" binding:"required,gt=0"`
}

type PromoResponse struct {
	Valid          bool    `json:"valid"`
	DiscountAmount float64 `json:"discountAmount,omitempty"`
	Message        string  `json:"message,omitempty"`
}

type ShippingRequest struct {
	Method      string  `json:"method" binding:"required"`
	City        string  `json:"city"`
	OrderAmount float64 `json:"order_amount" binding:"gte=0"`
}

type ShippingResponse struct {
	Cost          float64 `json:"cost"`
	Currency      string  `json:"currency"`
	EstimatedDays int     `json:"estimated_days"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateStockRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gte=0"`
}
