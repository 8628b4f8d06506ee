package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-api/kafka"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/payments"
	"storefront-api/store"
)

type OrderHandler struct {
	db       *sql.DB
	payments payments.Provider
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, provider payments.Provider, producer sarama.SyncProducer, topic string, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:       db,
		payments: provider,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// CreateOrder validates stock, persists the order in pending_payment status
// and creates the matching payment intent. Stock is decremented later, at
// payment confirmation.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	params := store.CreateOrderParams{
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Address:        req.Address,
		City:           req.City,
		PostalCode:     req.PostalCode,
		ShippingMethod: req.ShippingMethod,
		ShippingCost:   decimal.NewFromFloat(req.ShippingCost),
		PromoCode:      req.PromoCode,
	}
	for _, item := range req.Items {
		params.Items = append(params.Items, store.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     decimal.NewFromFloat(item.Price),
		})
	}

	order, err := store.CreateOrder(ctx, h.db, params)
	if err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Недостатъчна наличност за %s (размер %s)", stockErr.ProductName, stockErr.Size),
			})
			return
		}
		var variantErr *store.UnknownVariantError
		if errors.As(err, &variantErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Няма наличен размер %s за %s", variantErr.Size, variantErr.ProductName),
			})
			return
		}
		h.logger.Error("Failed to create order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err))
		internalError(c)
		return
	}

	// Payment intent amount is in minor currency units (stotinki).
	amountMinor := order.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart()
	pi, err := h.payments.CreateIntent(ctx, amountMinor, strconv.FormatInt(order.ID, 10))
	if err != nil {
		h.logger.Error("Failed to create payment intent",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		if cancelErr := store.CancelOrder(ctx, h.db, order.ID); cancelErr != nil {
			h.logger.Error("Failed to cancel order after intent failure",
				zap.Int64("order_id", order.ID), zap.Error(cancelErr))
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Грешка при обработка на плащането"})
		return
	}

	if err := store.SetPaymentIntent(ctx, h.db, order.ID, pi.ID); err != nil {
		h.logger.Error("Failed to record payment intent",
			zap.Int64("order_id", order.ID),
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err))
		internalError(c)
		return
	}
	order.PaymentIntentID = pi.ID

	event := models.OrderEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		Status:        order.Status,
		EventType:     "order_created",
	}
	if err := kafka.PublishOrderEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		// Don't fail the request, but log the error
		h.logger.Error("Failed to publish order_created event", zap.Error(err))
	}

	h.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	c.JSON(http.StatusCreated, gin.H{
		"client_secret": pi.ClientSecret,
		"order":         order,
	})
}

// ListOrders returns a user's orders, newest first.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	var email string
	err = h.db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = $1", userID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
			return
		}
		h.logger.Error("Failed to look up user", zap.Error(err))
		internalError(c)
		return
	}

	orders, err := store.ListOrdersByEmail(ctx, h.db, email)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, orders)
}
