package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"storefront-api/database"
	"storefront-api/kafka"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/payments"
	"storefront-api/store"
)

const maxWebhookBody = 65536

type StripeHandler struct {
	db            *sql.DB
	payments      payments.Provider
	producer      sarama.SyncProducer
	topic         string
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeHandler(db *sql.DB, provider payments.Provider, producer sarama.SyncProducer, topic, webhookSecret string, logger *zap.Logger) *StripeHandler {
	return &StripeHandler{
		db:            db,
		payments:      provider,
		producer:      producer,
		topic:         topic,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// GetPaymentStatus is the polling path: the client asks for the state of its
// payment intent, and a succeeded intent triggers the same confirmation
// operation the webhook uses.
func (h *StripeHandler) GetPaymentStatus(c *gin.Context) {
	ctx := c.Request.Context()

	intentID := c.Query("payment_intent_id")
	if intentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	pi, err := h.payments.GetIntent(ctx, intentID)
	if err != nil {
		h.logger.Error("Failed to retrieve payment intent",
			zap.String("payment_intent_id", intentID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Грешка при обработка на плащането"})
		return
	}

	var orderStatus models.OrderStatus
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result, err := h.confirm(ctx, intentID)
		if err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Поръчката не е намерена"})
				return
			}
			h.logger.Error("Failed to confirm order",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("payment_intent_id", intentID),
				zap.Error(err))
			internalError(c)
			return
		}
		orderStatus = result.Status
	case stripe.PaymentIntentStatusCanceled:
		result, err := h.fail(ctx, intentID)
		if err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Поръчката не е намерена"})
				return
			}
			h.logger.Error("Failed to cancel order",
				zap.String("payment_intent_id", intentID),
				zap.Error(err))
			internalError(c)
			return
		}
		orderStatus = result.Status
	default:
		order, err := store.GetOrderByPaymentIntent(ctx, h.db, intentID)
		if err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Поръчката не е намерена"})
				return
			}
			internalError(c)
			return
		}
		orderStatus = order.Status
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_status": string(pi.Status),
		"order_status":   orderStatus,
	})
}

// RecreateIntent returns the client secret for an order still awaiting
// payment so the client can resume checkout.
func (h *StripeHandler) RecreateIntent(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	order, err := store.GetOrderByPaymentIntent(ctx, h.db, req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Поръчката не е намерена"})
			return
		}
		internalError(c)
		return
	}
	if order.Status != models.OrderStatusPendingPayment {
		c.JSON(http.StatusConflict, gin.H{"error": "Поръчката вече е обработена", "order_status": order.Status})
		return
	}

	pi, err := h.payments.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		h.logger.Error("Failed to retrieve payment intent", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Грешка при обработка на плащането"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"client_secret": pi.ClientSecret})
}

// Webhook is the asynchronous path: Stripe posts signed events; unverified
// requests are rejected with 400.
func (h *StripeHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
			return
		}
		if _, err := h.confirm(ctx, pi.ID); err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				// Not ours (other environment, deleted order); ack so Stripe
				// stops retrying.
				h.logger.Warn("Webhook for unknown order",
					zap.String("payment_intent_id", pi.ID))
				break
			}
			h.logger.Error("Failed to confirm order from webhook",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("payment_intent_id", pi.ID),
				zap.Error(err))
			internalError(c)
			return
		}

	case "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
			return
		}
		if _, err := h.fail(ctx, pi.ID); err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				h.logger.Warn("Webhook for unknown order",
					zap.String("payment_intent_id", pi.ID))
				break
			}
			h.logger.Error("Failed to cancel order from webhook",
				zap.String("payment_intent_id", pi.ID),
				zap.Error(err))
			internalError(c)
			return
		}

	default:
		h.logger.Info("Ignoring webhook event", zap.String("type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// confirm runs the idempotent confirmation operation and, on a first-time
// confirmation, emits the notification event and metrics.
func (h *StripeHandler) confirm(ctx context.Context, intentID string) (*store.ConfirmResult, error) {
	result, err := store.ConfirmOrderPayment(ctx, h.db, intentID)
	if err != nil {
		return nil, err
	}
	if result.AlreadyFinal {
		return result, nil
	}

	middleware.RecordOrderConfirmed(string(result.Status))

	eventType := "order_confirmed"
	if result.Status == models.OrderStatusNeedsReview {
		eventType = "order_needs_review"
	}
	event := models.OrderEvent{
		OrderID:       result.OrderID,
		OrderNumber:   result.OrderNumber,
		CustomerName:  result.CustomerName,
		CustomerEmail: result.CustomerEmail,
		TotalAmount:   result.TotalAmount.StringFixed(2),
		Status:        result.Status,
		EventType:     eventType,
	}
	if err := kafka.PublishOrderEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		h.logger.Error("Failed to publish confirmation event",
			zap.Int64("order_id", result.OrderID),
			zap.Error(err))
	}

	h.logger.Info("Order payment confirmed",
		zap.Int64("order_id", result.OrderID),
		zap.String("order_number", result.OrderNumber),
		zap.String("customer_email", result.CustomerEmail),
		zap.String("amount", result.TotalAmount.StringFixed(2)),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (h *StripeHandler) fail(ctx context.Context, intentID string) (*store.ConfirmResult, error) {
	result, err := store.FailOrderPayment(ctx, h.db, intentID)
	if err != nil {
		return nil, err
	}
	if result.AlreadyFinal {
		return result, nil
	}

	event := models.OrderEvent{
		OrderID:       result.OrderID,
		OrderNumber:   result.OrderNumber,
		CustomerName:  result.CustomerName,
		CustomerEmail: result.CustomerEmail,
		TotalAmount:   result.TotalAmount.StringFixed(2),
		Status:        result.Status,
		EventType:     "payment_failed",
	}
	if err := kafka.PublishOrderEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		h.logger.Error("Failed to publish payment_failed event",
			zap.Int64("order_id", result.OrderID),
			zap.Error(err))
	}

	h.logger.Info("Order payment failed",
		zap.Int64("order_id", result.OrderID),
		zap.String("order_number", result.OrderNumber),
	)
	return result, nil
}
