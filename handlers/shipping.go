package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-api/models"
)

// Orders over this amount (BGN) ship free.
const freeShippingThreshold = 100.0

type shippingRate struct {
	cost          float64
	estimatedDays int
}

var shippingRates = map[string]shippingRate{
	"econt":   {cost: 5.99, estimatedDays: 3},
	"speedy":  {cost: 6.99, estimatedDays: 2},
	"address": {cost: 8.99, estimatedDays: 3},
}

type ShippingHandler struct {
	logger *zap.Logger
}

func NewShippingHandler(logger *zap.Logger) *ShippingHandler {
	return &ShippingHandler{logger: logger}
}

// Estimate computes the shipping cost for a method and order amount.
func (h *ShippingHandler) Estimate(c *gin.Context) {
	var req models.ShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	rate, ok := shippingRates[req.Method]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Невалиден метод на доставка"})
		return
	}

	cost := rate.cost
	if req.OrderAmount >= freeShippingThreshold {
		cost = 0
	}

	c.JSON(http.StatusOK, models.ShippingResponse{
		Cost:          cost,
		Currency:      "BGN",
		EstimatedDays: rate.estimatedDays,
	})
}
