package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/store"
)

type PromoHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPromoHandler(db *sql.DB, logger *zap.Logger) *PromoHandler {
	return &PromoHandler{db: db, logger: logger}
}

// Validate checks a promo code against an order amount. Business rejections
// (unknown, expired, exhausted, below minimum) come back as 200 with
// valid=false and a message.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req models.PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	result, err := store.ValidatePromoCode(c.Request.Context(), h.db, req.Code, decimal.NewFromFloat(req.OrderAmount))
	if err != nil {
		h.logger.Error("Failed to validate promo code", zap.String("code", req.Code), zap.Error(err))
		internalError(c)
		return
	}

	resp := models.PromoResponse{
		Valid:   result.Valid,
		Message: result.Message,
	}
	if result.Valid {
		resp.DiscountAmount, _ = result.DiscountAmount.Float64()
	}
	c.JSON(http.StatusOK, resp)
}
