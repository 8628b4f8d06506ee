package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-api/models"
)

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{db: db, logger: logger}
}

// AddItem upserts a cart row for (user, product, size).
func (h *CartHandler) AddItem(c *gin.Context) {
	var req models.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	var item models.CartItem
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO cart_items (user_id, product_id, size, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id, product_id, size)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		 RETURNING id, user_id, product_id, size, quantity, created_at, updated_at`,
		req.UserID, req.ProductID, req.Size, req.Quantity,
	).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Size, &item.Quantity,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		h.logger.Error("Failed to upsert cart item", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, item)
}

type cartLine struct {
	models.CartItem
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT ci.id, ci.user_id, ci.product_id, ci.size, ci.quantity, ci.created_at, ci.updated_at,
		        p.name, p.price
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.created_at`,
		userID)
	if err != nil {
		h.logger.Error("Failed to fetch cart", zap.Error(err))
		internalError(c)
		return
	}
	defer rows.Close()

	items := []cartLine{}
	for rows.Next() {
		var line cartLine
		err := rows.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Size, &line.Quantity,
			&line.CreatedAt, &line.UpdatedAt, &line.ProductName, &line.UnitPrice)
		if err != nil {
			h.logger.Error("Failed to scan cart item", zap.Error(err))
			internalError(c)
			return
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Cart rows error", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, items)
}

// ClearCart removes either one item (product_id + size query params) or the
// whole cart.
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	productID := c.Query("product_id")
	size := c.Query("size")

	var result sql.Result
	if productID != "" && size != "" {
		result, err = h.db.ExecContext(c.Request.Context(),
			`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3`,
			userID, productID, size)
	} else {
		result, err = h.db.ExecContext(c.Request.Context(),
			`DELETE FROM cart_items WHERE user_id = $1`, userID)
	}
	if err != nil {
		h.logger.Error("Failed to clear cart", zap.Error(err))
		internalError(c)
		return
	}

	removed, _ := result.RowsAffected()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
