package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-api/models"
)

type FavoritesHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewFavoritesHandler(db *sql.DB, logger *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{db: db, logger: logger}
}

// Toggle adds the product to the user's favorites, or removes it when it is
// already there.
func (h *FavoritesHandler) Toggle(c *gin.Context) {
	var req models.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(),
		`INSERT INTO favorites (user_id, product_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		req.UserID, req.ProductID)
	if err != nil {
		h.logger.Error("Failed to add favorite", zap.Error(err))
		internalError(c)
		return
	}

	inserted, _ := result.RowsAffected()
	if inserted > 0 {
		c.JSON(http.StatusOK, gin.H{"favorited": true})
		return
	}

	_, err = h.db.ExecContext(c.Request.Context(),
		`DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`,
		req.UserID, req.ProductID)
	if err != nil {
		h.logger.Error("Failed to remove favorite", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorited": false})
}

func (h *FavoritesHandler) List(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT f.id, f.user_id, f.product_id, f.created_at
		 FROM favorites f
		 WHERE f.user_id = $1
		 ORDER BY f.created_at DESC`,
		userID)
	if err != nil {
		h.logger.Error("Failed to fetch favorites", zap.Error(err))
		internalError(c)
		return
	}
	defer rows.Close()

	favorites := []models.Favorite{}
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.ProductID, &f.CreatedAt); err != nil {
			h.logger.Error("Failed to scan favorite", zap.Error(err))
			internalError(c)
			return
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Favorites rows error", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, favorites)
}
