package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-api/database"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/store"
)

type AdminHandler struct {
	db           *sql.DB
	cookieSecure bool
	logger       *zap.Logger
}

func NewAdminHandler(db *sql.DB, cookieSecure bool, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, cookieSecure: cookieSecure, logger: logger}
}

func (h *AdminHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	admin, err := store.VerifyAdminCredentials(ctx, h.db, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Невалидни потребителско име или парола"})
			return
		}
		h.logger.Error("Failed to verify admin credentials", zap.Error(err))
		internalError(c)
		return
	}

	session, err := store.CreateAdminSession(ctx, h.db, admin.ID)
	if err != nil {
		h.logger.Error("Failed to create admin session", zap.Error(err))
		internalError(c)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminSessionCookie, session.Token, int(store.SessionTTL.Seconds()), "/", "", h.cookieSecure, true)

	h.logger.Info("Admin logged in", zap.Int64("admin_id", admin.ID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Validate lets the admin UI check whether its session cookie is still
// good before rendering a protected page.
func (h *AdminHandler) Validate(c *gin.Context) {
	token, err := c.Cookie(middleware.AdminSessionCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "redirect": "/admin/login"})
		return
	}

	if _, err := store.ValidateAdminSession(c.Request.Context(), h.db, token); err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "redirect": "/admin/login"})
			return
		}
		h.logger.Error("Failed to validate admin session", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *AdminHandler) Logout(c *gin.Context) {
	token, err := c.Cookie(middleware.AdminSessionCookie)
	if err == nil && token != "" {
		if err := store.DeleteAdminSession(c.Request.Context(), h.db, token); err != nil {
			h.logger.Error("Failed to delete admin session", zap.Error(err))
		}
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminSessionCookie, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) GetStock(c *gin.Context) {
	rows, err := store.ListStock(c.Request.Context(), h.db)
	if err != nil {
		h.logger.Error("Failed to list stock", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock": rows})
}

func (h *AdminHandler) UpdateStock(c *gin.Context) {
	var req models.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	if err := store.SetStock(c.Request.Context(), h.db, req.ProductID, req.Size, req.Quantity); err != nil {
		if errors.Is(err, database.ErrVariantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Няма такъв размер за този продукт"})
			return
		}
		h.logger.Error("Failed to update stock",
			zap.Int64("product_id", req.ProductID),
			zap.String("size", req.Size),
			zap.Error(err))
		internalError(c)
		return
	}

	h.logger.Info("Stock updated",
		zap.Int64("product_id", req.ProductID),
		zap.String("size", req.Size),
		zap.Int("quantity", req.Quantity))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
