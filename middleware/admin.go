package middleware

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-api/database"
	"storefront-api/store"
)

const AdminSessionCookie = "admin_session"

// AdminSessionGuard gates admin routes on the session cookie. Expired and
// unknown tokens are treated identically to an absent cookie.
func AdminSessionGuard(db *sql.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AdminSessionCookie)
		if err != nil {
			token = ""
		}

		session, err := store.ValidateAdminSession(c.Request.Context(), db, token)
		if err != nil {
			if !database.IsNotFound(err) {
				logger.Error("Admin session validation failed",
					zap.String("trace_id", GetTraceID(c.Request.Context())),
					zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "Unauthorized",
				"redirect": "/admin/login",
			})
			return
		}

		c.Set("admin_user_id", session.AdminUserID)
		c.Next()
	}
}
