package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidInput  = "Невалидни данни"
	msgInternalError = "Вътрешна грешка"
	msgNotFound      = "Не е намерено"
)

// validationError returns the standard 400 body: a human-readable Bulgarian
// error plus field-level details for the client form.
func validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msgInvalidInput,
		"details": []string{err.Error()},
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
