package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-api/kafka"
	"storefront-api/middleware"
	"storefront-api/models"
)

type AuthHandler struct {
	db        *sql.DB
	jwtSecret []byte
	producer  sarama.SyncProducer
	topic     string
	logger    *zap.Logger
}

func NewAuthHandler(db *sql.DB, jwtSecret []byte, producer sarama.SyncProducer, topic string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:        db,
		jwtSecret: jwtSecret,
		producer:  producer,
		topic:     topic,
		logger:    logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	// Check if user already exists
	var existingID int64
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Потребител с този имейл вече съществува"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error("Database error",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		internalError(c)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		internalError(c)
		return
	}

	verificationToken := uuid.NewString()

	var user models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO users (name, email, password_hash, email_verified, verification_token)
		 VALUES ($1, $2, $3, FALSE, $4)
		 RETURNING id, name, email, email_verified, created_at`,
		req.Name, req.Email, string(hashedPassword), verificationToken,
	).Scan(&user.ID, &user.Name, &user.Email, &user.EmailVerified, &user.CreatedAt)
	if err != nil {
		h.logger.Error("Failed to create user",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		internalError(c)
		return
	}

	// Email delivery is handled by the downstream notification consumer; the
	// event carries the token it needs to build the verification link.
	event := models.UserEvent{
		UserID:            user.ID,
		Name:              user.Name,
		Email:             user.Email,
		VerificationToken: verificationToken,
		EventType:         "user_registered",
	}
	if err := kafka.PublishUserEvent(c.Request.Context(), h.producer, h.topic, event, h.logger); err != nil {
		// Don't fail the request, but log the error
		h.logger.Error("Failed to publish user_registered event", zap.Error(err))
	}

	h.logger.Info("User registered", zap.String("email", user.Email))
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, name, email, password_hash, email_verified, created_at FROM users WHERE email = $1",
		req.Email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.EmailVerified, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Невалидни имейл или парола"})
			return
		}
		h.logger.Error("Database error",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		internalError(c)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Невалидни имейл или парола"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		internalError(c)
		return
	}

	h.logger.Info("User logged in", zap.String("email", req.Email))
	c.JSON(http.StatusOK, models.LoginResponse{
		Token: tokenString,
		User:  user,
	})
}

// VerifyEmail marks the account verified for a token issued at registration.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(),
		`UPDATE users SET email_verified = TRUE, verification_token = NULL
		 WHERE verification_token = $1`,
		token)
	if err != nil {
		h.logger.Error("Failed to verify email", zap.Error(err))
		internalError(c)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		internalError(c)
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Невалиден или изтекъл линк за потвърждение"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}
