package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront-api/database"
	"storefront-api/models"
)

const SessionTTL = 24 * time.Hour

// VerifyAdminCredentials checks username/password against admin_users.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func VerifyAdminCredentials(ctx context.Context, db *sql.DB, username, password string) (*models.AdminUser, error) {
	admin := &models.AdminUser{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM admin_users WHERE username = $1`,
		username).Scan(&admin.ID, &admin.Username, &admin.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcrypt.ErrMismatchedHashAndPassword
		}
		return nil, fmt.Errorf("lookup admin user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, err
	}
	return admin, nil
}

// CreateAdminSession mints an opaque random token and persists it with a 24h
// expiry.
func CreateAdminSession(ctx context.Context, db *sql.DB, adminUserID int64) (*models.AdminSession, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	session := &models.AdminSession{
		Token:       hex.EncodeToString(buf),
		AdminUserID: adminUserID,
		ExpiresAt:   time.Now().Add(SessionTTL),
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO admin_sessions (token, admin_user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		session.Token, session.AdminUserID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert admin session: %w", err)
	}
	return session, nil
}

// ValidateAdminSession resolves a cookie token. Expired tokens are deleted and
// reported the same way as unknown ones.
func ValidateAdminSession(ctx context.Context, db *sql.DB, token string) (*models.AdminSession, error) {
	if token == "" {
		return nil, database.ErrSessionNotFound
	}

	session := &models.AdminSession{Token: token}
	err := db.QueryRowContext(ctx,
		`SELECT admin_user_id, expires_at FROM admin_sessions WHERE token = $1`,
		token).Scan(&session.AdminUserID, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup admin session: %w", err)
	}

	if session.ExpiresAt.Before(time.Now()) {
		_, _ = db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE token = $1`, token)
		return nil, database.ErrSessionNotFound
	}
	return session, nil
}

func DeleteAdminSession(ctx context.Context, db *sql.DB, token string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete admin session: %w", err)
	}
	return nil
}
