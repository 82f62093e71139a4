package database

import (
	"database/sql"
	"time"

	"iped-studio/models"
)

// ==================== USER OPERATIONS ====================

func (r *Repository) CreateUser(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, username, password_hash, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt, user.LastLoginAt)
	return err
}

func (r *Repository) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(`
		SELECT id, email, username, password_hash, created_at, last_login_at
		FROM users WHERE id = ?
	`, userID).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.CreatedAt, &user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(`
		SELECT id, email, username, password_hash, created_at, last_login_at
		FROM users WHERE email = ?
	`, email).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.CreatedAt, &user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UpdateLastLogin(userID string) error {
	_, err := r.db.Exec(`
		UPDATE users SET last_login_at = ? WHERE id = ?
	`, time.Now(), userID)
	return err
}
