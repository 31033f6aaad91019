package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/trackify/internal/models"
	"github.com/desertthunder/trackify/internal/shared"
)

// UserRepository persists [models.User] rows keyed by Spotify user ID.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts a user on first login and refreshes display name and
// refresh token on subsequent logins.
func (r *UserRepository) Upsert(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, display_name, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, user.ID, user.DisplayName, nullString(user.RefreshToken), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// Get retrieves a user by platform ID.
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, display_name, refresh_token, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	var (
		user         models.User
		refreshToken sql.NullString
	)

	err := r.db.QueryRow(query, id).Scan(&user.ID, &user.DisplayName, &refreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.RefreshToken = refreshToken.String
	return &user, nil
}

// List retrieves every user, oldest first.
func (r *UserRepository) List() ([]*models.User, error) {
	rows, err := r.db.Query("SELECT id, display_name, refresh_token, created_at, updated_at FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var (
			user         models.User
			refreshToken sql.NullString
		)
		if err := rows.Scan(&user.ID, &user.DisplayName, &refreshToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.RefreshToken = refreshToken.String
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// SetRefreshToken persists a rotated refresh credential for the user.
func (r *UserRepository) SetRefreshToken(id, refreshToken string) error {
	result, err := r.db.Exec(
		"UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?",
		nullString(refreshToken), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}

	return nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
