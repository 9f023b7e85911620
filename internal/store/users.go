package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db db.DBTX, u *model.User) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, phone, address) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Phone, u.Address,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db db.DBTX, id int64) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, phone, address, created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username.
func GetUserByUsername(ctx context.Context, db db.DBTX, username string) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, phone, address, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// GetUserByLogin returns the user whose email or username is login.
func GetUserByLogin(ctx context.Context, db db.DBTX, login string) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, phone, address, created_at
		 FROM users WHERE email = ? OR username = ?
		 ORDER BY email = ? DESC LIMIT 1`, login, login, login,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}
	return u, nil
}

// UserTaken reports whether the username or email is already registered.
func UserTaken(ctx context.Context, db db.DBTX, username, email string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`, username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking existing user: %w", err)
	}
	return count > 0, nil
}

// UserTakenByOther reports whether another user than id already holds the
// username or email.
func UserTakenByOther(ctx context.Context, db db.DBTX, id int64, username, email string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE (username = ? OR email = ?) AND id <> ?`, username, email, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking existing user: %w", err)
	}
	return count > 0, nil
}

// UserExists reports whether a user with the ID exists.
func UserExists(ctx context.Context, db db.DBTX, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return count > 0, nil
}

// UpdateUserPassword replaces a user's password hash.
func UpdateUserPassword(ctx context.Context, db db.DBTX, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// UpdateUserProfile writes a user's username, email, phone and address.
func UpdateUserProfile(ctx context.Context, db db.DBTX, u *model.User) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, phone = ?, address = ? WHERE id = ?`,
		u.Username, u.Email, u.Phone, u.Address, u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}
