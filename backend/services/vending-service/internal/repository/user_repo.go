package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	libdb "snackbox/backend/libs/db"
	"snackbox/backend/services/vending-service/internal/models"
)

// UserRepository persists snack bar users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (id, name, email, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, user.IsAdmin).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if libdb.IsUniqueViolation(err, usersEmailKey) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUser returns a user by id or ErrUserNotFound.
func (r *UserRepository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindUserByEmail returns a user by email or ErrUserNotFound.
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// ListUsers returns all users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, is_admin, created_at, updated_at FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id, name, email, is_admin, created_at, updated_at FROM users `+where, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
