package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail returns nil, nil when no user has the email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, full_name, role
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return u, nil
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, full_name, role
		FROM users
		WHERE user_id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return u, nil
}
