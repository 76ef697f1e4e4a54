package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.UserRepository = (*userRepo)(nil)

// userRepo reads from the user_profiles table owned by the account service.
// This repository is read-only on purpose.
type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
SELECT id, email, first_name, last_name, created_at
  FROM user_profiles
 WHERE id = $1;`
	var u model.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID user: %w", err)
	}
	return &u, nil
}
