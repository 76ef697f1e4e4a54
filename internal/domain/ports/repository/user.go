package repository

import (
	"context"

	"healthtrack-billing/internal/domain/model"
)

// UserRepository is the read-only port into the health app's user
// directory.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}
