package user

import (
	"context"

	domain "categorywatch/internal/domain/user"
)

// Store reads and writes wiki accounts together with their notification preferences.
type Store interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
	Save(ctx context.Context, value domain.User) error
	SetOption(ctx context.Context, id int64, key, value string) error
}
