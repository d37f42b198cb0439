package user

import (
	"context"

	User "github.com/IsaacEduardo/chat-umn/internal/user/model"
	"github.com/google/uuid"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *User.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User.User, error)
	GetUserByUsername(ctx context.Context, username string) (*User.User, error)

	// Presence flags touched by the realtime core.
	SetOnline(ctx context.Context, userID uuid.UUID, online bool) error

	// Search users by username prefix (for adding contacts)
	SearchByUsername(ctx context.Context, prefix string, limit int) ([]*User.User, error)
}
