package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDContextKey contextKey = "auth_user_id"
	roleContextKey   contextKey = "auth_role"
)

// WithUserContext attaches the verified (userID, role) pair the auth layer
// produced for this request.
func WithUserContext(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, roleContextKey, role)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return id, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}
