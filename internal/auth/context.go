package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithUserID returns a copy of ctx carrying the authenticated user's id
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the user id stored by WithUserID
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
