// Package identity carries the authenticated caller through a request context.
package identity

import (
	"context"

	"github.com/google/uuid"
)

type callerKey struct{}

func WithCaller(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// Caller returns the authenticated user, or false for anonymous requests.
func Caller(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
