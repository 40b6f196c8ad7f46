package middleware

import (
	"context"

	"github.com/google/uuid"
)

type ownerKey struct{}

// WithUserID records the authenticated owner on ctx. Auth is the only
// production caller; tests use it to skip token minting.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ownerKey{}, userID)
}

// UserIDFromContext returns the raw owner id, or "" outside Auth.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ownerKey{}).(string)
	return id
}

func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	return id, err == nil && id != uuid.Nil
}
