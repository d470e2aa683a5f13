package auth

import (
	"context"

	"github.com/filamentory/filamentory/internal/model"
)

type contextKey struct{}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*model.User)
	return user, ok
}

func UserID(ctx context.Context) string {
	user, ok := UserFromContext(ctx)
	if !ok {
		return ""
	}
	return user.ID
}
