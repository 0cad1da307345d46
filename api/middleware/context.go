package middleware

import (
	"context"

	"github.com/boostlocal/boost-api/internal/access"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxEmail  contextKey = "email"
	ctxActor  contextKey = "actor"
)

// UserIDFromContext returns the verified identity subject.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// EmailFromContext returns the email carried by the identity token.
func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the caller resolved from the stored role binding.
// Requests without a binding yield an actor with no role.
func ActorFromContext(ctx context.Context) access.Actor {
	if ctx == nil {
		return access.Actor{}
	}
	if v, ok := ctx.Value(ctxActor).(access.Actor); ok {
		return v
	}
	return access.Actor{UID: UserIDFromContext(ctx), Email: EmailFromContext(ctx)}
}

// RoleFromContext returns the resolved role name or an empty string.
func RoleFromContext(ctx context.Context) string {
	return ActorFromContext(ctx).RoleString()
}

// WithIdentity injects the verified token subject into the context.
func WithIdentity(ctx context.Context, uid, email string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, uid)
	return context.WithValue(ctx, ctxEmail, email)
}

// WithActor injects the resolved caller into the context.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
