package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Actor is the authenticated caller of a request. Guests have no actor.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
	Email  string
}

type actorKey struct{}

// WithActor attaches the caller to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext reports false for guests.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != uuid.Nil {
		return actor.UserID.String()
	}
	return ""
}

// UserUUIDFromContext returns nil for guests.
func UserUUIDFromContext(ctx context.Context) *uuid.UUID {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func RoleFromContext(ctx context.Context) enums.Role {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}

func EmailFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.Email
}

// WithUserID attaches a customer with only an id, as tests and internal
// callers need.
func WithUserID(ctx context.Context, userID string) context.Context {
	actor, _ := ActorFromContext(ctx)
	actor.UserID, _ = uuid.Parse(userID)
	if actor.Role == "" {
		actor.Role = enums.RoleCustomer
	}
	return WithActor(ctx, actor)
}

// WithRole overrides the role of the current actor.
func WithRole(ctx context.Context, role string) context.Context {
	actor, _ := ActorFromContext(ctx)
	actor.Role = enums.Role(role)
	return WithActor(ctx, actor)
}
