// Package actor identifies the staff member performing an action.
// Every stock movement and audit entry is attributed to an actor.
package actor

import (
	"context"
	"fmt"
)

// Actor represents the authenticated staff member performing an action.
type Actor struct {
	// ID is the unique identifier of the actor (staff user ID)
	ID string `json:"id"`

	// Name is the actor's display name
	Name string `json:"name"`

	// Role is the actor's role (optional, for display purposes)
	Role string `json:"role,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.ID)
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if a, ok := ctx.Value(actorContextKey).(*Actor); ok {
		return a
	}
	return nil
}

// IDFromContext returns the actor ID, or "system" when no actor is present.
func IDFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.ID
	}
	return "system"
}
