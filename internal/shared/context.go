package shared

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorHeader carries the authenticated caller's user id. Authentication
// itself happens upstream; this service trusts the header as asserted by
// the API gateway.
const ActorHeader = "X-Actor-ID"

// ContextWithActor stores the acting user id in the context.
func ContextWithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}

// ActorFromContext returns the acting user id, if any.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey).(uuid.UUID)
	return id, ok
}

// ActorMiddleware extracts the actor header into the request context.
// Requests without a parseable actor id pass through anonymous; handlers
// that need an actor reject those themselves.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorHeader))
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
