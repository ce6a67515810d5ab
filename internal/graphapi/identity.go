package graphapi

import (
	"context"

	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/service"
)

// Identity is the authenticated caller carried through the resolver
// context. Absent for anonymous requests.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// requireAdmin gates mutations the way the REST write routes are gated:
// queries stay public, writes need an authenticated ADMIN.
func requireAdmin(ctx context.Context) error {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return service.Unauthorizedf("authentication required")
	}
	if id.Role != domain.RoleAdmin {
		return service.Unauthorizedf("admin role required")
	}
	return nil
}
