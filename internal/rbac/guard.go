package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// IdentityResolver resolves the caller of a request. Implementations return
// an anonymous identity rather than an error when no credentials are
// presented.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, r *http.Request) (shared.Identity, error)
}

// RoleResolver resolves the role assigned to a user.
type RoleResolver interface {
	RoleFor(ctx context.Context, userID int64) (Role, error)
}

// DenialMetrics records guard denials. Implemented by observability.Metrics.
type DenialMetrics interface {
	RBACDenied(permission string)
}

// Guard wires authorization middleware in front of HTTP handlers. Identity
// and role resolution failures degrade to the fallback role; permission
// checks are boolean gates, never request-crashing control flow.
type Guard struct {
	Evaluator  *Evaluator
	Identities IdentityResolver
	Roles      RoleResolver
	Fallback   Role
	Audit      *shared.AuditLogger
	Logger     *slog.Logger
	Metrics    DenialMetrics
}

// Attach resolves the caller and stores identity plus role in the request
// context without enforcing any permission. Handlers that answer questions
// about the caller itself mount under this.
func (g Guard) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := g.resolve(r)
		ctx := shared.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require ensures the caller holds the given permission.
func (g Guard) Require(permissionID string) func(http.Handler) http.Handler {
	return g.check(func(role Role) bool {
		return g.Evaluator.HasPermission(role, permissionID)
	}, permissionID)
}

// RequireAny ensures the caller holds at least one of the permissions.
func (g Guard) RequireAny(permissionIDs ...string) func(http.Handler) http.Handler {
	return g.check(func(role Role) bool {
		if len(permissionIDs) == 0 {
			return true
		}
		return g.Evaluator.HasAnyPermission(role, permissionIDs...)
	}, joinIDs(permissionIDs))
}

// RequireAll ensures the caller holds every listed permission.
func (g Guard) RequireAll(permissionIDs ...string) func(http.Handler) http.Handler {
	return g.check(func(role Role) bool {
		return g.Evaluator.HasAllPermissions(role, permissionIDs...)
	}, joinIDs(permissionIDs))
}

// RequireRole ensures the caller's role sits at or above the required role.
func (g Guard) RequireRole(required Role) func(http.Handler) http.Handler {
	return g.check(func(role Role) bool {
		return g.Evaluator.HasRoleLevel(role, required)
	}, "role:"+string(required))
}

func (g Guard) check(allowed func(Role) bool, requirement string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := g.resolve(r)
			if !allowed(Role(identity.Role)) {
				g.deny(r, identity, requirement)
				// The denial message stays generic: revealing which
				// permission gated the route leaks capability names.
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permission")
				return
			}
			ctx := shared.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g Guard) resolve(r *http.Request) shared.Identity {
	fallback := g.Fallback
	if fallback == "" {
		fallback = RoleGuest
	}
	identity := shared.Identity{Anonymous: true, Role: string(fallback)}
	if g.Identities == nil {
		return identity
	}
	resolved, err := g.Identities.ResolveIdentity(r.Context(), r)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Warn("resolve identity", slog.Any("error", err))
		}
		return identity
	}
	if resolved.Anonymous {
		return identity
	}
	identity = resolved
	identity.Role = string(fallback)
	if g.Roles == nil {
		return identity
	}
	role, err := g.Roles.RoleFor(r.Context(), resolved.UserID)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Warn("resolve role", slog.Int64("user_id", resolved.UserID), slog.Any("error", err))
		}
		return identity
	}
	if _, ok := ParseRole(string(role)); !ok {
		if g.Logger != nil {
			g.Logger.Warn("unknown role", slog.Int64("user_id", resolved.UserID), slog.String("role", string(role)))
		}
		return identity
	}
	identity.Role = string(role)
	return identity
}

func (g Guard) deny(r *http.Request, identity shared.Identity, requirement string) {
	if g.Logger != nil {
		g.Logger.Warn("authorization denied",
			slog.String("path", r.URL.Path),
			slog.String("role", identity.Role),
			slog.Bool("anonymous", identity.Anonymous))
	}
	if g.Metrics != nil {
		g.Metrics.RBACDenied(requirement)
	}
	if g.Audit != nil {
		g.Audit.RecordAsync(g.Logger, shared.AuditLog{
			Actor:    identity.Email,
			ActorID:  identity.UserID,
			Action:   "rbac.denied",
			Entity:   "route",
			EntityID: r.URL.Path,
			Meta: map[string]any{
				"requirement": requirement,
				"role":        identity.Role,
			},
		})
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
