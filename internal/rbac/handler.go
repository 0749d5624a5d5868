package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes the permission catalog and caller capabilities as JSON.
type Handler struct {
	logger    *slog.Logger
	evaluator *Evaluator
	guard     Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, evaluator *Evaluator, guard Guard) *Handler {
	return &Handler{logger: logger, evaluator: evaluator, guard: guard}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("permissions.view"))
		r.Get("/", h.listCatalog)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Attach)
		r.Get("/me", h.listMine)
	})
}

type permissionDTO struct {
	ID          string   `json:"id"`
	Resource    string   `json:"resource"`
	Action      string   `json:"action"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
}

func toDTO(perms []Permission) []permissionDTO {
	out := make([]permissionDTO, 0, len(perms))
	for _, p := range perms {
		roles := make([]string, 0, len(p.Roles))
		for _, r := range p.Roles {
			roles = append(roles, string(r))
		}
		out = append(out, permissionDTO{
			ID:          p.ID,
			Resource:    p.Resource,
			Action:      p.Action,
			Name:        p.Name,
			Description: p.Description,
			Roles:       roles,
		})
	}
	return out
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": toDTO(Catalog()),
	})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	role := Role(identity.Role)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        identity.Role,
		"level":       RoleLevel(role),
		"permissions": toDTO(h.evaluator.EffectivePermissions(role)),
	})
}
